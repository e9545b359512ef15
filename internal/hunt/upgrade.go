package hunt

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seekarr/seekarr/internal/history"
	"github.com/seekarr/seekarr/internal/sonarr"
	"github.com/seekarr/seekarr/internal/stats"
)

// ProcessUpgrades runs one quality-upgrade hunt cycle and returns the number
// of items it successfully upgraded searches for.
//
// The cycle is gated by the upgrade tag. Unlike the missing cycle, an upgrade
// is only recorded as processed after the dispatched search command finishes
// successfully: an episode below cutoff stays below cutoff until a better
// release is actually grabbed, so a failed search must leave it huntable.
func (s *Service) ProcessUpgrades(ctx context.Context) int {
	if s.settings.UpgradeItems <= 0 {
		return 0
	}

	logger := s.logger.With().
		Str("cycle", uuid.NewString()).
		Str("kind", "upgrade").
		Logger()

	allowed, ok := s.allowedSeries(ctx, s.settings.TagUpgradeLabel, logger)
	if !ok {
		return 0
	}

	logger.Info().
		Str("mode", s.settings.UpgradeMode).
		Int("items", s.settings.UpgradeItems).
		Msg("starting upgrade hunt cycle")

	var processed int
	switch s.settings.UpgradeMode {
	case ModeSeasonPacks:
		processed = s.upgradeSeasonPacks(ctx, logger, allowed)
	case ModeEpisodes:
		processed = s.upgradeEpisodes(ctx, logger, allowed)
	default:
		logger.Error().
			Str("mode", s.settings.UpgradeMode).
			Msg("unknown upgrade hunt mode")
		return 0
	}

	logger.Info().
		Int("processed", processed).
		Msg("upgrade hunt cycle finished")

	return processed
}

// upgradeCandidates samples cutoff unmet episodes and keeps only those in
// gated series that have aired. The air-date filter is strict here:
// unparsable dates are excluded, an upgrade of something that may not even
// have aired is never worth an indexer search.
func (s *Service) upgradeCandidates(ctx context.Context, logger zerolog.Logger, allowed map[int64]struct{}, sampleSize int) []sonarr.Episode {
	opts := sonarr.WantedOptions{MonitoredOnly: s.settings.MonitoredOnly}
	sample := s.client.CutoffUnmetSample(ctx, opts, sampleSize)

	eligible := make([]sonarr.Episode, 0, len(sample))
	for _, ep := range sample {
		if _, ok := allowed[ep.SeriesID]; !ok {
			continue
		}
		if !s.aired(ep, false) {
			continue
		}
		eligible = append(eligible, ep)
	}

	logger.Debug().
		Int("sampled", len(sample)).
		Int("eligible", len(eligible)).
		Msg("filtered upgrade candidates")

	return eligible
}

func (s *Service) upgradeSeasonPacks(ctx context.Context, logger zerolog.Logger, allowed map[int64]struct{}) int {
	candidates := s.upgradeCandidates(ctx, logger, allowed, s.settings.UpgradeItems*upgradeSeasonOversample)

	processed := 0
	for _, group := range groupBySeason(candidates) {
		if processed >= s.settings.UpgradeItems || ctx.Err() != nil {
			break
		}
		if s.quotaReached(ctx, logger) {
			break
		}

		key := seasonKey(group.seriesID, group.season)
		if s.isProcessed(ctx, logger, key) {
			continue
		}

		commandID, err := s.client.SearchSeason(ctx, group.seriesID, group.season)
		if err != nil {
			logger.Error().Err(err).
				Int64("seriesId", group.seriesID).
				Int("season", group.season).
				Msg("failed to dispatch season upgrade search")
			continue
		}
		s.countAPIHit(ctx, logger)

		if !s.client.WaitForCommand(ctx, commandID, s.settings.CommandWaitDelay, s.settings.CommandWaitAttempts, "SeasonSearch") {
			logger.Warn().
				Int64("seriesId", group.seriesID).
				Int("season", group.season).
				Msg("season upgrade search did not complete, leaving season huntable")
			continue
		}

		s.tagSeries(ctx, logger, group.seriesID, s.settings.UpgradeTagLabel)
		s.record(ctx, logger, key, history.CategoryUpgrade, seasonLabel(group.episodes[0]), stats.MetricUpgraded, int64(len(group.episodes)))
		processed++
	}

	return processed
}

func (s *Service) upgradeEpisodes(ctx context.Context, logger zerolog.Logger, allowed map[int64]struct{}) int {
	candidates := s.upgradeCandidates(ctx, logger, allowed, s.settings.UpgradeItems*episodeOversample)
	shuffleEpisodes(candidates)

	processed := 0
	for _, ep := range candidates {
		if processed >= s.settings.UpgradeItems || ctx.Err() != nil {
			break
		}
		if s.quotaReached(ctx, logger) {
			break
		}

		key := episodeKey(ep)
		if s.isProcessed(ctx, logger, key) {
			continue
		}

		commandID, err := s.client.SearchEpisodes(ctx, []int64{ep.ID})
		if err != nil {
			logger.Error().Err(err).
				Int64("episodeId", ep.ID).
				Msg("failed to dispatch episode upgrade search")
			continue
		}
		s.countAPIHit(ctx, logger)

		if !s.client.WaitForCommand(ctx, commandID, s.settings.CommandWaitDelay, s.settings.CommandWaitAttempts, "EpisodeSearch") {
			logger.Warn().
				Int64("episodeId", ep.ID).
				Msg("episode upgrade search did not complete, leaving episode huntable")
			continue
		}

		s.tagSeries(ctx, logger, ep.SeriesID, s.settings.UpgradeTagLabel)
		s.record(ctx, logger, key, history.CategoryUpgrade, episodeLabel(ep), stats.MetricUpgraded, 1)
		processed++
	}

	return processed
}
