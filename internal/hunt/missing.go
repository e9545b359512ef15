package hunt

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seekarr/seekarr/internal/history"
	"github.com/seekarr/seekarr/internal/sonarr"
	"github.com/seekarr/seekarr/internal/stats"
)

// ProcessMissing runs one missing-content hunt cycle and returns the number
// of items it dispatched searches for.
//
// The cycle is gated by the search tag: only series carrying it are eligible,
// and if the tag cannot be resolved nothing is dispatched. A missing search
// is recorded as processed as soon as it is dispatched. The command wait that
// follows paces the cycle against the indexer but its outcome does not undo
// the record: Sonarr owns the retry of a failed search, not the hunter.
func (s *Service) ProcessMissing(ctx context.Context) int {
	if s.settings.MissingItems <= 0 {
		return 0
	}

	logger := s.logger.With().
		Str("cycle", uuid.NewString()).
		Str("kind", "missing").
		Logger()

	allowed, ok := s.allowedSeries(ctx, s.settings.TagSearchLabel, logger)
	if !ok {
		return 0
	}

	logger.Info().
		Str("mode", s.settings.MissingMode).
		Int("items", s.settings.MissingItems).
		Msg("starting missing hunt cycle")

	var processed int
	switch s.settings.MissingMode {
	case ModeSeasonPacks:
		processed = s.missingSeasonPacks(ctx, logger, allowed)
	case ModeShows:
		processed = s.missingShows(ctx, logger, allowed)
	case ModeEpisodes:
		processed = s.missingEpisodes(ctx, logger, allowed)
	default:
		logger.Error().
			Str("mode", s.settings.MissingMode).
			Msg("unknown missing hunt mode")
		return 0
	}

	logger.Info().
		Int("processed", processed).
		Msg("missing hunt cycle finished")

	return processed
}

// missingCandidates samples missing episodes and keeps only those belonging
// to gated series that have actually aired. Unparsable air dates pass the
// filter so broken metadata cannot hide missing content.
func (s *Service) missingCandidates(ctx context.Context, logger zerolog.Logger, allowed map[int64]struct{}, sampleSize int) []sonarr.Episode {
	opts := sonarr.WantedOptions{MonitoredOnly: s.settings.MonitoredOnly}
	sample := s.client.MissingEpisodesSample(ctx, opts, sampleSize)

	eligible := make([]sonarr.Episode, 0, len(sample))
	for _, ep := range sample {
		if _, ok := allowed[ep.SeriesID]; !ok {
			continue
		}
		if !s.aired(ep, true) {
			continue
		}
		eligible = append(eligible, ep)
	}

	logger.Debug().
		Int("sampled", len(sample)).
		Int("eligible", len(eligible)).
		Msg("filtered missing candidates")

	return eligible
}

func (s *Service) missingSeasonPacks(ctx context.Context, logger zerolog.Logger, allowed map[int64]struct{}) int {
	candidates := s.missingCandidates(ctx, logger, allowed, s.settings.MissingItems*missingSeasonOversample)

	processed := 0
	for _, group := range groupBySeason(candidates) {
		if processed >= s.settings.MissingItems || ctx.Err() != nil {
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
				Msg("failed to dispatch season search")
			continue
		}
		s.countAPIHit(ctx, logger)

		s.tagSeries(ctx, logger, group.seriesID, s.settings.MissingTagLabel)
		s.record(ctx, logger, key, history.CategoryMissing, seasonLabel(group.episodes[0]), stats.MetricHunted, int64(len(group.episodes)))
		processed++

		s.client.WaitForCommand(ctx, commandID, s.settings.CommandWaitDelay, s.settings.CommandWaitAttempts, "SeasonSearch")
	}

	return processed
}

func (s *Service) missingShows(ctx context.Context, logger zerolog.Logger, allowed map[int64]struct{}) int {
	candidates := s.missingCandidates(ctx, logger, allowed, s.settings.MissingItems*missingSeasonOversample)

	processed := 0
	for _, group := range groupBySeries(candidates) {
		if processed >= s.settings.MissingItems || ctx.Err() != nil {
			break
		}
		if s.quotaReached(ctx, logger) {
			break
		}

		key := seriesKey(group.seriesID)
		if s.isProcessed(ctx, logger, key) {
			continue
		}

		episodeIDs := make([]int64, 0, len(group.episodes))
		episodeKeys := make([]string, 0, len(group.episodes))
		for _, ep := range group.episodes {
			episodeIDs = append(episodeIDs, ep.ID)
			episodeKeys = append(episodeKeys, episodeKey(ep))
		}

		commandID, err := s.client.SearchEpisodes(ctx, episodeIDs)
		if err != nil {
			logger.Error().Err(err).
				Int64("seriesId", group.seriesID).
				Msg("failed to dispatch show search")
			continue
		}
		s.countAPIHit(ctx, logger)

		s.tagSeries(ctx, logger, group.seriesID, s.settings.MissingTagLabel)
		s.record(ctx, logger, key, history.CategoryMissing, seriesTitle(group.episodes[0]), stats.MetricHunted, int64(len(group.episodes)))
		s.markProcessed(ctx, logger, episodeKeys)
		processed++

		s.client.WaitForCommand(ctx, commandID, s.settings.CommandWaitDelay, s.settings.CommandWaitAttempts, "EpisodeSearch")
	}

	return processed
}

func (s *Service) missingEpisodes(ctx context.Context, logger zerolog.Logger, allowed map[int64]struct{}) int {
	candidates := s.missingCandidates(ctx, logger, allowed, s.settings.MissingItems*episodeOversample)
	shuffleEpisodes(candidates)

	processed := 0
	for _, ep := range candidates {
		if processed >= s.settings.MissingItems || ctx.Err() != nil {
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
				Msg("failed to dispatch episode search")
			continue
		}
		s.countAPIHit(ctx, logger)

		s.tagSeries(ctx, logger, ep.SeriesID, s.settings.MissingTagLabel)
		s.record(ctx, logger, key, history.CategoryMissing, episodeLabel(ep), stats.MetricHunted, 1)
		processed++

		s.client.WaitForCommand(ctx, commandID, s.settings.CommandWaitDelay, s.settings.CommandWaitAttempts, "EpisodeSearch")
	}

	return processed
}
