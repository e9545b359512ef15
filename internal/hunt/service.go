// Package hunt implements the automation cycles that find missing and
// quality-upgradeable episodes in a Sonarr library and trigger searches for
// them, bounded by tags, processed-item state and an hourly API quota.
package hunt

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/seekarr/seekarr/internal/history"
	"github.com/seekarr/seekarr/internal/sonarr"
	"github.com/seekarr/seekarr/internal/state"
	"github.com/seekarr/seekarr/internal/stats"
)

const appName = "sonarr"

// Config contains the collaborators a hunt service needs.
type Config struct {
	Instance string
	Client   *sonarr.Client
	State    *state.Store
	History  *history.Service
	Stats    *stats.Service
	Settings Settings
	Logger   zerolog.Logger
}

// Service runs missing and upgrade hunt cycles against one Sonarr instance.
type Service struct {
	instance string
	client   *sonarr.Client
	state    *state.Store
	history  *history.Service
	stats    *stats.Service
	settings Settings
	logger   zerolog.Logger

	// Overridable in tests to pin air-date comparisons.
	now func() time.Time
}

// New creates a hunt service for one instance.
func New(cfg Config) *Service {
	return &Service{
		instance: cfg.Instance,
		client:   cfg.Client,
		state:    cfg.State,
		history:  cfg.History,
		stats:    cfg.Stats,
		settings: cfg.Settings,
		logger: cfg.Logger.With().
			Str("component", "hunt").
			Str("instance", cfg.Instance).
			Logger(),
		now: time.Now,
	}
}

// allowedSeries resolves the tag label gating a cycle and returns the set of
// series ids carrying it. The gate fails closed: a lookup error or an absent
// tag yields ok=false and the cycle must dispatch nothing. The lookup never
// creates the tag.
func (s *Service) allowedSeries(ctx context.Context, label string, logger zerolog.Logger) (map[int64]struct{}, bool) {
	tagID, found, err := s.client.TagIDByLabel(ctx, label)
	if err != nil {
		logger.Error().Err(err).
			Str("tag", label).
			Msg("tag lookup failed, skipping cycle")
		return nil, false
	}
	if !found {
		logger.Info().
			Str("tag", label).
			Msg("gate tag does not exist, skipping cycle")
		return nil, false
	}

	allowed, err := s.client.SeriesIDsWithTag(ctx, tagID)
	if err != nil {
		logger.Error().Err(err).
			Str("tag", label).
			Msg("failed to resolve tagged series, skipping cycle")
		return nil, false
	}
	if len(allowed) == 0 {
		logger.Info().
			Str("tag", label).
			Msg("no series carry the gate tag, nothing to hunt")
		return nil, false
	}

	logger.Debug().
		Str("tag", label).
		Int("series", len(allowed)).
		Msg("resolved gate tag")

	return allowed, true
}

// quotaReached reports whether the hourly API cap has been hit. The quota
// fails open: if usage cannot be read the cycle proceeds, unlike the tag gate.
func (s *Service) quotaReached(ctx context.Context, logger zerolog.Logger) bool {
	exceeded, err := s.stats.HourlyCapExceeded(ctx, appName, s.settings.HourlyAPICap)
	if err != nil {
		logger.Warn().Err(err).Msg("could not read hourly API usage, proceeding")
		return false
	}
	if exceeded {
		logger.Info().
			Int64("cap", s.settings.HourlyAPICap).
			Msg("hourly API cap reached, stopping cycle")
	}
	return exceeded
}

func (s *Service) countAPIHit(ctx context.Context, logger zerolog.Logger) {
	if err := s.stats.IncrementHourlyUsage(ctx, appName, 1); err != nil {
		logger.Warn().Err(err).Msg("failed to count API usage")
	}
}

// aired reports whether an episode's air date has passed, shifted back by
// the configured delay. lenient controls unparsable or absent dates: the
// missing path includes such episodes so broken metadata cannot hide truly
// missing content, the upgrade path excludes them.
func (s *Service) aired(ep sonarr.Episode, lenient bool) bool {
	if !s.settings.SkipFutureEpisodes {
		return true
	}
	if ep.AirDateUTC == "" {
		return lenient
	}
	airDate, err := time.Parse(time.RFC3339, ep.AirDateUTC)
	if err != nil {
		return lenient
	}
	return !airDate.After(s.now().Add(-s.settings.AirDateDelay))
}

func episodeKey(ep sonarr.Episode) string {
	return strconv.FormatInt(ep.ID, 10)
}

func seasonKey(seriesID int64, season int) string {
	return fmt.Sprintf("%d_%d", seriesID, season)
}

func seriesKey(seriesID int64) string {
	return strconv.FormatInt(seriesID, 10)
}

func seriesTitle(ep sonarr.Episode) string {
	if ep.Series != nil && ep.Series.Title != "" {
		return ep.Series.Title
	}
	return fmt.Sprintf("Series %d", ep.SeriesID)
}

func episodeLabel(ep sonarr.Episode) string {
	return fmt.Sprintf("%s - S%02dE%02d - %s", seriesTitle(ep), ep.SeasonNumber, ep.EpisodeNumber, ep.Title)
}

func seasonLabel(ep sonarr.Episode) string {
	return fmt.Sprintf("%s - Season %d", seriesTitle(ep), ep.SeasonNumber)
}

// record stores the processed key, writes history and bumps the stat counter
// by n (one per episode covered by the dispatch). Failures are logged but
// never abort the cycle: the search was already dispatched, so bookkeeping
// errors must not trigger a re-dispatch storm by error propagation.
func (s *Service) record(ctx context.Context, logger zerolog.Logger, key string, category history.Category, mediaName, metric string, n int64) {
	scope := state.Scope{App: appName, Instance: s.instance, ItemID: key}
	if err := s.state.AddProcessed(ctx, scope); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("failed to record processed item")
	}
	if err := s.history.Log(ctx, appName, s.instance, category, mediaName, key); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("failed to write history")
	}
	if err := s.stats.Increment(ctx, appName, metric, n); err != nil {
		logger.Error().Err(err).Str("metric", metric).Msg("failed to increment stat")
	}
}

// markProcessed records extra processed keys without history or stats, used
// for the per-episode ids covered by a grouped dispatch.
func (s *Service) markProcessed(ctx context.Context, logger zerolog.Logger, keys []string) {
	for _, key := range keys {
		if err := s.state.AddProcessed(ctx, state.Scope{App: appName, Instance: s.instance, ItemID: key}); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("failed to record processed item")
		}
	}
}

func (s *Service) isProcessed(ctx context.Context, logger zerolog.Logger, key string) bool {
	done, err := s.state.IsProcessed(ctx, state.Scope{App: appName, Instance: s.instance, ItemID: key})
	if err != nil {
		// Treat an unreadable store as processed so a broken database
		// cannot cause repeat dispatches.
		logger.Error().Err(err).Str("key", key).Msg("failed to check processed state")
		return true
	}
	return done
}

// tagSeries applies the processed marker tag when enabled.
func (s *Service) tagSeries(ctx context.Context, logger zerolog.Logger, seriesID int64, label string) {
	if !s.settings.TagProcessedItems || label == "" {
		return
	}
	if err := s.client.TagSeries(ctx, seriesID, label); err != nil {
		logger.Warn().Err(err).
			Int64("seriesId", seriesID).
			Str("tag", label).
			Msg("failed to tag series")
	}
}

// seasonGroup is a set of sampled episodes sharing a series and season.
type seasonGroup struct {
	seriesID int64
	season   int
	episodes []sonarr.Episode
}

// groupBySeason buckets episodes by (series, season) and shuffles the group
// order so the pick is not biased toward whatever the API returned first.
func groupBySeason(episodes []sonarr.Episode) []seasonGroup {
	index := make(map[string]int)
	var groups []seasonGroup

	for _, ep := range episodes {
		key := seasonKey(ep.SeriesID, ep.SeasonNumber)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, seasonGroup{seriesID: ep.SeriesID, season: ep.SeasonNumber})
		}
		groups[i].episodes = append(groups[i].episodes, ep)
	}

	rand.Shuffle(len(groups), func(i, j int) {
		groups[i], groups[j] = groups[j], groups[i]
	})

	return groups
}

// seriesGroup is a set of sampled episodes sharing a series.
type seriesGroup struct {
	seriesID int64
	episodes []sonarr.Episode
}

// groupBySeries buckets episodes by series, shuffling the group order.
func groupBySeries(episodes []sonarr.Episode) []seriesGroup {
	index := make(map[int64]int)
	var groups []seriesGroup

	for _, ep := range episodes {
		i, ok := index[ep.SeriesID]
		if !ok {
			i = len(groups)
			index[ep.SeriesID] = i
			groups = append(groups, seriesGroup{seriesID: ep.SeriesID})
		}
		groups[i].episodes = append(groups[i].episodes, ep)
	}

	rand.Shuffle(len(groups), func(i, j int) {
		groups[i], groups[j] = groups[j], groups[i]
	})

	return groups
}

// shuffleEpisodes randomizes candidate order in place for per-episode modes.
func shuffleEpisodes(episodes []sonarr.Episode) {
	rand.Shuffle(len(episodes), func(i, j int) {
		episodes[i], episodes[j] = episodes[j], episodes[i]
	})
}
