package hunt

import (
	"time"

	"github.com/seekarr/seekarr/internal/config"
)

// Hunt modes for missing content.
const (
	ModeSeasonPacks = "season_packs"
	ModeShows       = "shows"
	ModeEpisodes    = "episodes"
)

// Oversampling factors applied when drawing random candidates. Grouping,
// de-duplication and eligibility filtering all shrink the candidate pool, so
// more raw records are drawn than items will be dispatched.
const (
	missingSeasonOversample = 20
	upgradeSeasonOversample = 10
	episodeOversample       = 2
)

// Settings captures a hunt service's behavior. It is resolved from
// configuration at construction and fixed for the service's lifetime, so a
// cycle never observes a mid-run change.
type Settings struct {
	MonitoredOnly      bool
	SkipFutureEpisodes bool
	AirDateDelay       time.Duration

	MissingItems int
	MissingMode  string
	UpgradeItems int
	UpgradeMode  string

	CommandWaitDelay    time.Duration
	CommandWaitAttempts int

	TagSearchLabel  string
	TagUpgradeLabel string

	TagProcessedItems bool
	MissingTagLabel   string
	UpgradeTagLabel   string

	HourlyAPICap int64
}

// SettingsFromConfig converts the raw configuration into cycle settings.
func SettingsFromConfig(cfg config.HuntConfig) Settings {
	return Settings{
		MonitoredOnly:       cfg.MonitoredOnly,
		SkipFutureEpisodes:  cfg.SkipFutureEpisodes,
		AirDateDelay:        time.Duration(cfg.AirDateDelayDays) * 24 * time.Hour,
		MissingItems:        cfg.HuntMissingItems,
		MissingMode:         cfg.HuntMissingMode,
		UpgradeItems:        cfg.HuntUpgradeItems,
		UpgradeMode:         cfg.UpgradeMode,
		CommandWaitDelay:    time.Duration(cfg.CommandWaitDelay) * time.Second,
		CommandWaitAttempts: cfg.CommandWaitAttempts,
		TagSearchLabel:      cfg.TagSearchLabel,
		TagUpgradeLabel:     cfg.TagUpgradeLabel,
		TagProcessedItems:   cfg.TagProcessedItems,
		MissingTagLabel:     cfg.MissingTagLabel,
		UpgradeTagLabel:     cfg.UpgradeTagLabel,
		HourlyAPICap:        int64(cfg.HourlyAPICap),
	}
}
