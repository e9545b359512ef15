package hunt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seekarr/seekarr/internal/config"
)

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.HuntConfig{
		MonitoredOnly:       true,
		SkipFutureEpisodes:  true,
		AirDateDelayDays:    3,
		HuntMissingItems:    5,
		HuntMissingMode:     "episodes",
		HuntUpgradeItems:    2,
		UpgradeMode:         "season_packs",
		CommandWaitDelay:    1,
		CommandWaitAttempts: 600,
		TagSearchLabel:      "search",
		TagUpgradeLabel:     "done",
		TagProcessedItems:   true,
		MissingTagLabel:     "seekarr-missing",
		UpgradeTagLabel:     "seekarr-upgraded",
		HourlyAPICap:        20,
	}

	settings := SettingsFromConfig(cfg)

	assert.Equal(t, 72*time.Hour, settings.AirDateDelay)
	assert.Equal(t, time.Second, settings.CommandWaitDelay)
	assert.Equal(t, 600, settings.CommandWaitAttempts)
	assert.Equal(t, 5, settings.MissingItems)
	assert.Equal(t, ModeEpisodes, settings.MissingMode)
	assert.Equal(t, 2, settings.UpgradeItems)
	assert.Equal(t, ModeSeasonPacks, settings.UpgradeMode)
	assert.Equal(t, "search", settings.TagSearchLabel)
	assert.Equal(t, "done", settings.TagUpgradeLabel)
	assert.Equal(t, int64(20), settings.HourlyAPICap)
	assert.True(t, settings.TagProcessedItems)
	assert.True(t, settings.MonitoredOnly)
	assert.True(t, settings.SkipFutureEpisodes)
}
