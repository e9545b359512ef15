package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Version is the application version, overridden at build time.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Database DatabaseConfig   `mapstructure:"database"`
	Logging  LoggingConfig    `mapstructure:"logging"`
	Sonarr   []InstanceConfig `mapstructure:"sonarr"`
	Hunt     HuntConfig       `mapstructure:"hunt"`
}

// ServerConfig holds the status HTTP API configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// InstanceConfig describes one Sonarr instance to hunt against.
type InstanceConfig struct {
	Name          string `mapstructure:"name"`
	URL           string `mapstructure:"url"`
	APIKey        string `mapstructure:"api_key"`
	APITimeout    int    `mapstructure:"api_timeout"` // seconds
	SkipSSLVerify bool   `mapstructure:"skip_ssl_verify"`
}

// HuntConfig holds the per-cycle hunting settings shared by all instances.
type HuntConfig struct {
	SweepCron           string `mapstructure:"sweep_cron"`
	RunOnStart          bool   `mapstructure:"run_on_start"`
	MonitoredOnly       bool   `mapstructure:"monitored_only"`
	SkipFutureEpisodes  bool   `mapstructure:"skip_future_episodes"`
	AirDateDelayDays    int    `mapstructure:"air_date_delay_days"`
	HuntMissingItems    int    `mapstructure:"hunt_missing_items"`
	HuntMissingMode     string `mapstructure:"hunt_missing_mode"`
	HuntUpgradeItems    int    `mapstructure:"hunt_upgrade_items"`
	UpgradeMode         string `mapstructure:"upgrade_mode"`
	CommandWaitDelay    int    `mapstructure:"command_wait_delay"`    // seconds
	CommandWaitAttempts int    `mapstructure:"command_wait_attempts"`
	TagSearchLabel      string `mapstructure:"tag_search_label"`
	TagUpgradeLabel     string `mapstructure:"tag_upgrade_label"`
	TagProcessedItems   bool   `mapstructure:"tag_processed_items"`
	MissingTagLabel     string `mapstructure:"missing_tag_label"`
	UpgradeTagLabel     string `mapstructure:"upgrade_tag_label"`
	HourlyAPICap        int    `mapstructure:"hourly_api_cap"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.seekarr")
	}

	v.SetEnvPrefix("SEEKARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; defaults + env vars are enough to run.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every configured instance is usable.
func (c *Config) Validate() error {
	for i, inst := range c.Sonarr {
		if inst.URL == "" {
			return fmt.Errorf("sonarr instance %d (%q): url is required", i, inst.Name)
		}
		if !strings.HasPrefix(inst.URL, "http://") && !strings.HasPrefix(inst.URL, "https://") {
			return fmt.Errorf("sonarr instance %d (%q): url must start with http:// or https://", i, inst.Name)
		}
		if inst.APIKey == "" {
			return fmt.Errorf("sonarr instance %d (%q): api_key is required", i, inst.Name)
		}
	}

	switch c.Hunt.HuntMissingMode {
	case "season_packs", "shows", "episodes":
	default:
		return fmt.Errorf("hunt.hunt_missing_mode %q: valid options are season_packs, shows, episodes", c.Hunt.HuntMissingMode)
	}

	switch c.Hunt.UpgradeMode {
	case "season_packs", "episodes":
	default:
		return fmt.Errorf("hunt.upgrade_mode %q: valid options are season_packs, episodes", c.Hunt.UpgradeMode)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9705)

	v.SetDefault("database.path", "./data/seekarr.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("hunt.sweep_cron", "*/15 * * * *")
	v.SetDefault("hunt.run_on_start", false)
	v.SetDefault("hunt.monitored_only", true)
	v.SetDefault("hunt.skip_future_episodes", true)
	v.SetDefault("hunt.air_date_delay_days", 0)
	v.SetDefault("hunt.hunt_missing_items", 5)
	v.SetDefault("hunt.hunt_missing_mode", "season_packs")
	v.SetDefault("hunt.hunt_upgrade_items", 5)
	v.SetDefault("hunt.upgrade_mode", "season_packs")
	v.SetDefault("hunt.command_wait_delay", 1)
	v.SetDefault("hunt.command_wait_attempts", 600)
	v.SetDefault("hunt.tag_search_label", "search")
	v.SetDefault("hunt.tag_upgrade_label", "done")
	v.SetDefault("hunt.tag_processed_items", true)
	v.SetDefault("hunt.missing_tag_label", "seekarr-missing")
	v.SetDefault("hunt.upgrade_tag_label", "seekarr-upgraded")
	v.SetDefault("hunt.hourly_api_cap", 20)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
