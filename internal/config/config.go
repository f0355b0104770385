// Package config loads and validates monitor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Monitor   MonitorConfig  `mapstructure:"monitor"`
	Scrape    ScrapeConfig   `mapstructure:"scrape"`
	Accounts  AccountsConfig `mapstructure:"accounts"`
	DB        DBConfig       `mapstructure:"db"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	Resources ResourceConfig `mapstructure:"resources"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// MonitorConfig governs the cycle orchestrator.
type MonitorConfig struct {
	IntervalSeconds     int `mapstructure:"interval_seconds"`
	ViralThreshold      int `mapstructure:"viral_threshold"`
	MaxConcurrent       int `mapstructure:"max_concurrent_scrapes"`
	AccountDelaySeconds int `mapstructure:"account_delay_seconds"`
	MaxVideos           int `mapstructure:"max_videos_per_account"`
	StatusEvery         int `mapstructure:"status_every_cycles"`
}

// ScrapeConfig configures scrape attempt timeout and retry behavior.
type ScrapeConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// AccountsConfig points at the monitored accounts file.
type AccountsConfig struct {
	File string `mapstructure:"file"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// TelegramConfig holds the alert delivery credentials.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// ResourceConfig sets the process resource ceiling.
type ResourceConfig struct {
	MaxMemoryMB           int `mapstructure:"max_memory_mb"`
	SampleIntervalSeconds int `mapstructure:"sample_interval_seconds"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.interval_seconds", 300)
	v.SetDefault("monitor.viral_threshold", 100)
	v.SetDefault("monitor.max_concurrent_scrapes", 2)
	v.SetDefault("monitor.account_delay_seconds", 5)
	v.SetDefault("monitor.max_videos_per_account", 5)
	v.SetDefault("monitor.status_every_cycles", 5)
	v.SetDefault("scrape.timeout_seconds", 30)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.backoff_initial_ms", 250)
	v.SetDefault("scrape.backoff_max_ms", 5000)
	v.SetDefault("accounts.file", "accounts.csv")
	v.SetDefault("db.provider", "postgres")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("resources.max_memory_mb", 512)
	v.SetDefault("resources.sample_interval_seconds", 60)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Monitor.IntervalSeconds < 60 {
		return fmt.Errorf("monitor.interval_seconds must be >= 60 to avoid rate limits")
	}
	if c.Monitor.ViralThreshold <= 0 {
		return fmt.Errorf("monitor.viral_threshold must be > 0")
	}
	if c.Monitor.MaxConcurrent <= 0 {
		return fmt.Errorf("monitor.max_concurrent_scrapes must be > 0")
	}
	if c.Monitor.MaxConcurrent > 10 {
		return fmt.Errorf("monitor.max_concurrent_scrapes must be <= 10")
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.timeout_seconds must be > 0")
	}
	if c.Accounts.File == "" {
		return fmt.Errorf("accounts.file must be set")
	}
	switch c.DB.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown db.provider: %s", c.DB.Provider)
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set when telegram is enabled")
	}
	return nil
}

// CycleInterval returns the configured cycle spacing as a duration.
func (c Config) CycleInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

// AccountDelay returns the inter-account launch delay.
func (c Config) AccountDelay() time.Duration {
	return time.Duration(c.Monitor.AccountDelaySeconds) * time.Second
}

// ScrapeTimeout returns the per-attempt scrape timeout.
func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the base retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Scrape.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Scrape.BackoffMaxMs) * time.Millisecond
}

// ResourceSampleInterval returns the governor sampling interval.
func (c Config) ResourceSampleInterval() time.Duration {
	return time.Duration(c.Resources.SampleIntervalSeconds) * time.Second
}
