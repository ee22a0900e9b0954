package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Tokens   TokensConfig   `mapstructure:"tokens"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	UI       UIConfig       `mapstructure:"ui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FeedConfig holds price simulation parameters
type FeedConfig struct {
	MinInterval    time.Duration `mapstructure:"min_interval"`
	MaxInterval    time.Duration `mapstructure:"max_interval"`
	MaxPriceMove   float64       `mapstructure:"max_price_move"`   // fraction, 0.05 = ±5%
	MaxChangeDrift float64       `mapstructure:"max_change_drift"` // percentage points per tick, 0 disables drift
}

// TokensConfig holds upstream token source configuration
type TokensConfig struct {
	Source          string        `mapstructure:"source"` // mock | http
	URL             string        `mapstructure:"url"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelayBase  time.Duration `mapstructure:"retry_delay_base"`
	MockCount       int           `mapstructure:"mock_count"`
	MockDelay       time.Duration `mapstructure:"mock_delay"`
}

// AlertsConfig holds alert persistence configuration
type AlertsConfig struct {
	StorageKey string `mapstructure:"storage_key"`
}

// StorageConfig holds key-value persistence configuration
type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // sqlite | redis
	DBPath        string `mapstructure:"db_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPassword string `mapstructure:"redis_password"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ServerConfig holds the HTTP API and event stream configuration
type ServerConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // empty allows any origin
}

// UIConfig holds terminal dashboard configuration
type UIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"` // empty writes to stderr
}

// DefaultUILogFile receives logs when the terminal UI is enabled and no
// logging.file is set, so log lines never draw over the dashboard.
const DefaultUILogFile = "./data/tokenpulse.log"

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TOKENPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.UI.Enabled && cfg.Logging.File == "" {
		cfg.Logging.File = DefaultUILogFile
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Feed defaults
	v.SetDefault("feed.min_interval", "1s")
	v.SetDefault("feed.max_interval", "2s")
	v.SetDefault("feed.max_price_move", 0.05)
	v.SetDefault("feed.max_change_drift", 1.0)

	// Token source defaults
	v.SetDefault("tokens.source", "mock")
	v.SetDefault("tokens.refresh_interval", "20s")
	v.SetDefault("tokens.timeout", "10s")
	v.SetDefault("tokens.max_retries", 3)
	v.SetDefault("tokens.retry_delay_base", "1s")
	v.SetDefault("tokens.mock_count", 30)
	v.SetDefault("tokens.mock_delay", "1s")

	// Alerts defaults
	v.SetDefault("alerts.storage_key", "price_alerts")

	// Storage defaults
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.db_path", "./data/tokenpulse.db")
	v.SetDefault("storage.redis_addr", "localhost:6379")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{})

	// UI defaults
	v.SetDefault("ui.enabled", false)
	v.SetDefault("ui.refresh_rate", "500ms")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Feed config
	if c.Feed.MinInterval <= 0 {
		return fmt.Errorf("feed.min_interval must be positive")
	}
	if c.Feed.MaxInterval < c.Feed.MinInterval {
		return fmt.Errorf("feed.max_interval must not be less than feed.min_interval")
	}
	if c.Feed.MaxPriceMove < 0 || c.Feed.MaxPriceMove >= 1 {
		return fmt.Errorf("feed.max_price_move must be in [0, 1)")
	}
	if c.Feed.MaxChangeDrift < 0 {
		return fmt.Errorf("feed.max_change_drift must not be negative")
	}

	// Validate Tokens config
	switch c.Tokens.Source {
	case "mock":
		if c.Tokens.MockCount < 1 {
			return fmt.Errorf("tokens.mock_count must be at least 1")
		}
	case "http":
		if c.Tokens.URL == "" {
			return fmt.Errorf("tokens.url is required when tokens.source is http")
		}
	default:
		return fmt.Errorf("tokens.source must be one of: mock, http")
	}
	if c.Tokens.RefreshInterval < time.Second {
		return fmt.Errorf("tokens.refresh_interval must be at least 1 second")
	}

	// Validate Alerts config
	if c.Alerts.StorageKey == "" {
		return fmt.Errorf("alerts.storage_key is required")
	}

	// Validate Storage config
	switch c.Storage.Backend {
	case "sqlite":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required when storage.backend is redis")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: sqlite, redis")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when server is enabled")
	}

	// Validate Logging config
	if c.UI.Enabled && c.Logging.File == "" {
		return fmt.Errorf("logging.file is required when ui is enabled")
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
