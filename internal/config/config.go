package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	HTTPAddr   string `mapstructure:"http_addr"`
	CronSecret string `mapstructure:"cron_secret"`

	DatabaseURL string `mapstructure:"database_url"`

	PublishersFile string `mapstructure:"publishers_file"`

	RedditAuthToken string `mapstructure:"reddit_auth_token"`

	HTTPTimeoutSeconds    int64         `mapstructure:"http_timeout_seconds"`
	BrowserTimeoutSeconds int64         `mapstructure:"browser_timeout_seconds"`
	HTTPTimeout           time.Duration `mapstructure:"-"`
	BrowserTimeout        time.Duration `mapstructure:"-"`

	SeenCachePath           string        `mapstructure:"seen_cache_path"`
	SeenCacheTTLSeconds     int64         `mapstructure:"seen_cache_ttl_seconds"`
	SeenCacheCleanupSeconds int64         `mapstructure:"seen_cache_cleanup_interval_seconds"`
	SeenCacheTTL            time.Duration `mapstructure:"-"`
	SeenCacheCleanup        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "offer-harvester")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("cron_secret", "")
	v.SetDefault("database_url", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("reddit_auth_token", "")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("browser_timeout_seconds", 90)
	v.SetDefault("seen_cache_path", "./data/seen.db")
	v.SetDefault("seen_cache_ttl_seconds", int64((5*24*time.Hour)/time.Second))
	v.SetDefault("seen_cache_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required")
	}
	if cfg.CronSecret == "" {
		return nil, fmt.Errorf("cron_secret is required")
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	if cfg.BrowserTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid browser_timeout_seconds (must be positive seconds)")
	}
	if cfg.SeenCacheTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid seen_cache_ttl_seconds (must be positive seconds)")
	}
	if cfg.SeenCacheCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid seen_cache_cleanup_interval_seconds (must be positive seconds)")
	}

	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	cfg.BrowserTimeout = time.Duration(cfg.BrowserTimeoutSeconds) * time.Second
	cfg.SeenCacheTTL = time.Duration(cfg.SeenCacheTTLSeconds) * time.Second
	cfg.SeenCacheCleanup = time.Duration(cfg.SeenCacheCleanupSeconds) * time.Second

	return &cfg, nil
}
