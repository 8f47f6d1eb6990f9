// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Robots    RobotsConfig    `mapstructure:"robots"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Pool      PoolConfig      `mapstructure:"pool"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	DB        DBConfig        `mapstructure:"db"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the read-only HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs crawl engine behavior.
type CrawlerConfig struct {
	MaxDepth          int      `mapstructure:"max_depth"`
	UserAgent         string   `mapstructure:"user_agent"`
	PolitenessDelayMs int      `mapstructure:"politeness_delay_ms"`
	Seeds             []string `mapstructure:"seeds"`
}

// RobotsConfig bounds robots.txt retrieval.
type RobotsConfig struct {
	FetchTimeoutMs int `mapstructure:"fetch_timeout_ms"`
}

// SchedulerConfig sets the pending-scan period.
type SchedulerConfig struct {
	IntervalMs int `mapstructure:"interval_ms"`
}

// PoolConfig bounds worker-pool concurrency.
type PoolConfig struct {
	MinWorkers int `mapstructure:"min_workers"`
	MaxWorkers int `mapstructure:"max_workers"`
	Backlog    int `mapstructure:"backlog"`
}

// HTTPConfig configures the page-fetch HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// DBConfig selects and configures the persistence backend.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.max_depth", 5)
	v.SetDefault("crawler.user_agent", "search-engine-bot/1.0")
	v.SetDefault("crawler.politeness_delay_ms", 500)
	v.SetDefault("robots.fetch_timeout_ms", 5000)
	v.SetDefault("scheduler.interval_ms", 60000)
	v.SetDefault("pool.min_workers", 5)
	v.SetDefault("pool.max_workers", 10)
	v.SetDefault("pool.backlog", 50)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxDepth <= 0 {
		return fmt.Errorf("crawler.max_depth must be > 0")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Scheduler.IntervalMs <= 0 {
		return fmt.Errorf("scheduler.interval_ms must be > 0")
	}
	if c.Pool.MinWorkers <= 0 {
		return fmt.Errorf("pool.min_workers must be > 0")
	}
	if c.Pool.MaxWorkers < c.Pool.MinWorkers {
		return fmt.Errorf("pool.max_workers must be >= pool.min_workers")
	}
	if c.Pool.Backlog <= 0 {
		return fmt.Errorf("pool.backlog must be > 0")
	}
	switch c.DB.Provider {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown db.provider: %s", c.DB.Provider)
	}
	return nil
}

// PolitenessDelay returns the per-fetch pause as a duration.
func (c CrawlerConfig) PolitenessDelay() time.Duration {
	return time.Duration(c.PolitenessDelayMs) * time.Millisecond
}

// FetchTimeout returns the robots.txt fetch timeout as a duration.
func (c RobotsConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// Interval returns the scan period as a duration.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Timeout returns the page-fetch timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
