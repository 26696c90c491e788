package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// DatabaseURL is a postgres:// URL or a SQLite file path.
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`

	HistoryLimit         int `mapstructure:"history_limit" yaml:"history_limit"`
	MaxHistoryLimit      int `mapstructure:"max_history_limit" yaml:"max_history_limit"`
	BroadcastConcurrency int `mapstructure:"broadcast_concurrency" yaml:"broadcast_concurrency"`

	// RedisAddr enables the history cache when set.
	RedisAddr       string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db" yaml:"redis_db"`
	HistoryCacheTTL time.Duration `mapstructure:"history_cache_ttl" yaml:"history_cache_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		ReadHeaderTimeout:    5 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		WriteTimeout:         10 * time.Second,
		LogLevel:             "info",
		LogFormat:            "console",
		DatabaseURL:          "groupchat.db",
		HistoryLimit:         50,
		MaxHistoryLimit:      500,
		BroadcastConcurrency: 32,
		HistoryCacheTTL:      5 * time.Minute,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabaseURL != "" {
		c.DatabaseURL = other.DatabaseURL
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.MaxHistoryLimit != 0 {
		c.MaxHistoryLimit = other.MaxHistoryLimit
	}
	if other.BroadcastConcurrency != 0 {
		c.BroadcastConcurrency = other.BroadcastConcurrency
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.RedisPassword != "" {
		c.RedisPassword = other.RedisPassword
	}
	if other.RedisDB != 0 {
		c.RedisDB = other.RedisDB
	}
	if other.HistoryCacheTTL != 0 {
		c.HistoryCacheTTL = other.HistoryCacheTTL
	}
}
