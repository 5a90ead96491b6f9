// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Report store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory evaluation queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many request ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// Parallelism bounds concurrent subgroup evaluation inside one job.
	Parallelism int `koanf:"parallelism"`

	// MinSubgroupSize is the default minimum number of flagged records a
	// subgroup needs to be evaluated.
	MinSubgroupSize int `koanf:"min_subgroup_size"`

	// LabelThreshold binarizes soft labels when a request does not set one.
	LabelThreshold float64 `koanf:"label_threshold"`

	// MaxListLimit caps GET /evaluations?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// Store selects the report backend: memory, sqlite or redis.
	Store string `koanf:"store"`

	SQLitePath string `koanf:"sqlite_path"`

	RedisAddr   string `koanf:"redis_addr"`
	RedisDB     int    `koanf:"redis_db"`
	RedisPrefix string `koanf:"redis_prefix"`

	// ReportTTLSeconds expires stored reports in redis. Zero keeps them.
	ReportTTLSeconds int `koanf:"report_ttl_seconds"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       1_000,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      10_000,
		Parallelism:     runtime.NumCPU(),
		MinSubgroupSize: 100,
		LabelThreshold:  0.5,
		MaxListLimit:    100,
		Store:           StoreMemory,
		SQLitePath:      "biasaudit.db",
		RedisAddr:       "localhost:6379",
		RedisPrefix:     "biasaudit",
	}
}

// ReportTTL returns ReportTTLSeconds as a duration.
func (c *Config) ReportTTL() time.Duration {
	return time.Duration(c.ReportTTLSeconds) * time.Second
}

// Validate checks the values a running service depends on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.LabelThreshold < 0 || c.LabelThreshold > 1 {
		return fmt.Errorf("%w: label_threshold %v out of [0,1]", ErrInvalidConfig, c.LabelThreshold)
	}
	if c.MinSubgroupSize < 0 {
		return fmt.Errorf("%w: min_subgroup_size must not be negative", ErrInvalidConfig)
	}
	if c.ReportTTLSeconds < 0 {
		return fmt.Errorf("%w: report_ttl_seconds must not be negative", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	return nil
}
