// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and JUDGEFLOW_ env vars.
// - Errors wrap ErrLoadConfig or ErrInvalidConfig so callers can use errors.Is.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BlockSize is the number of teams per assignment.
	BlockSize int `koanf:"block_size"`

	// ClosenessCap bounds the number span of a block in the first pass.
	ClosenessCap int `koanf:"closeness_cap"`

	// WorkerCount sets the number of floor shards.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds each shard's job queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize caps remembered request ids; <= 0 is unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// DedupeTTLMS is how long a request id counts as seen.
	DedupeTTLMS int `koanf:"dedupe_ttl_ms"`

	// GenerateTimeoutMS bounds how long a generate call waits for its shard.
	GenerateTimeoutMS int `koanf:"generate_timeout_ms"`

	// Store selects the persistence backend: memory or postgres.
	Store string `koanf:"store"`

	// DatabaseURL is the PostgreSQL DSN, required when Store is postgres.
	DatabaseURL string `koanf:"database_url"`

	// SeedFile is a YAML snapshot loaded at startup.
	SeedFile string `koanf:"seed_file"`

	// NATSURL enables plan notifications when set.
	NATSURL string `koanf:"nats_url"`

	// NATSSubject is the subject prefix for plan notifications.
	NATSSubject string `koanf:"nats_subject"`

	// JWTSecret enables the admin guard when set (HS256).
	JWTSecret string `koanf:"jwt_secret"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		BlockSize:         5,
		ClosenessCap:      15,
		WorkerCount:       runtime.NumCPU(),
		QueueSize:         1024,
		DedupeSize:        10_000,
		DedupeTTLMS:       600_000,
		GenerateTimeoutMS: 10_000,
		Store:             StoreMemory,
		NATSSubject:       "judgeflow.plans",
	}
}

// Validate checks the values a process cannot start without.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.BlockSize < 1:
		return fmt.Errorf("%w: block_size must be at least 1, got %d", ErrInvalidConfig, c.BlockSize)
	case c.ClosenessCap < 0:
		return fmt.Errorf("%w: closeness_cap must not be negative, got %d", ErrInvalidConfig, c.ClosenessCap)
	}

	switch strings.ToLower(c.Store) {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// DedupeTTL returns DedupeTTLMS as a duration.
func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLMS) * time.Millisecond
}

// GenerateTimeout returns GenerateTimeoutMS as a duration; zero means no limit.
func (c *Config) GenerateTimeout() time.Duration {
	if c.GenerateTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.GenerateTimeoutMS) * time.Millisecond
}
