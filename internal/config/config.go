// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads courseflow configuration.
//
// Precedence is ENV > YAML file > defaults. The file is parsed strictly;
// unknown keys fail the load.
package config

import "time"

// Config is the effective configuration.
type Config struct {
	Version string `yaml:"-"`

	API         APIConfig         `yaml:"api"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Playback    PlaybackConfig    `yaml:"playback"`
	Progression ProgressionConfig `yaml:"progression"`
	Cache       CacheConfig       `yaml:"cache"`
	Resume      ResumeConfig      `yaml:"resume"`
	Log         LogConfig         `yaml:"log"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// APIConfig points at the course platform backend.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url" validate:"required,url,startswith=http"`
	Token      string        `yaml:"token"`
	AuthScheme string        `yaml:"auth_scheme" validate:"oneof=Token Bearer"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	RateLimit  float64       `yaml:"rate_limit" validate:"gt=0"`
	RateBurst  int           `yaml:"rate_burst" validate:"gte=1"`
	UserAgent  string        `yaml:"user_agent"`
}

// IngestConfig tunes uploads and status polling.
type IngestConfig struct {
	PollInterval         time.Duration `yaml:"poll_interval" validate:"gt=0"`
	PollTimeout          time.Duration `yaml:"poll_timeout" validate:"gt=0"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors" validate:"gte=0"`
	UploadRoles          []string      `yaml:"upload_roles"`
	// LedgerPath is where orphaned uploads are recorded. Empty disables it.
	LedgerPath string `yaml:"ledger_path"`
}

// PlaybackConfig tunes checkpoint dispatch.
type PlaybackConfig struct {
	CheckpointThreshold time.Duration `yaml:"checkpoint_threshold" validate:"gte=1s"`
	DispatchTimeout     time.Duration `yaml:"dispatch_timeout" validate:"gt=0"`
	PendingLimit        int           `yaml:"pending_limit" validate:"gte=0"`
	BreakerThreshold    int           `yaml:"breaker_threshold" validate:"gte=1"`
	BreakerCooldown     time.Duration `yaml:"breaker_cooldown" validate:"gt=0"`
}

// ProgressionConfig tunes the course view service.
type ProgressionConfig struct {
	CacheTTL            time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	RegressionRefetches int           `yaml:"regression_refetches" validate:"gte=0,lte=5"`
}

// CacheConfig selects the progress cache backend.
type CacheConfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=memory redis none"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gte=0"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig is used when Cache.Backend is "redis".
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0,lte=15"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ResumeConfig selects the local checkpoint mirror.
type ResumeConfig struct {
	Backend string `yaml:"backend" validate:"oneof=sqlite memory"`
	Dir     string `yaml:"dir"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level   string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Service string `yaml:"service"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"oneof=grpc http noop"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000/api",
			AuthScheme: "Token",
			Timeout:    10 * time.Second,
			RateLimit:  10,
			RateBurst:  20,
			UserAgent:  "courseflow",
		},
		Ingest: IngestConfig{
			PollInterval: 3 * time.Second,
			PollTimeout:  10 * time.Second,
			UploadRoles:  []string{"admin"},
		},
		Playback: PlaybackConfig{
			CheckpointThreshold: 5 * time.Second,
			DispatchTimeout:     10 * time.Second,
			BreakerThreshold:    3,
			BreakerCooldown:     30 * time.Second,
		},
		Progression: ProgressionConfig{
			CacheTTL:            30 * time.Second,
			RegressionRefetches: 1,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			CleanupInterval: time.Minute,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "courseflow:",
			},
		},
		Resume: ResumeConfig{
			Backend: "sqlite",
		},
		Log: LogConfig{
			Level:   "info",
			Service: "courseflow",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "development",
			SamplingRate: 1.0,
		},
	}
}
