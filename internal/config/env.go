// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	xlog "github.com/ManuGH/courseflow/internal/log"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "COURSEFLOW_"

// envReader applies environment overrides and remembers which keys it read
// and which values it could not parse.
type envReader struct {
	lookup   func(string) (string, bool)
	consumed map[string]struct{}
	errs     []error
}

func newEnvReader(lookup func(string) (string, bool)) *envReader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &envReader{lookup: lookup, consumed: make(map[string]struct{})}
}

// raw returns a non-empty value for key. Empty variables count as unset.
func (r *envReader) raw(key string) (string, bool) {
	key = EnvPrefix + key
	r.consumed[key] = struct{}{}
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	logger := xlog.WithComponent("config")
	if isSensitiveKey(key) {
		logger.Debug().Str("key", key).Str("source", "environment").Bool("sensitive", true).Msg("using environment variable")
	} else {
		logger.Debug().Str("key", key).Str("value", v).Str("source", "environment").Msg("using environment variable")
	}
	return strings.TrimSpace(v), true
}

func (r *envReader) fail(key, value, want string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s%s=%q: expected %s: %w", EnvPrefix, key, value, want, err))
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.raw(key); ok {
		*dst = v
	}
}

func (r *envReader) list(key string, dst *[]string) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "an integer", err)
		return
	}
	*dst = i
}

func (r *envReader) float(key string, dst *float64) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, "a number", err)
		return
	}
	*dst = f
}

// duration accepts Go durations ("5s") and bare integers as seconds.
func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, "a duration", err)
		return
	}
	*dst = d
}

// boolean accepts true/false, 1/0 and yes/no.
func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		r.fail(key, v, "a boolean", strconv.ErrSyntax)
	}
}

// mergeEnv applies every supported override to cfg.
func (r *envReader) mergeEnv(cfg *Config) {
	r.str("API_BASE", &cfg.API.BaseURL)
	r.str("TOKEN", &cfg.API.Token)
	r.str("AUTH_SCHEME", &cfg.API.AuthScheme)
	r.duration("API_TIMEOUT", &cfg.API.Timeout)
	r.float("API_RATE_LIMIT", &cfg.API.RateLimit)
	r.integer("API_RATE_BURST", &cfg.API.RateBurst)
	r.str("USER_AGENT", &cfg.API.UserAgent)

	r.duration("POLL_INTERVAL", &cfg.Ingest.PollInterval)
	r.duration("POLL_TIMEOUT", &cfg.Ingest.PollTimeout)
	r.integer("POLL_MAX_ERRORS", &cfg.Ingest.MaxConsecutiveErrors)
	r.list("UPLOAD_ROLES", &cfg.Ingest.UploadRoles)
	r.str("LEDGER_PATH", &cfg.Ingest.LedgerPath)

	r.duration("CHECKPOINT_THRESHOLD", &cfg.Playback.CheckpointThreshold)
	r.duration("DISPATCH_TIMEOUT", &cfg.Playback.DispatchTimeout)
	r.integer("PENDING_LIMIT", &cfg.Playback.PendingLimit)
	r.integer("BREAKER_THRESHOLD", &cfg.Playback.BreakerThreshold)
	r.duration("BREAKER_COOLDOWN", &cfg.Playback.BreakerCooldown)

	r.duration("PROGRESS_CACHE_TTL", &cfg.Progression.CacheTTL)
	r.integer("REGRESSION_REFETCHES", &cfg.Progression.RegressionRefetches)

	r.str("CACHE_BACKEND", &cfg.Cache.Backend)
	r.duration("CACHE_CLEANUP_INTERVAL", &cfg.Cache.CleanupInterval)
	r.str("REDIS_ADDR", &cfg.Cache.Redis.Addr)
	r.str("REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	r.integer("REDIS_DB", &cfg.Cache.Redis.DB)
	r.str("REDIS_KEY_PREFIX", &cfg.Cache.Redis.KeyPrefix)

	r.str("RESUME_BACKEND", &cfg.Resume.Backend)
	r.str("RESUME_DIR", &cfg.Resume.Dir)

	r.str("LOG_LEVEL", &cfg.Log.Level)
	r.str("LOG_SERVICE", &cfg.Log.Service)

	r.boolean("TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	r.str("TELEMETRY_EXPORTER", &cfg.Telemetry.Exporter)
	r.str("TELEMETRY_ENDPOINT", &cfg.Telemetry.Endpoint)
	r.str("TELEMETRY_ENVIRONMENT", &cfg.Telemetry.Environment)
	r.float("TELEMETRY_SAMPLING_RATE", &cfg.Telemetry.SamplingRate)
}
