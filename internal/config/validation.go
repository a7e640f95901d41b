// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError is one invalid setting.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// ValidationError lists every invalid setting of a configuration.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// Validate checks struct constraints and cross-field rules.
func Validate(cfg Config) error {
	verr := &ValidationError{}

	if err := validate.Struct(cfg); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return err
		}
		for _, fe := range ves {
			verr.add(strings.TrimPrefix(fe.Namespace(), "Config."), describe(fe))
		}
	}

	if cfg.Cache.Backend == "redis" && strings.TrimSpace(cfg.Cache.Redis.Addr) == "" {
		verr.add("Cache.Redis.Addr", "required when cache backend is redis")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Exporter != "noop" && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		verr.add("Telemetry.Endpoint", "required when telemetry is enabled")
	}
	for _, role := range cfg.Ingest.UploadRoles {
		if strings.TrimSpace(role) == "" {
			verr.add("Ingest.UploadRoles", "must not contain empty roles")
			break
		}
	}
	if cfg.Ingest.PollTimeout > 0 && cfg.Ingest.PollInterval > 0 && cfg.Ingest.PollTimeout < cfg.Ingest.PollInterval/10 {
		verr.add("Ingest.PollTimeout", fmt.Sprintf("%s is too short for a poll interval of %s", cfg.Ingest.PollTimeout, cfg.Ingest.PollInterval))
	}

	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("must be a URL, got %q", fmt.Sprint(fe.Value()))
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	default:
		return fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
	}
}
