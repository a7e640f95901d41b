// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type scopeKey struct{}

// Scope carries the identifiers of the current operation. Empty fields are
// left off log lines.
type Scope struct {
	CorrelationID string
	ViewerID      string
	CourseID      string
	MediaID       string
}

func (s Scope) merge(over Scope) Scope {
	if over.CorrelationID != "" {
		s.CorrelationID = over.CorrelationID
	}
	if over.ViewerID != "" {
		s.ViewerID = over.ViewerID
	}
	if over.CourseID != "" {
		s.CourseID = over.CourseID
	}
	if over.MediaID != "" {
		s.MediaID = over.MediaID
	}
	return s
}

func (s Scope) empty() bool { return s == Scope{} }

// WithScope returns a context whose scope is the existing one with the
// non-empty fields of s laid over it.
func WithScope(ctx context.Context, s Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, ScopeFrom(ctx).merge(s))
}

// ScopeFrom returns the scope stored in ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// WithContext adds the scope fields of ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	s := ScopeFrom(ctx)
	if s.empty() {
		return logger
	}
	c := logger.With()
	for _, f := range [...]struct{ key, val string }{
		{FieldCorrelationID, s.CorrelationID},
		{FieldViewerID, s.ViewerID},
		{FieldCourseID, s.CourseID},
		{FieldMediaID, s.MediaID},
	} {
		if f.val != "" {
			c = c.Str(f.key, f.val)
		}
	}
	return c.Logger()
}

// WithComponentFromContext is WithComponent plus the scope of ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
