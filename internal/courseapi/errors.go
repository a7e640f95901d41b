// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package courseapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnauthorized = errors.New("courseapi: caller lacks permission")
	ErrNotFound     = errors.New("courseapi: resource not found")
	ErrConflict     = errors.New("courseapi: conflicting state")
	ErrRejected     = errors.New("courseapi: request rejected")
	ErrUpstream     = errors.New("courseapi: internal error (5xx)")
	ErrUnavailable  = errors.New("courseapi: host unreachable or transport failure")
	ErrTimeout      = errors.New("courseapi: request timed out")
	ErrBadResponse  = errors.New("courseapi: invalid response format")
	ErrNoCredential = errors.New("courseapi: missing credential")
)

// APIError wraps a sentinel with the failing operation and what the backend said.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Message   string // "error"/"detail" field of the response body, if any
	Err       error  // lower-level cause (net.Error, decode error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsTransient reports whether err is worth another poll tick: timeouts,
// transport failures and 5xx answers.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUpstream)
}

func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status >= 500:
		return ErrUpstream
	default:
		return ErrRejected
	}
}

func transportError(op string, err error) *APIError {
	sentinel := ErrUnavailable
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		sentinel = ErrTimeout
	}
	return &APIError{Sentinel: sentinel, Operation: op, Err: err}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
