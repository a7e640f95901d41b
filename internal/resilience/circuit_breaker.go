// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience keeps best-effort writers from hammering a dead backend.
package resilience

import (
	"errors"
	"sync"
	"time"

	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/metrics"
	"github.com/rs/zerolog"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker opens after Threshold consecutive counted failures and
// rejects calls until Cooldown has passed. It then lets exactly one probe
// through; the probe's outcome closes or re-opens it.
type CircuitBreaker struct {
	mu        sync.Mutex
	name      string
	state     State
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	probing   bool
	clock     clock
	logger    zerolog.Logger
	// counts decides whether an error says anything about backend health.
	counts func(error) bool
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithFailureFilter limits which errors count as failures. Errors for which
// counts returns false pass through without affecting the breaker.
func WithFailureFilter(counts func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = counts }
}

// NewCircuitBreaker returns a closed breaker. name labels metrics and logs.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	cb := &CircuitBreaker{
		name:      name,
		state:     StateClosed,
		threshold: threshold,
		cooldown:  cooldown,
		clock:     realClock{},
		logger:    xlog.WithComponent("resilience"),
		counts:    func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetBreakerState(cb.name, string(cb.state))
	return cb
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, ok := cb.admit()
	if !ok {
		metrics.RecordBreakerRejection(cb.name)
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}
	switch {
	case err == nil:
		cb.failures = 0
		cb.transitionTo(StateClosed, "")
	case !cb.counts(err):
		if probe {
			// Inconclusive probe; allow another one.
			cb.transitionTo(StateOpen, "")
			cb.openedAt = cb.clock.Now().Add(-cb.cooldown)
		}
	case probe:
		cb.failures++
		cb.transitionTo(StateOpen, "probe_failed")
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.threshold {
			cb.transitionTo(StateOpen, "threshold")
		}
	}
	return err
}

func (cb *CircuitBreaker) admit() (probe, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) < cb.cooldown {
			return false, false
		}
		cb.transitionTo(StateHalfOpen, "")
	}
	if cb.probing {
		return false, false
	}
	cb.probing = true
	return true, true
}

// transitionTo must be called with mu held.
func (cb *CircuitBreaker) transitionTo(next State, reason string) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	if next == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	if reason != "" {
		metrics.RecordBreakerTrip(cb.name, reason)
	}
	metrics.SetBreakerState(cb.name, string(next))
	cb.logger.Info().
		Str("breaker", cb.name).
		Str(xlog.FieldOldState, string(prev)).
		Str(xlog.FieldNewState, string(next)).
		Msg("circuit breaker state changed")
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
