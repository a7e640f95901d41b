// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuGH/courseflow/internal/courseapi"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/metrics"
	"github.com/rs/zerolog"
)

// Job statuses reported by the backend.
const (
	StatusConverting = "converting"
	StatusPackaging  = "packaging"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 10 * time.Second
)

// StatusSource answers job status queries.
type StatusSource interface {
	VideoStatus(ctx context.Context, cred courseapi.Credential, mediaID courseapi.ID) (*courseapi.JobStatus, error)
}

// PollerConfig tunes the status poll loop.
type PollerConfig struct {
	Interval    time.Duration
	TickTimeout time.Duration
	// MaxConsecutiveErrors aborts the loop after that many failed ticks in a
	// row. Zero keeps polling until a terminal status or cancellation.
	MaxConsecutiveErrors int
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = DefaultPollTimeout
	}
	if c.MaxConsecutiveErrors < 0 {
		c.MaxConsecutiveErrors = 0
	}
	return c
}

// Poller queries one job until it reaches a terminal status. Exactly one
// request is outstanding at a time: the next tick is armed only after the
// previous request resolved or timed out.
type Poller struct {
	src    StatusSource
	cred   courseapi.Credential
	cfg    PollerConfig
	logger zerolog.Logger
}

// NewPoller returns a poller querying src with cred.
func NewPoller(src StatusSource, cred courseapi.Credential, cfg PollerConfig) *Poller {
	return &Poller{
		src:    src,
		cred:   cred,
		cfg:    cfg.withDefaults(),
		logger: xlog.WithComponent("ingest.poller"),
	}
}

// Run polls mediaID. onStatus sees every response received before ctx is
// done; a response that arrives after cancellation is dropped. Run returns
// the terminal status, or ctx.Err() once ctx is done.
func (p *Poller) Run(ctx context.Context, mediaID courseapi.ID, onStatus func(courseapi.JobStatus)) (courseapi.JobStatus, error) {
	if onStatus == nil {
		onStatus = func(courseapi.JobStatus) {}
	}
	logger := p.logger.With().Str(xlog.FieldMediaID, mediaID.String()).Logger()

	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return courseapi.JobStatus{}, ctx.Err()
		case <-timer.C:
		}

		st, err := p.tick(ctx, mediaID)
		if ctx.Err() != nil {
			metrics.RecordPoll("discarded")
			return courseapi.JobStatus{}, ctx.Err()
		}

		if err != nil {
			if errors.Is(err, courseapi.ErrUnauthorized) {
				metrics.RecordPoll("unauthorized")
				return courseapi.JobStatus{}, &AuthorizationError{Op: "poll", Err: err}
			}
			if !courseapi.IsTransient(err) && !errors.Is(err, courseapi.ErrNotFound) {
				metrics.RecordPoll("error")
				return courseapi.JobStatus{}, err
			}
			failures++
			metrics.RecordPoll("transient_error")
			logger.Warn().Err(err).
				Str(xlog.FieldEvent, "ingest.poll_failed").
				Int(xlog.FieldAttempt, failures).
				Msg("status poll failed, waiting for next tick")
			if p.cfg.MaxConsecutiveErrors > 0 && failures >= p.cfg.MaxConsecutiveErrors {
				return courseapi.JobStatus{}, err
			}
			timer.Reset(p.cfg.Interval)
			continue
		}

		failures = 0
		st.Status = strings.ToLower(strings.TrimSpace(st.Status))
		metrics.RecordPoll("ok")
		onStatus(*st)

		switch st.Status {
		case StatusReady, StatusFailed:
			return *st, nil
		case StatusConverting, StatusPackaging:
		default:
			logger.Debug().
				Str(xlog.FieldEvent, "ingest.poll_unknown_status").
				Str(xlog.FieldStatus, st.Status).
				Msg("non-terminal status not recognised, continuing")
		}
		timer.Reset(p.cfg.Interval)
	}
}

func (p *Poller) tick(ctx context.Context, mediaID courseapi.ID) (*courseapi.JobStatus, error) {
	tickCtx, cancel := context.WithTimeout(ctx, p.cfg.TickTimeout)
	defer cancel()
	return p.src.VideoStatus(tickCtx, p.cred, mediaID)
}
