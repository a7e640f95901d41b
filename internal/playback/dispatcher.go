// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/courseflow/internal/courseapi"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/metrics"
	"github.com/ManuGH/courseflow/internal/resilience"
	"github.com/rs/zerolog"
)

const (
	triggerTick   = "tick"
	triggerFlush  = "flush"
	triggerPause  = "pause"
	triggerEnded  = "ended"
	triggerDetach = "detach"
)

type checkpoint struct {
	seconds int64
	trigger string
}

// dispatcher delivers checkpoints for one session from a single goroutine.
// The mailbox holds one entry; a newer checkpoint replaces an undelivered one.
type dispatcher struct {
	media  MediaRef
	send   func(ctx context.Context, seconds int64) error
	ack    func(ctx context.Context, seconds int64)
	limit  int
	logger zerolog.Logger

	mu      sync.Mutex
	next    *checkpoint
	closing bool
	pending int

	wake    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
	sent    atomic.Int64
}

func newDispatcher(media MediaRef, limit int, logger zerolog.Logger,
	send func(context.Context, int64) error, ack func(context.Context, int64)) *dispatcher {
	return &dispatcher{
		media:  media,
		send:   send,
		ack:    ack,
		limit:  limit,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (d *dispatcher) submit(c checkpoint) {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return
	}
	if d.next != nil {
		metrics.RecordCheckpointDispatch(d.next.trigger, "superseded")
	}
	d.next = &c
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// retryable reports whether a failed checkpoint may succeed later. Rejections
// will fail the same way on every attempt and are not kept.
func retryable(err error) bool {
	return errors.Is(err, resilience.ErrCircuitOpen) ||
		errors.Is(err, context.DeadlineExceeded) ||
		courseapi.IsTransient(err)
}

// hasPending reports unacknowledged checkpoints kept for a flush.
func (d *dispatcher) hasPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending > 0
}

func (d *dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		<-d.wake
		d.mu.Lock()
		c, closing := d.next, d.closing
		d.next = nil
		d.mu.Unlock()

		if c != nil {
			d.deliver(ctx, *c)
		}
		if closing {
			return
		}
	}
}

// close delivers whatever is still in the mailbox and stops the goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()
	d.signal()
	<-d.done
}

func (d *dispatcher) deliver(ctx context.Context, c checkpoint) {
	if err := d.send(ctx, c.seconds); err != nil {
		d.drop(c, err)
		return
	}
	d.mu.Lock()
	d.pending = 0
	d.mu.Unlock()
	d.sent.Add(1)
	metrics.RecordCheckpointDispatch(c.trigger, "ok")
	if d.ack != nil {
		d.ack(ctx, c.seconds)
	}
}

func (d *dispatcher) drop(c checkpoint, err error) {
	if d.limit > 0 {
		d.mu.Lock()
		switch {
		case !retryable(err):
			d.pending = 0
		case d.pending < d.limit:
			d.pending++
		}
		d.mu.Unlock()
	}
	d.dropped.Add(1)

	outcome := "dropped"
	if errors.Is(err, resilience.ErrCircuitOpen) {
		outcome = "breaker_open"
	}
	metrics.RecordCheckpointDispatch(c.trigger, outcome)

	derr := &CheckpointDispatchError{Media: d.media, Position: c.seconds, Trigger: c.trigger, Err: err}
	d.logger.Warn().
		Err(derr).
		Str(xlog.FieldEvent, "playback.checkpoint_dropped").
		Int64(xlog.FieldPosition, c.seconds).
		Msg("checkpoint dispatch failed")
}
