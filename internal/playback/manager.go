// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback runs viewer playback sessions: it resolves the stream,
// resumes from the stored checkpoint and writes checkpoints back while the
// viewer watches.
//
// A Handle is driven by player signals (ticks, pause, end, stall, ready).
// Checkpoints leave the session through one dispatch goroutine, so at most
// one write per session is ever in flight. Dispatch failures are logged and
// dropped; they never surface to the player.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/hls"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/resilience"
	"github.com/ManuGH/courseflow/internal/resume"
)

// Backend is the part of the course API playback needs.
type Backend interface {
	VideoSource(ctx context.Context, cred courseapi.Credential, courseID, videoID courseapi.ID) (string, error)
	GetCheckpoint(ctx context.Context, cred courseapi.Credential, courseID, videoID courseapi.ID) (*courseapi.Checkpoint, error)
	PutCheckpoint(ctx context.Context, cred courseapi.Credential, courseID, videoID courseapi.ID, seconds float64) error
}

// VariantSource lists the qualities offered for a stream locator.
type VariantSource interface {
	Variants(ctx context.Context, locator string) ([]hls.Variant, error)
}

// Decoder is the player pipeline for one source. Seek must only be called
// once Seekable reports true.
type Decoder interface {
	Load(ctx context.Context, locator string) error
	Seekable() bool
	Seek(seconds float64) error
	Duration() float64
	Close() error
}

// DecoderFactory builds a fresh decoder for each load.
type DecoderFactory func() Decoder

// MediaRef names a course video.
type MediaRef struct {
	CourseID courseapi.ID
	VideoID  courseapi.ID
}

func (r MediaRef) String() string {
	return fmt.Sprintf("%s/%s", r.CourseID, r.VideoID)
}

// AttachOptions are per-session inputs.
type AttachOptions struct {
	Credential courseapi.Credential
	// ViewerID keys the local checkpoint mirror. Without it the mirror is skipped.
	ViewerID string
	// Quality selects a variant label; empty picks the default.
	Quality string
}

// Config tunes checkpointing.
type Config struct {
	CheckpointThreshold time.Duration
	DispatchTimeout     time.Duration
	// PendingLimit > 0 remembers up to that many checkpoints lost to transient
	// failures; the next dispatch past the threshold flushes the newest
	// position. Rejected checkpoints clear the count. 0 drops failures.
	PendingLimit     int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

const (
	DefaultCheckpointThreshold = 5 * time.Second
	DefaultDispatchTimeout     = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.CheckpointThreshold <= 0 {
		c.CheckpointThreshold = DefaultCheckpointThreshold
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = DefaultDispatchTimeout
	}
	if c.PendingLimit < 0 {
		c.PendingLimit = 0
	}
	return c
}

// Manager attaches playback sessions. It is safe for concurrent use.
type Manager struct {
	backend    Backend
	variants   VariantSource
	newDecoder DecoderFactory
	mirror     resume.Store
	cfg        Config
	breaker    *resilience.CircuitBreaker

	mu      sync.Mutex
	closed  bool
	handles map[*Handle]struct{}
	wg      sync.WaitGroup
}

// NewManager wires a manager. mirror may be nil.
func NewManager(backend Backend, variants VariantSource, newDecoder DecoderFactory, mirror resume.Store, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		backend:    backend,
		variants:   variants,
		newDecoder: newDecoder,
		mirror:     mirror,
		cfg:        cfg,
		breaker: resilience.NewCircuitBreaker("checkpoint_dispatch", cfg.BreakerThreshold, cfg.BreakerCooldown,
			resilience.WithFailureFilter(courseapi.IsTransient)),
		handles: make(map[*Handle]struct{}),
	}
}

// Attach opens a session for ref. Source failures do not fail Attach: the
// returned handle is in StateError and Err reports a *PlaybackSourceError.
// The caller must Detach every handle it receives.
func (m *Manager) Attach(ctx context.Context, ref MediaRef, opts AttachOptions) (*Handle, error) {
	if !opts.Credential.Valid() {
		return nil, fmt.Errorf("playback: attach %s: %w", ref, courseapi.ErrNoCredential)
	}
	if ref.CourseID == "" || ref.VideoID == "" {
		return nil, fmt.Errorf("playback: attach: course and video are required")
	}

	h := newHandle(ctx, m, ref, opts)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		h.cancel()
		return nil, ErrManagerClosed
	}
	m.handles[h] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		h.disp.run(h.ctx)
	}()
	h.start()

	h.attach(ctx)
	return h, nil
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	delete(m.handles, h)
	m.mu.Unlock()
}

// Sessions returns the number of attached handles.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// Close detaches every open session and waits for their dispatchers.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	open := make([]*Handle, 0, len(m.handles))
	for h := range m.handles {
		open = append(open, h)
	}
	m.mu.Unlock()

	for _, h := range open {
		h.Detach()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("playback: drain sessions: %w", ctx.Err())
	}
}

// loadCheckpoint returns the resume position. The backend is authoritative;
// the mirror answers only when the backend cannot.
func (m *Manager) loadCheckpoint(ctx context.Context, h *Handle) float64 {
	cp, err := m.backend.GetCheckpoint(ctx, h.cred, h.ref.CourseID, h.ref.VideoID)
	if err == nil {
		return cp.LastPosition
	}
	if errors.Is(err, context.Canceled) {
		return 0
	}
	h.logger.Warn().Err(err).Str(xlog.FieldEvent, "playback.checkpoint_fetch_failed").Msg("checkpoint fetch failed")

	if m.mirror == nil || h.viewerID == "" {
		return 0
	}
	entry, merr := m.mirror.Get(ctx, h.mirrorKey())
	if merr != nil || entry == nil {
		return 0
	}
	h.logger.Info().Int64(xlog.FieldPosition, entry.PositionSeconds).Msg("resuming from local checkpoint mirror")
	return float64(entry.PositionSeconds)
}

func (m *Manager) mirrorPut(ctx context.Context, h *Handle, seconds int64, duration float64) {
	if m.mirror == nil || h.viewerID == "" {
		return
	}
	entry := resume.Entry{PositionSeconds: seconds, DurationSeconds: floorSeconds(duration), UpdatedAt: time.Now()}
	if err := m.mirror.Put(ctx, h.mirrorKey(), entry); err != nil {
		h.logger.Warn().Err(err).Msg("checkpoint mirror write failed")
	}
}

// catalog expands a locator into the selectable qualities. A master playlist
// gets an extra "auto" entry pointing at itself.
func catalog(variants []hls.Variant, locator string) []hls.Variant {
	if len(variants) <= 1 {
		return variants
	}
	out := make([]hls.Variant, 0, len(variants)+1)
	out = append(out, hls.Variant{Label: hls.AutoLabel, URI: locator})
	return append(out, variants...)
}

func pickVariant(cat []hls.Variant, label string) (hls.Variant, bool) {
	if len(cat) == 0 {
		return hls.Variant{}, false
	}
	if label == "" || label == hls.AutoLabel {
		return cat[0], true
	}
	for _, v := range cat {
		if v.Label == label {
			return v, true
		}
	}
	return hls.Variant{}, false
}
