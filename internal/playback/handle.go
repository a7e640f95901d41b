// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"math"
	"sync"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/hls"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/metrics"
	"github.com/ManuGH/courseflow/internal/resume"
	"github.com/rs/zerolog"
)

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	State     State
	Buffering bool
	Quality   string
	Qualities []string
	Position  float64
	Duration  float64
	// ResumeFrom is the checkpoint the session resumed (or will resume) from.
	ResumeFrom float64
	// LastDispatched is the last position handed to the dispatcher, or -1.
	LastDispatched int64
	Dispatched     int64
	Dropped        int64
	Err            error
}

// Handle is one attached playback session.
type Handle struct {
	m        *Manager
	ref      MediaRef
	cred     courseapi.Credential
	viewerID string
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	disp   *dispatcher

	switchMu sync.Mutex

	mu          sync.Mutex
	state       State
	buffering   bool
	decoder     Decoder
	catalog     []hls.Variant
	quality     string
	position    float64
	duration    float64
	resumeFrom  float64
	pendingSeek float64
	lastSent    int64
	err         error

	detachOnce sync.Once
}

func newHandle(ctx context.Context, m *Manager, ref MediaRef, opts AttachOptions) *Handle {
	// The session outlives the attach call but keeps its correlation values.
	ctx = xlog.WithScope(ctx, xlog.Scope{ViewerID: opts.ViewerID, CourseID: string(ref.CourseID), MediaID: string(ref.VideoID)})
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	logger := xlog.WithComponentFromContext(ctx, "playback")

	h := &Handle{
		m:           m,
		ref:         ref,
		cred:        opts.Credential,
		viewerID:    opts.ViewerID,
		logger:      logger,
		ctx:         hctx,
		cancel:      cancel,
		state:       StateAttaching,
		quality:     opts.Quality,
		pendingSeek: -1,
		lastSent:    -1,
	}
	h.disp = newDispatcher(ref, m.cfg.PendingLimit, logger, h.put, h.acknowledged)
	return h
}

func (h *Handle) start() {
	metrics.IncActiveSessions()
}

// attach resolves the source, loads the decoder and fetches the checkpoint.
func (h *Handle) attach(ctx context.Context) {
	locator, err := h.m.backend.VideoSource(ctx, h.cred, h.ref.CourseID, h.ref.VideoID)
	if err != nil {
		h.fail(&PlaybackSourceError{Media: h.ref, Quality: h.quality, Err: err})
		return
	}
	variants, err := h.m.variants.Variants(ctx, locator)
	if err != nil {
		h.fail(&PlaybackSourceError{Media: h.ref, Quality: h.quality, Locator: locator, Err: err})
		return
	}
	cat := catalog(variants, locator)
	chosen, ok := pickVariant(cat, h.quality)
	if !ok {
		h.fail(&PlaybackSourceError{Media: h.ref, Quality: h.quality, Locator: locator, Err: ErrUnknownQuality})
		return
	}

	resumeAt := h.m.loadCheckpoint(ctx, h)

	dec := h.m.newDecoder()
	if err := dec.Load(ctx, chosen.URI); err != nil {
		_ = dec.Close()
		h.fail(&PlaybackSourceError{Media: h.ref, Quality: chosen.Label, Locator: chosen.URI, Err: err})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDetached {
		_ = dec.Close()
		return
	}
	h.decoder = dec
	h.catalog = cat
	h.quality = chosen.Label
	h.duration = dec.Duration()
	h.resumeFrom = resumeAt
	if resumeAt > 0 {
		h.pendingSeek = resumeAt
	}
	h.logger.Info().
		Str(xlog.FieldQuality, chosen.Label).
		Float64(xlog.FieldDuration, h.duration).
		Float64(xlog.FieldPosition, resumeAt).
		Msg("playback attached")
}

func (h *Handle) fail(err *PlaybackSourceError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failLocked(err)
}

func (h *Handle) failLocked(err *PlaybackSourceError) {
	h.err = err
	h.buffering = false
	h.setStateLocked(StateError)
	metrics.RecordPlaybackError(KindPlaybackSource)
	h.logger.Error().Err(err).Str(xlog.FieldEvent, "playback.source_failed").Msg("playback source unavailable")
}

// setStateLocked applies a transition from the table. Illegal edges are ignored.
func (h *Handle) setStateLocked(next State) bool {
	if h.state == next {
		return false
	}
	if !canTransition(h.state, next) {
		h.logger.Debug().Str(xlog.FieldOldState, string(h.state)).Str(xlog.FieldNewState, string(next)).Msg("ignored playback transition")
		return false
	}
	h.logger.Debug().Str(xlog.FieldOldState, string(h.state)).Str(xlog.FieldNewState, string(next)).Msg("playback state")
	h.state = next
	return true
}

// ReportReady signals the player can play. The first ready after a load
// applies the pending resume seek exactly once.
func (h *Handle) ReportReady() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateAttaching || h.decoder == nil {
		return
	}
	h.setStateLocked(StateReady)
	h.buffering = false

	if h.pendingSeek < 0 {
		return
	}
	target := h.clampLocked(h.pendingSeek)
	h.pendingSeek = -1
	if !h.decoder.Seekable() {
		h.logger.Warn().Float64(xlog.FieldPosition, target).Msg("resume seek skipped: media not seekable")
		return
	}
	if err := h.decoder.Seek(target); err != nil {
		h.logger.Warn().Err(err).Float64(xlog.FieldPosition, target).Msg("resume seek failed")
		return
	}
	h.position = target
}

// ReportTick records the playhead. A checkpoint is dispatched on the first
// non-zero tick and then whenever the position has moved by at least the
// threshold since the last dispatch.
func (h *Handle) ReportTick(currentTime float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.playing() {
		return
	}
	h.position = h.clampLocked(currentTime)
	secs := floorSeconds(h.position)
	if secs <= 0 {
		return
	}

	switch {
	case h.lastSent < 0:
		h.dispatchLocked(secs, triggerTick)
	case math.Abs(h.position-float64(h.lastSent)) < h.m.cfg.CheckpointThreshold.Seconds():
		metrics.RecordCheckpointThrottled()
	case h.disp.hasPending():
		h.dispatchLocked(secs, triggerFlush)
	default:
		h.dispatchLocked(secs, triggerTick)
	}
}

// ReportPause forces a checkpoint at the current position.
func (h *Handle) ReportPause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.playing() && h.state != StateEnded {
		return
	}
	h.dispatchLocked(floorSeconds(h.position), triggerPause)
}

// ReportEnded moves the playhead to the end and forces a checkpoint of the
// full duration.
func (h *Handle) ReportEnded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.playing() {
		return
	}
	if h.duration > 0 {
		h.position = h.duration
	}
	h.buffering = false
	h.setStateLocked(StateEnded)
	h.dispatchLocked(floorSeconds(h.position), triggerEnded)
}

// ReportStall marks the session as buffering. A stall while attaching is
// initial buffering: the flag is set and the state stays attaching.
func (h *Handle) ReportStall() {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.buffering:
		return
	case h.state == StateAttaching:
	case !h.setStateLocked(StateBuffering):
		return
	}
	h.buffering = true
	metrics.RecordStall()
}

// ReportPlayable clears buffering.
func (h *Handle) ReportPlayable() {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case StateBuffering:
		if h.setStateLocked(StateReady) {
			h.buffering = false
		}
	case StateAttaching:
		h.buffering = false
	}
}

// Seek moves the playhead by delta seconds, clamped to [0, duration].
func (h *Handle) Seek(delta float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.state == StateDetached:
		return ErrDetached
	case !h.state.playing() && h.state != StateEnded:
		return ErrNotSeekable
	case h.decoder == nil || !h.decoder.Seekable():
		return ErrNotSeekable
	}
	target := h.clampLocked(h.position + delta)
	if err := h.decoder.Seek(target); err != nil {
		return err
	}
	h.position = target
	if h.state == StateEnded && target < h.duration {
		h.setStateLocked(StateReady)
	}
	return nil
}

// SwitchQuality rebuilds the decoder against another variant of the same
// media and resumes at the current position once ready. A failed load puts
// the session in StateError; no other quality is tried.
func (h *Handle) SwitchQuality(ctx context.Context, label string) error {
	h.switchMu.Lock()
	defer h.switchMu.Unlock()

	h.mu.Lock()
	if h.state == StateDetached {
		h.mu.Unlock()
		return ErrDetached
	}
	target, ok := pickVariant(h.catalog, label)
	if !ok || label == "" {
		h.mu.Unlock()
		return ErrUnknownQuality
	}
	if target.Label == h.quality && h.state != StateError {
		h.mu.Unlock()
		return nil
	}
	old := h.decoder
	h.decoder = nil
	preserve := h.position
	h.buffering = false
	h.setStateLocked(StateAttaching)
	h.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	dec := h.m.newDecoder()
	err := dec.Load(ctx, target.URI)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDetached {
		_ = dec.Close()
		return ErrDetached
	}
	if err != nil {
		_ = dec.Close()
		serr := &PlaybackSourceError{Media: h.ref, Quality: target.Label, Locator: target.URI, Err: err}
		h.failLocked(serr)
		return serr
	}
	h.err = nil
	h.decoder = dec
	h.quality = target.Label
	h.duration = dec.Duration()
	h.position = h.clampLocked(preserve)
	if h.position > 0 {
		h.pendingSeek = h.position
	}
	h.logger.Info().Str(xlog.FieldQuality, target.Label).Float64(xlog.FieldPosition, h.position).Msg("quality switched")
	return nil
}

// Refresh re-reads the checkpoint from the backend and updates the mirror.
func (h *Handle) Refresh(ctx context.Context) (float64, error) {
	cp, err := h.m.backend.GetCheckpoint(ctx, h.cred, h.ref.CourseID, h.ref.VideoID)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	h.resumeFrom = cp.LastPosition
	duration := h.duration
	h.mu.Unlock()
	if secs := floorSeconds(cp.LastPosition); secs > 0 {
		h.m.mirrorPut(ctx, h, secs, duration)
	}
	return cp.LastPosition, nil
}

// Detach sends one final checkpoint, stops the dispatcher and releases the
// decoder. Further calls are no-ops.
func (h *Handle) Detach() {
	h.detachOnce.Do(func() {
		h.mu.Lock()
		secs := floorSeconds(h.position)
		if secs > 0 {
			h.disp.submit(checkpoint{seconds: secs, trigger: triggerDetach})
		}
		dec := h.decoder
		h.decoder = nil
		h.buffering = false
		h.setStateLocked(StateDetached)
		h.mu.Unlock()

		h.disp.close()
		h.cancel()
		if dec != nil {
			_ = dec.Close()
		}
		h.m.release(h)
		metrics.DecActiveSessions()
		h.logger.Info().Int64(xlog.FieldPosition, secs).Msg("playback detached")
	})
}

// State returns the lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Buffering reports whether the player is between a stall and playable.
func (h *Handle) Buffering() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffering
}

// Err returns the source error behind StateError.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Snapshot returns the full session view.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	labels := make([]string, 0, len(h.catalog))
	for _, v := range h.catalog {
		labels = append(labels, v.Label)
	}
	return Snapshot{
		State:          h.state,
		Buffering:      h.buffering,
		Quality:        h.quality,
		Qualities:      labels,
		Position:       h.position,
		Duration:       h.duration,
		ResumeFrom:     h.resumeFrom,
		LastDispatched: h.lastSent,
		Dispatched:     h.disp.sent.Load(),
		Dropped:        h.disp.dropped.Load(),
		Err:            h.err,
	}
}

// dispatchLocked hands a checkpoint to the dispatcher. Zero is never sent.
func (h *Handle) dispatchLocked(secs int64, trigger string) {
	if secs <= 0 {
		return
	}
	h.lastSent = secs
	h.disp.submit(checkpoint{seconds: secs, trigger: trigger})
}

func (h *Handle) clampLocked(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if h.duration > 0 && t > h.duration {
		return h.duration
	}
	return t
}

// put is the dispatcher's send path, guarded by the manager's breaker.
func (h *Handle) put(ctx context.Context, seconds int64) error {
	return h.m.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, h.m.cfg.DispatchTimeout)
		defer cancel()
		return h.m.backend.PutCheckpoint(ctx, h.cred, h.ref.CourseID, h.ref.VideoID, float64(seconds))
	})
}

func (h *Handle) acknowledged(ctx context.Context, seconds int64) {
	h.mu.Lock()
	duration := h.duration
	h.mu.Unlock()
	h.m.mirrorPut(ctx, h, seconds, duration)
}

func (h *Handle) mirrorKey() resume.Key {
	return resume.Key{ViewerID: h.viewerID, CourseID: string(h.ref.CourseID), VideoID: string(h.ref.VideoID)}
}

func floorSeconds(t float64) int64 {
	if t <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0
	}
	return int64(math.Floor(t))
}
