// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/hls"
)

// Phase is a named point in the ingestion pipeline.
type Phase string

const (
	PhaseUploading   Phase = "uploading"
	PhaseRegistering Phase = "registering"
	PhaseConverting  Phase = "converting"
	PhasePackaging   Phase = "packaging"
	PhaseReady       Phase = "ready"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

// PhaseEvent is one entry of an ingestion's phase stream.
type PhaseEvent struct {
	Phase           Phase
	ProgressPercent int
	MediaID         courseapi.ID
	ErrorKind       string
	Err             error
	Variants        []hls.Variant
	At              time.Time
}

// MediaAsset is the client's view of the asset being ingested.
type MediaAsset struct {
	ID              courseapi.ID
	CourseID        courseapi.ID
	ModuleID        courseapi.ID
	ObjectKey       string
	Phase           Phase
	ProgressPercent int
	// Variants maps quality label to stream locator once ready.
	Variants map[string]string
}

// Result is what a finished ingestion produced.
type Result struct {
	Asset    MediaAsset
	Variants []hls.Variant
}

// Ingestion is a running ingestion. Events must be drained, or Cancel
// called, for its goroutines to exit.
type Ingestion struct {
	ctx    context.Context
	cancel context.CancelFunc
	out    chan PhaseEvent
	notify chan struct{}

	runDone chan struct{}
	fwdDone chan struct{}

	mu       sync.Mutex
	queue    []PhaseEvent
	finished bool
	asset    MediaAsset
	result   Result
	err      error
}

func newIngestion(parent context.Context, asset MediaAsset) *Ingestion {
	ctx, cancel := context.WithCancel(parent)
	return &Ingestion{
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan PhaseEvent),
		notify:  make(chan struct{}, 1),
		runDone: make(chan struct{}),
		fwdDone: make(chan struct{}),
		asset:   asset,
	}
}

// Events streams phase events. The channel is closed after the terminal
// event, or when the ingestion is cancelled. Nothing is delivered once
// Cancel has returned.
func (in *Ingestion) Events() <-chan PhaseEvent { return in.out }

// Phase returns the latest phase.
func (in *Ingestion) Phase() Phase {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.asset.Phase
}

// Asset returns a snapshot of the media asset.
func (in *Ingestion) Asset() MediaAsset {
	in.mu.Lock()
	defer in.mu.Unlock()
	a := in.asset
	if a.Variants != nil {
		a.Variants = make(map[string]string, len(in.asset.Variants))
		for k, v := range in.asset.Variants {
			a.Variants[k] = v
		}
	}
	return a
}

// Cancel stops the ingestion and waits until its goroutines exit. An
// in-flight request is abandoned and its result discarded. Safe to call
// more than once and after completion.
func (in *Ingestion) Cancel() {
	in.cancel()
	<-in.runDone
	<-in.fwdDone
}

// Wait blocks until the pipeline stops and returns its outcome. After
// cancellation the error is the context's error.
func (in *Ingestion) Wait() (Result, error) {
	<-in.runDone
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.result, in.err
}

// emit queues ev unless the ingestion was cancelled. It reports whether ev
// was accepted.
func (in *Ingestion) emit(ev PhaseEvent) bool {
	in.mu.Lock()
	if in.ctx.Err() != nil {
		in.mu.Unlock()
		return false
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	in.asset.Phase = ev.Phase
	in.asset.ProgressPercent = ev.ProgressPercent
	if ev.MediaID != "" {
		in.asset.ID = ev.MediaID
	}
	in.queue = append(in.queue, ev)
	in.mu.Unlock()

	select {
	case in.notify <- struct{}{}:
	default:
	}
	return true
}

func (in *Ingestion) finish(res Result, err error) {
	in.mu.Lock()
	in.result, in.err = res, err
	in.finished = true
	in.mu.Unlock()
	close(in.runDone)

	select {
	case in.notify <- struct{}{}:
	default:
	}
}

// forward delivers queued events in order on out, decoupling the pipeline
// from a slow reader.
func (in *Ingestion) forward() {
	defer close(in.fwdDone)
	defer close(in.out)
	defer in.cancel()

	for {
		if in.ctx.Err() != nil {
			return
		}
		in.mu.Lock()
		if len(in.queue) > 0 {
			ev := in.queue[0]
			in.queue = in.queue[1:]
			in.mu.Unlock()
			select {
			case in.out <- ev:
			case <-in.ctx.Done():
				return
			}
			continue
		}
		finished := in.finished
		in.mu.Unlock()
		if finished {
			return
		}
		select {
		case <-in.notify:
		case <-in.ctx.Done():
			return
		}
	}
}
