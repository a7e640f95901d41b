// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/hls"
)

type fakeBackend struct {
	mu          sync.Mutex
	source      string
	sourceErr   error
	checkpoint  float64
	getErr      error
	putErr      error
	putDelay    time.Duration
	puts        []int64
	putCalls    int
	inFlight    int
	maxInFlight int
}

func (f *fakeBackend) VideoSource(ctx context.Context, _ courseapi.Credential, _, _ courseapi.ID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source, f.sourceErr
}

func (f *fakeBackend) GetCheckpoint(ctx context.Context, _ courseapi.Credential, _, _ courseapi.ID) (*courseapi.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &courseapi.Checkpoint{LastPosition: f.checkpoint}, nil
}

func (f *fakeBackend) PutCheckpoint(ctx context.Context, _ courseapi.Credential, _, _ courseapi.ID, seconds float64) error {
	f.mu.Lock()
	f.putCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay, err := f.putDelay, f.putErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err != nil {
		return err
	}
	f.puts = append(f.puts, int64(seconds))
	f.checkpoint = seconds
	return nil
}

func (f *fakeBackend) writes() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.puts))
	copy(out, f.puts)
	return out
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCalls
}

func (f *fakeBackend) setPutErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putErr = err
}

type fakeVariants map[string][]hls.Variant

func (v fakeVariants) Variants(_ context.Context, locator string) ([]hls.Variant, error) {
	if list, ok := v[locator]; ok {
		return list, nil
	}
	return []hls.Variant{hls.SingleVariant(locator)}, nil
}

type fakeDecoder struct {
	mu       sync.Mutex
	duration float64
	seekable bool
	loaded   string
	seeks    []float64
	closed   bool
}

func (d *fakeDecoder) Load(_ context.Context, locator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = locator
	return nil
}

func (d *fakeDecoder) Seekable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seekable && d.loaded != "" && !d.closed
}

func (d *fakeDecoder) Seek(seconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.seekable {
		return errors.New("not seekable")
	}
	d.seeks = append(d.seeks, seconds)
	return nil
}

func (d *fakeDecoder) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duration
}

func (d *fakeDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDecoder) seekLog() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float64(nil), d.seeks...)
}

func (d *fakeDecoder) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// decoderShop hands out scripted decoders and remembers them.
type decoderShop struct {
	mu       sync.Mutex
	duration float64
	loadErrs map[string]error
	built    []*fakeDecoder
}

func (s *decoderShop) factory() DecoderFactory {
	return func() Decoder {
		s.mu.Lock()
		defer s.mu.Unlock()
		d := &fakeDecoder{duration: s.duration, seekable: true}
		s.built = append(s.built, d)
		return &loadErrDecoder{fakeDecoder: d, errs: s.loadErrs}
	}
}

func (s *decoderShop) last() *fakeDecoder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.built[len(s.built)-1]
}

func (s *decoderShop) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.built)
}

// loadErrDecoder fails Load for locators listed in errs.
type loadErrDecoder struct {
	*fakeDecoder
	errs map[string]error
}

func (d *loadErrDecoder) Load(ctx context.Context, locator string) error {
	if err := d.fakeDecoder.Load(ctx, locator); err != nil {
		return err
	}
	if err, ok := d.errs[locator]; ok {
		return err
	}
	return nil
}
