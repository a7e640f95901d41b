// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotLoaded   = errors.New("hls: decoder has no source loaded")
	ErrNotSeekable = errors.New("hls: source is not seekable")
	ErrClosed      = errors.New("hls: decoder closed")
)

// Decoder is a headless player pipeline over an HLS source. It learns the
// timeline from the media playlist and tracks the seek position.
type Decoder struct {
	fetcher *Fetcher

	mu       sync.Mutex
	info     *MediaInfo
	variant  Variant
	position float64
	closed   bool
}

// NewDecoder returns a decoder that loads playlists through f.
func NewDecoder(f *Fetcher) *Decoder {
	return &Decoder{fetcher: f}
}

// Load fetches the source. A master playlist is followed to its highest
// bandwidth variant.
func (d *Decoder) Load(ctx context.Context, locator string) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	body, err := d.fetcher.Fetch(ctx, locator)
	if err != nil {
		return err
	}
	variant := SingleVariant(locator)
	if IsMaster(body) {
		variants, err := ParseMaster(body, locator)
		if err != nil {
			return err
		}
		variant = variants[0]
		if body, err = d.fetcher.Fetch(ctx, variant.URI); err != nil {
			return err
		}
	}

	info, err := ParseMedia(body)
	if err != nil {
		return fmt.Errorf("hls: load %s: %w", variant.URI, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.info, d.variant, d.position = info, variant, 0
	return nil
}

// Seekable reports whether a loaded VOD timeline is available.
func (d *Decoder) Seekable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && d.info != nil && d.info.IsVOD
}

// Seek moves the playhead. Positions outside [0, duration] are rejected.
func (d *Decoder) Seek(seconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return ErrClosed
	case d.info == nil:
		return ErrNotLoaded
	case !d.info.IsVOD:
		return ErrNotSeekable
	case seconds < 0 || seconds > d.info.Seconds():
		return fmt.Errorf("hls: seek to %.3fs outside [0, %.3fs]", seconds, d.info.Seconds())
	}
	d.position = seconds
	return nil
}

// Duration returns the timeline length in seconds, or 0 before Load.
func (d *Decoder) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.info == nil {
		return 0
	}
	return d.info.Seconds()
}

// Position returns the last seek target.
func (d *Decoder) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// Variant returns the variant that was loaded.
func (d *Decoder) Variant() Variant {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.variant
}

// Close releases the decoder. Further calls fail with ErrClosed.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.info = nil
	return nil
}
