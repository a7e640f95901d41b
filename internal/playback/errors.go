// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"errors"
	"fmt"
)

const (
	KindPlaybackSource     = "playback_source"
	KindCheckpointDispatch = "checkpoint_dispatch"
)

var (
	ErrDetached       = errors.New("playback: session detached")
	ErrUnknownQuality = errors.New("playback: quality not offered for this media")
	ErrNotSeekable    = errors.New("playback: media is not seekable yet")
	ErrManagerClosed  = errors.New("playback: manager closed")
)

// PlaybackSourceError means the stream for a media could not be resolved or
// loaded. The session moves to StateError; no other quality is tried.
type PlaybackSourceError struct {
	Media   MediaRef
	Quality string
	Locator string
	Err     error
}

func (e *PlaybackSourceError) Error() string {
	if e.Quality != "" {
		return fmt.Sprintf("playback source %s (%s): %v", e.Media, e.Quality, e.Err)
	}
	return fmt.Sprintf("playback source %s: %v", e.Media, e.Err)
}

func (e *PlaybackSourceError) Unwrap() error { return e.Err }
func (e *PlaybackSourceError) Kind() string  { return KindPlaybackSource }

// CheckpointDispatchError is a checkpoint write that did not reach the
// backend. It is logged and counted, never returned to the player.
type CheckpointDispatchError struct {
	Media    MediaRef
	Position int64
	Trigger  string
	Err      error
}

func (e *CheckpointDispatchError) Error() string {
	return fmt.Sprintf("checkpoint %s at %ds (%s): %v", e.Media, e.Position, e.Trigger, e.Err)
}

func (e *CheckpointDispatchError) Unwrap() error { return e.Err }
func (e *CheckpointDispatchError) Kind() string  { return KindCheckpointDispatch }
