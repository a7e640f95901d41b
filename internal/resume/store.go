// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resume mirrors acknowledged playback checkpoints locally. The
// backend stays authoritative; the mirror is only a resume hint when the
// backend cannot be reached.
package resume

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Key identifies one viewer's checkpoint for one video.
type Key struct {
	ViewerID string
	CourseID string
	VideoID  string
}

func (k Key) String() string {
	return k.ViewerID + "\x00" + k.CourseID + "\x00" + k.VideoID
}

// Entry is a mirrored checkpoint.
type Entry struct {
	PositionSeconds int64
	DurationSeconds int64
	UpdatedAt       time.Time
}

// Store persists checkpoints. Get returns nil, nil when there is no entry.
type Store interface {
	Put(ctx context.Context, key Key, entry Entry) error
	Get(ctx context.Context, key Key) (*Entry, error)
	Close() error
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// NewStore builds the configured backend. An sqlite backend without a
// directory falls back to memory.
func NewStore(ctx context.Context, backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSQLite:
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSQLiteStore(ctx, filepath.Join(dir, "resume.sqlite"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown resume store backend: %s (supported: sqlite, memory)", backend)
	}
}

// MemoryStore keeps entries in a map.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Entry)}
}

func (s *MemoryStore) Put(_ context.Context, key Key, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return errClosed
	}
	s.data[key.String()] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, errClosed
	}
	e, ok := s.data[key.String()]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}
