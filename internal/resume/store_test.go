// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resume

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(ctx, "sqlite", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewStore(ctx, "bolt", t.TempDir())
	assert.ErrorContains(t, err, "unknown resume store backend")
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(ctx, t.TempDir()+"/nested/resume.sqlite")
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()

			key := Key{ViewerID: "u1", CourseID: "1", VideoID: "9"}
			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, got)

			at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, s.Put(ctx, key, Entry{PositionSeconds: 42, DurationSeconds: 600, UpdatedAt: at}))
			require.NoError(t, s.Put(ctx, key, Entry{PositionSeconds: 61, DurationSeconds: 600, UpdatedAt: at.Add(time.Minute)}))

			got, err = s.Get(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, int64(61), got.PositionSeconds)
			assert.Equal(t, int64(600), got.DurationSeconds)
			assert.True(t, got.UpdatedAt.Equal(at.Add(time.Minute)))

			other, err := s.Get(ctx, Key{ViewerID: "u2", CourseID: "1", VideoID: "9"})
			require.NoError(t, err)
			assert.Nil(t, other)
		})
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/resume.sqlite"
	key := Key{ViewerID: "u1", CourseID: "1", VideoID: "9"}

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, key, Entry{PositionSeconds: 7, UpdatedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.PositionSeconds)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	_, err := s.Get(context.Background(), Key{})
	assert.ErrorIs(t, err, errClosed)
}
