// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T, be *testutil.Backend) *courseapi.Client {
	t.Helper()
	c, err := courseapi.New(be.URL(""), courseapi.Options{Timeout: 5 * time.Second, RateLimit: 1000, RateLimitBurst: 1000})
	require.NoError(t, err)
	return c
}

func TestPollerStopsOnReady(t *testing.T) {
	be := testutil.NewBackend(t)
	be.AddUser("tok", "u1", "admin")
	be.SetStatusScript("7",
		testutil.StatusReply{Status: "converting", Progress: 10},
		testutil.StatusReply{Status: "packaging", Progress: 60},
		testutil.StatusReply{Status: "ready", Progress: 100, VideoURL: "https://cdn.test/7/720p/index.m3u8"},
	)

	var seen []string
	p := NewPoller(newAPI(t, be), courseapi.TokenCredential("tok"), PollerConfig{Interval: 5 * time.Millisecond})
	final, err := p.Run(context.Background(), "7", func(st courseapi.JobStatus) { seen = append(seen, st.Status) })
	require.NoError(t, err)
	assert.Equal(t, StatusReady, final.Status)
	assert.Equal(t, []string{"converting", "packaging", "ready"}, seen)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, be.Hits(testutil.RouteVideoStatus), "polling continued after terminal status")
}

func TestPollerNeverOverlapsRequests(t *testing.T) {
	be := testutil.NewBackend(t)
	be.AddUser("tok", "u1", "admin")
	be.SetDelay(testutil.RouteVideoStatus, 40*time.Millisecond)
	be.SetStatusScript("7",
		testutil.StatusReply{Status: "converting", Progress: 10},
		testutil.StatusReply{Status: "converting", Progress: 20},
		testutil.StatusReply{Status: "converting", Progress: 30},
		testutil.StatusReply{Status: "ready", Progress: 100, VideoURL: "x"},
	)

	p := NewPoller(newAPI(t, be), courseapi.TokenCredential("tok"), PollerConfig{Interval: time.Millisecond})
	_, err := p.Run(context.Background(), "7", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, be.MaxInFlight(testutil.RouteVideoStatus))
	assert.Equal(t, 4, be.Hits(testutil.RouteVideoStatus))
}

func TestPollerTransientErrorsWaitForNextTick(t *testing.T) {
	be := testutil.NewBackend(t)
	be.AddUser("tok", "u1", "admin")
	be.SetStatusScript("7",
		testutil.StatusReply{HTTPStatus: http.StatusBadGateway},
		testutil.StatusReply{HTTPStatus: http.StatusServiceUnavailable},
		testutil.StatusReply{Status: "failed", ErrorKind: "transcode_error"},
	)

	p := NewPoller(newAPI(t, be), courseapi.TokenCredential("tok"), PollerConfig{Interval: 5 * time.Millisecond})
	final, err := p.Run(context.Background(), "7", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, "transcode_error", final.ErrorKind)
}

func TestPollerMaxConsecutiveErrors(t *testing.T) {
	be := testutil.NewBackend(t)
	be.AddUser("tok", "u1", "admin")
	be.SetStatusScript("7", testutil.StatusReply{HTTPStatus: http.StatusInternalServerError})

	p := NewPoller(newAPI(t, be), courseapi.TokenCredential("tok"), PollerConfig{Interval: time.Millisecond, MaxConsecutiveErrors: 3})
	_, err := p.Run(context.Background(), "7", nil)
	require.ErrorIs(t, err, courseapi.ErrUpstream)
	assert.Equal(t, 3, be.Hits(testutil.RouteVideoStatus))
}

func TestPollerTickTimeoutIsTransient(t *testing.T) {
	be := testutil.NewBackend(t)
	be.AddUser("tok", "u1", "admin")
	be.SetDelay(testutil.RouteVideoStatus, 200*time.Millisecond)
	be.SetStatusScript("7", testutil.StatusReply{Status: "converting"})

	p := NewPoller(newAPI(t, be), courseapi.TokenCredential("tok"),
		PollerConfig{Interval: time.Millisecond, TickTimeout: 20 * time.Millisecond, MaxConsecutiveErrors: 2})
	_, err := p.Run(context.Background(), "7", nil)
	require.ErrorIs(t, err, courseapi.ErrTimeout)
}

func TestPollerUnauthorizedAborts(t *testing.T) {
	be := testutil.NewBackend(t)
	be.AddUser("tok", "u1", "admin")
	be.SetStatusScript("7", testutil.StatusReply{HTTPStatus: http.StatusForbidden})

	p := NewPoller(newAPI(t, be), courseapi.TokenCredential("tok"), PollerConfig{Interval: time.Millisecond})
	_, err := p.Run(context.Background(), "7", nil)
	var ae *AuthorizationError
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, 1, be.Hits(testutil.RouteVideoStatus))
}

func TestPollerCancelDiscardsLateResponse(t *testing.T) {
	be := testutil.NewBackend(t)
	be.AddUser("tok", "u1", "admin")
	be.SetDelay(testutil.RouteVideoStatus, 50*time.Millisecond)
	be.SetStatusScript("7", testutil.StatusReply{Status: "converting", Progress: 5})

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	calls := 0
	done := make(chan error, 1)
	p := NewPoller(newAPI(t, be), courseapi.TokenCredential("tok"), PollerConfig{Interval: time.Millisecond})
	go func() {
		_, err := p.Run(ctx, "7", func(courseapi.JobStatus) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

// scriptedStatus is an in-memory StatusSource.
type scriptedStatus struct {
	mu      sync.Mutex
	replies []courseapi.JobStatus
	calls   int
}

func (s *scriptedStatus) VideoStatus(ctx context.Context, _ courseapi.Credential, _ courseapi.ID) (*courseapi.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	st := s.replies[i]
	return &st, nil
}

func TestPollerUnknownStatusIsNonTerminal(t *testing.T) {
	src := &scriptedStatus{replies: []courseapi.JobStatus{
		{Status: "queued"},
		{Status: "Converting"},
		{Status: "READY", VideoURL: "x"},
	}}
	var seen []string
	final, err := NewPoller(src, courseapi.TokenCredential("t"), PollerConfig{Interval: time.Millisecond}).
		Run(context.Background(), "1", func(st courseapi.JobStatus) { seen = append(seen, st.Status) })
	require.NoError(t, err)
	assert.Equal(t, StatusReady, final.Status)
	assert.Equal(t, []string{"queued", "converting", "ready"}, seen)
}
