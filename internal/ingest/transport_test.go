// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/ManuGH/courseflow/internal/platform/httpx"
	"github.com/ManuGH/courseflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	return bytes.Repeat([]byte("courseflow"), n/10+1)[:n]
}

func TestTransportPut(t *testing.T) {
	be := testutil.NewBackend(t)
	tr := NewTransport(httpx.NewTransferClient())
	data := payload(256 << 10)

	var samples []Progress
	err := tr.Put(context.Background(),
		Destination{URL: be.URL("/storage/videos/a.mp4"), ObjectKey: "videos/a.mp4"},
		Source{Reader: bytes.NewReader(data), Size: int64(len(data)), ContentType: "video/mp4"},
		func(p Progress) { samples = append(samples, p) },
	)
	require.NoError(t, err)

	stored, ctype, ok := be.Object("videos/a.mp4")
	require.True(t, ok)
	assert.Equal(t, data, stored)
	assert.Equal(t, "video/mp4", ctype)

	require.NotEmpty(t, samples)
	last := samples[len(samples)-1]
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, int64(len(data)), last.Sent)
	for i, s := range samples[:len(samples)-1] {
		assert.LessOrEqual(t, s.Percent, 99, "sample %d claims completion before acknowledgement", i)
		if i > 0 {
			assert.GreaterOrEqual(t, s.Percent, samples[i-1].Percent)
		}
	}
}

func TestTransportFailures(t *testing.T) {
	data := payload(1024)
	src := func() Source {
		return Source{Reader: bytes.NewReader(data), Size: int64(len(data)), ContentType: "video/mp4"}
	}

	t.Run("server error", func(t *testing.T) {
		be := testutil.NewBackend(t)
		be.FailRoute(testutil.RouteStorage, http.StatusInternalServerError)
		err := NewTransport(httpx.NewTransferClient()).Put(context.Background(), Destination{URL: be.URL("/storage/k")}, src(), nil)
		var ti *TransferInterruptedError
		require.True(t, errors.As(err, &ti), "got %v", err)
		assert.Equal(t, http.StatusInternalServerError, ti.Status)
		assert.Equal(t, KindTransferInterrupted, KindOf(err))
	})

	t.Run("forbidden", func(t *testing.T) {
		be := testutil.NewBackend(t)
		be.FailRoute(testutil.RouteStorage, http.StatusForbidden)
		err := NewTransport(httpx.NewTransferClient()).Put(context.Background(), Destination{URL: be.URL("/storage/k")}, src(), nil)
		var ae *AuthorizationError
		require.True(t, errors.As(err, &ae), "got %v", err)
	})

	t.Run("short body", func(t *testing.T) {
		be := testutil.NewBackend(t)
		short := Source{Reader: strings.NewReader("abc"), Size: 10, ContentType: "video/mp4"}
		err := NewTransport(httpx.NewTransferClient()).Put(context.Background(), Destination{URL: be.URL("/storage/k")}, short, nil)
		var ti *TransferInterruptedError
		require.True(t, errors.As(err, &ti), "got %v", err)
		_, _, stored := be.Object("k")
		assert.False(t, stored)
	})

	t.Run("unreachable", func(t *testing.T) {
		be := testutil.NewBackend(t)
		url := be.URL("/storage/k") + "?X-Amz-Signature=s3cr3t"
		be.Server.Close()
		err := NewTransport(httpx.NewTransferClient()).Put(context.Background(), Destination{URL: url}, src(), nil)
		var ti *TransferInterruptedError
		require.True(t, errors.As(err, &ti), "got %v", err)
		assert.NotContains(t, err.Error(), "s3cr3t")
	})

	t.Run("non-http destination", func(t *testing.T) {
		err := NewTransport(httpx.NewTransferClient()).Put(context.Background(), Destination{URL: "file:///tmp/k"}, src(), nil)
		var ti *TransferInterruptedError
		require.True(t, errors.As(err, &ti), "got %v", err)
		assert.ErrorIs(t, err, errBadDestination)
		assert.Zero(t, ti.Sent)
	})
}

func TestInFlightPercent(t *testing.T) {
	assert.Equal(t, 0, inFlightPercent(0, 0))
	assert.Equal(t, 0, inFlightPercent(0, 100))
	assert.Equal(t, 50, inFlightPercent(50, 100))
	assert.Equal(t, 99, inFlightPercent(100, 100))
	assert.Equal(t, 99, inFlightPercent(995, 1000))
}
