// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package courseapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/courseflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(baseURL, Options{Timeout: 2 * time.Second, RateLimit: 1000, RateLimitBurst: 1000})
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://host", "://bad"} {
		_, err := New(raw, Options{})
		assert.Error(t, err, raw)
	}
}

func TestCredentialHeader(t *testing.T) {
	assert.Equal(t, "Token abc", TokenCredential("abc").Header())
	assert.Equal(t, "Bearer abc", Credential{Scheme: SchemeBearer, Token: "abc"}.Header())
	assert.False(t, Credential{}.Valid())
	assert.NotContains(t, TokenCredential("secret").String(), "secret")
}

func TestMissingCredentialFailsWithoutRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Me(context.Background(), Credential{})
	require.ErrorIs(t, err, ErrNoCredential)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusBadRequest, ErrRejected},
		{http.StatusUnprocessableEntity, ErrRejected},
		{http.StatusInternalServerError, ErrUpstream},
		{http.StatusBadGateway, ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Me(context.Background(), TokenCredential("t"))
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.status, StatusOf(err))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, "me", apiErr.Operation)
		})
	}
}

func TestNoRetryOnServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).VideoStatus(context.Background(), TokenCredential("t"), "5")
	require.ErrorIs(t, err, ErrUpstream)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestBadResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ModuleProgress(context.Background(), TokenCredential("t"), "1")
	require.ErrorIs(t, err, ErrBadResponse)
	assert.False(t, IsTransient(err))
}

func TestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(t, srv.URL).VideoStatus(ctx, TokenCredential("t"), "5")
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTransient(err))
}

func TestUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Me(context.Background(), TokenCredential("t"))
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRequestShape(t *testing.T) {
	var got struct {
		method, path, auth, ctype string
		body                      map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method, got.path = r.Method, r.URL.Path
		got.auth, got.ctype = r.Header.Get("Authorization"), r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL+"/api").PutCheckpoint(context.Background(), TokenCredential("tok"), "3", "9", 42.9)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/courses/3/videos/9/progress/", got.path)
	assert.Equal(t, "Token tok", got.auth)
	assert.Equal(t, "application/json", got.ctype)
	assert.Equal(t, float64(42), got.body["current_time"])
}

func TestEndpointsAgainstFakeBackend(t *testing.T) {
	be := testutil.NewBackend(t)
	be.AddUser("admin-tok", "u1", "admin")
	be.AddUser("viewer-tok", "u2", "student")
	be.SetVideoSource("1", "9", be.URL("/media/9/master.m3u8"))
	be.SetModules("1",
		testutil.Module{ID: 11, Order: 1, ItemType: "video", ItemID: 9, IsUnlocked: true},
		testutil.Module{ID: 12, Order: 2, ItemType: "test", ItemID: 7},
	)
	be.SetTest("1", "7", "Quiz", testutil.Question{ID: 1, Text: "q1", Correct: "A"}, testutil.Question{ID: 2, Text: "q2", Correct: "B"})

	c := newTestClient(t, be.URL(""))
	ctx := context.Background()
	admin, viewer := TokenCredential("admin-tok"), TokenCredential("viewer-tok")

	t.Run("me", func(t *testing.T) {
		u, err := c.Me(ctx, viewer)
		require.NoError(t, err)
		assert.Equal(t, ID("u2"), u.ID)
		assert.Equal(t, "student", u.Role)

		_, err = c.Me(ctx, TokenCredential("unknown"))
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("presign is admin gated", func(t *testing.T) {
		_, err := c.PresignUpload(ctx, viewer)
		require.ErrorIs(t, err, ErrUnauthorized)

		slot, err := c.PresignUpload(ctx, admin)
		require.NoError(t, err)
		assert.NotEmpty(t, slot.Key)
		assert.Contains(t, slot.UploadURL, slot.Key)
	})

	t.Run("checkpoint round trip", func(t *testing.T) {
		cp, err := c.GetCheckpoint(ctx, viewer, "1", "9")
		require.NoError(t, err)
		assert.Zero(t, cp.LastPosition)

		require.NoError(t, c.PutCheckpoint(ctx, viewer, "1", "9", 42))
		cp, err = c.GetCheckpoint(ctx, viewer, "1", "9")
		require.NoError(t, err)
		assert.Equal(t, float64(42), cp.LastPosition)
	})

	t.Run("video source", func(t *testing.T) {
		src, err := c.VideoSource(ctx, viewer, "1", "9")
		require.NoError(t, err)
		assert.Equal(t, be.URL("/media/9/master.m3u8"), src)

		_, err = c.VideoSource(ctx, viewer, "1", "404")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tests", func(t *testing.T) {
		td, err := c.GetTest(ctx, viewer, "1", "7")
		require.NoError(t, err)
		assert.False(t, td.Attempted)
		require.NotNil(t, td.Test)
		assert.Len(t, td.Test.Questions, 2)

		res, err := c.SubmitTest(ctx, viewer, "1", "7", map[string]string{"1": "A", "2": "C"})
		require.NoError(t, err)
		require.NotNil(t, res.Score)
		assert.Equal(t, float64(1), *res.Score)

		_, err = c.SubmitTest(ctx, viewer, "1", "7", map[string]string{"1": "A"})
		require.ErrorIs(t, err, ErrRejected)

		hist, err := c.TestHistory(ctx, viewer, "1")
		require.NoError(t, err)
		require.Len(t, hist, 1)

		detail, err := c.TestHistoryDetail(ctx, viewer, "1", hist[0].ID)
		require.NoError(t, err)
		require.Len(t, detail.Answers, 2)
		assert.True(t, detail.Answers[0].IsCorrect)
		assert.False(t, detail.Answers[1].IsCorrect)

		mp, err := c.ModuleProgress(ctx, viewer, "1")
		require.NoError(t, err)
		require.Len(t, mp.Modules, 2)
		require.NotNil(t, mp.Modules[1].Attempted)
		assert.True(t, *mp.Modules[1].Attempted)
	})

	t.Run("external work and certificate", func(t *testing.T) {
		link, err := c.ExternalWorkStatus(ctx, viewer, "1")
		require.NoError(t, err)
		assert.Empty(t, link)

		_, err = c.RequestCertificate(ctx, viewer, "1")
		require.ErrorIs(t, err, ErrRejected)

		require.NoError(t, c.SubmitExternalWork(ctx, viewer, "1", "https://github.com/u2/project"))
		require.ErrorIs(t, c.SubmitExternalWork(ctx, viewer, "1", "https://github.com/u2/other"), ErrRejected)

		link, err = c.ExternalWorkStatus(ctx, viewer, "1")
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/u2/project", link)

		msg, err := c.RequestCertificate(ctx, viewer, "1")
		require.NoError(t, err)
		assert.NotEmpty(t, msg)
		assert.Equal(t, 1, be.Certificates("u2", "1"))
	})
}
