// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ManuGH/courseflow/internal/metrics"
	netx "github.com/ManuGH/courseflow/internal/platform/net"
	"github.com/ManuGH/courseflow/internal/telemetry"
)

var errBadDestination = errors.New("upload destination is not a direct http(s) URL")

// Source is the binary to upload.
type Source struct {
	Reader      io.Reader `validate:"required"`
	Size        int64     `validate:"gt=0"`
	ContentType string    `validate:"required"`
	Name        string
}

// Destination is a presigned storage target. No credential is attached.
type Destination struct {
	URL       string
	ObjectKey string
}

// Progress is a transfer progress sample.
type Progress struct {
	Sent    int64
	Size    int64
	Percent int
}

// Transport performs single PUT transfers to presigned destinations.
type Transport struct {
	client *http.Client
	// sampleEvery bounds how often progress callbacks fire while streaming.
	sampleEvery time.Duration
}

// NewTransport returns a transport over client. The client should carry no
// overall timeout; transfers are bounded by their context.
func NewTransport(client *http.Client) *Transport {
	return &Transport{client: client, sampleEvery: 100 * time.Millisecond}
}

// Put streams src to dest. Progress is capped at 99% while bytes are in
// flight; 100% is reported only once storage acknowledged the write.
func (t *Transport) Put(ctx context.Context, dest Destination, src Source, onProgress func(Progress)) error {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	if _, ok := netx.ParseDirectHTTPURL(dest.URL); !ok {
		return &TransferInterruptedError{Size: src.Size, Err: fmt.Errorf("%w: %s", errBadDestination, netx.SanitizeURL(dest.URL))}
	}

	ctx, span := telemetry.StartClientSpan(ctx, tracerName, "ingest.transfer",
		telemetry.TransferAttributes(dest.ObjectKey, src.Size, netx.SanitizeURL(dest.URL))...)

	body := &countingReader{r: src.Reader}
	err := t.put(ctx, dest, src, body, onProgress)
	metrics.AddUploadBytes(body.n.Load())
	telemetry.EndSpan(span, err)
	return err
}

func (t *Transport) put(ctx context.Context, dest Destination, src Source, body *countingReader, onProgress func(Progress)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest.URL, io.NopCloser(body))
	if err != nil {
		return &TransferInterruptedError{Size: src.Size, Err: netx.RedactError(err)}
	}
	req.ContentLength = src.Size
	req.Header.Set("Content-Type", src.ContentType)

	onProgress(Progress{Size: src.Size})

	stop := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		ticker := time.NewTicker(t.sampleEvery)
		defer ticker.Stop()
		last := -1
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				sent := body.n.Load()
				if pct := inFlightPercent(sent, src.Size); pct != last {
					last = pct
					onProgress(Progress{Sent: sent, Size: src.Size, Percent: pct})
				}
			}
		}
	}()

	resp, err := t.client.Do(req)
	close(stop)
	<-sampled

	sent := body.n.Load()
	if err != nil {
		return &TransferInterruptedError{Sent: sent, Size: src.Size, Err: netx.RedactError(err)}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthorizationError{Op: "transfer", Err: errors.New(http.StatusText(resp.StatusCode))}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &TransferInterruptedError{Sent: sent, Size: src.Size, Status: resp.StatusCode}
	case sent != src.Size:
		return &TransferInterruptedError{Sent: sent, Size: src.Size, Err: io.ErrUnexpectedEOF}
	}

	onProgress(Progress{Sent: sent, Size: src.Size, Percent: 100})
	return nil
}

// inFlightPercent is round(sent/size*100) clamped to [0,99].
func inFlightPercent(sent, size int64) int {
	if size <= 0 {
		return 0
	}
	pct := int(math.Round(float64(sent) / float64(size) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 99 {
		return 99
	}
	return pct
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
