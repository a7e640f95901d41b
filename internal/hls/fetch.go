// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultMaxPlaylistBytes = 2 << 20

// FetchError reports a playlist that could not be retrieved.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("hls: fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("hls: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves playlists from the media host. Playlists are public
// objects, so no credential is sent.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher returns a fetcher using client.
func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{client: client, maxBytes: defaultMaxPlaylistBytes}
}

// Fetch downloads one playlist body.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return "", &FetchError{URL: locator, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: locator, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", &FetchError{URL: locator, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", &FetchError{URL: locator, Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return "", &FetchError{URL: locator, Err: fmt.Errorf("playlist exceeds %d bytes", f.maxBytes)}
	}
	return string(body), nil
}

// Variants resolves the quality catalog behind locator. A master playlist is
// expanded into its variants; anything else is a single variant labelled
// from its path.
func (f *Fetcher) Variants(ctx context.Context, locator string) ([]Variant, error) {
	if !IsPlaylistLocator(locator) {
		return []Variant{SingleVariant(locator)}, nil
	}
	body, err := f.Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	if !IsMaster(body) {
		return []Variant{SingleVariant(locator)}, nil
	}
	return ParseMaster(body, locator)
}

// IsPlaylistLocator reports whether locator names an m3u8 playlist.
func IsPlaylistLocator(locator string) bool {
	p := locator
	if u, err := url.Parse(locator); err == nil {
		p = u.Path
	}
	return strings.HasSuffix(strings.ToLower(p), ".m3u8")
}
