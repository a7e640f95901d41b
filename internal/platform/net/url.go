// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package net holds URL helpers for outbound requests to storage and media
// hosts.
package net

import (
	"errors"
	"net/url"
	"strings"
)

// SanitizeURL removes user info and query parameters for safe logging.
// Presigned storage URLs carry their signature in the query.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	parsedURL.Fragment = ""
	return parsedURL.String()
}

// ParseDirectHTTPURL accepts absolute http(s) URLs with a host and without
// embedded credentials or fragments.
func ParseDirectHTTPURL(s string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Host == "" || u.User != nil || u.Fragment != "" {
		return nil, false
	}
	return u, true
}

// RedactError rewrites the URL inside a *url.Error so that the error text
// can be logged. Other errors are returned unchanged.
func RedactError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: SanitizeURL(ue.URL), Err: ue.Err}
}
