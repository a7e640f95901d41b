// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/courses/{c}/module-progress/", 200)

	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "GET")
	verifyAttribute(t, attrs, HTTPRouteKey, "/courses/{c}/module-progress/")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestTransferAttributes(t *testing.T) {
	attrs := TransferAttributes("uploads/a.mp4", 1024, "https://bucket.example.com/uploads/a.mp4")
	verifyAttribute(t, attrs, ObjectKeyKey, "uploads/a.mp4")
	verifyIntAttribute(t, attrs, ObjectSizeKey, 1024)
	verifyAttribute(t, attrs, URLFullKey, "https://bucket.example.com/uploads/a.mp4")

	if got := TransferAttributes("k", 1, ""); len(got) != 2 {
		t.Errorf("Expected empty URL to be omitted, got %d attributes", len(got))
	}
}

func TestMediaAttributes(t *testing.T) {
	tests := []struct {
		name     string
		courseID string
		mediaID  string
		quality  string
		wantLen  int
	}{
		{name: "all fields", courseID: "3", mediaID: "17", quality: "720p", wantLen: 3},
		{name: "only media", mediaID: "17", wantLen: 1},
		{name: "empty", wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := MediaAttributes(tt.courseID, tt.mediaID, tt.quality)
			if len(attrs) != tt.wantLen {
				t.Fatalf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			if tt.mediaID != "" {
				verifyAttribute(t, attrs, MediaIDKey, tt.mediaID)
			}
		})
	}
}

func TestKindAttribute(t *testing.T) {
	verifyAttribute(t, []attribute.KeyValue{KindAttribute("orphaned_upload")}, ErrorKindKey, "orphaned_upload")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if got := a.Value.AsString(); got != want {
				t.Errorf("attribute %s = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want int64) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if got := a.Value.AsInt64(); got != want {
				t.Errorf("attribute %s = %d, want %d", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}
