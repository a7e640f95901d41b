// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseMedia_VOD(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-PLAYLIST-TYPE:VOD
#EXT-X-TARGETDURATION:6
#EXTINF:6.0,
seg_00000.ts
#EXTINF:6.0,
seg_00001.ts
#EXTINF:4.5,
seg_00002.ts
#EXT-X-ENDLIST`

	info, err := ParseMedia(playlist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.IsVOD {
		t.Error("expected IsVOD=true")
	}
	if info.Segments != 3 {
		t.Errorf("expected 3 segments, got %d", info.Segments)
	}
	if info.TotalDuration != 16500*time.Millisecond {
		t.Errorf("expected 16.5s, got %v", info.TotalDuration)
	}
	if info.TargetDuration != 6*time.Second {
		t.Errorf("expected target 6s, got %v", info.TargetDuration)
	}
	if info.Seconds() != 16.5 {
		t.Errorf("expected Seconds()=16.5, got %v", info.Seconds())
	}
}

func TestParseMedia_EndListImpliesVOD(t *testing.T) {
	info, err := ParseMedia("#EXTM3U\n#EXTINF:10.0,\nsegment1.ts\n#EXT-X-ENDLIST\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.IsVOD {
		t.Error("expected IsVOD=true due to ENDLIST")
	}
}

func TestParseMedia_EventIsNotVOD(t *testing.T) {
	info, err := ParseMedia("#EXTM3U\n#EXT-X-PLAYLIST-TYPE:EVENT\n#EXTINF:10.0,\nsegment1.ts\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.IsVOD {
		t.Error("expected IsVOD=false for EVENT playlist")
	}
}

func TestParseMedia_LivePDT(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXT-X-PROGRAM-DATE-TIME:2024-01-01T12:00:00Z
#EXTINF:10.0,
segment1.ts
#EXT-X-PROGRAM-DATE-TIME:2024-01-01T12:00:10Z
#EXTINF:10.0,
segment2.ts`

	info, err := ParseMedia(playlist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.HasPDT {
		t.Error("expected HasPDT=true")
	}
	if want := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC); !info.LastPDT.Equal(want) {
		t.Errorf("expected LastPDT=%v, got %v", want, info.LastPDT)
	}
}

func TestParseMedia_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		playlist string
		contains string
	}{
		{"partial PDT", "#EXTM3U\n#EXT-X-PROGRAM-DATE-TIME:2024-01-01T12:00:00Z\n#EXTINF:10.0,\na.ts\n#EXTINF:10.0,\nb.ts\n", "partial PDT coverage"},
		{"non-monotonic PDT", "#EXTM3U\n#EXT-X-PROGRAM-DATE-TIME:2024-01-01T12:00:10Z\n#EXTINF:10.0,\na.ts\n#EXT-X-PROGRAM-DATE-TIME:2024-01-01T12:00:00Z\n#EXTINF:10.0,\nb.ts\n", "non-monotonic"},
		{"bad EXTINF", "#EXTM3U\n#EXTINF:abc,\na.ts\n", "invalid EXTINF"},
		{"missing header", "#EXTINF:10.0,\na.ts\n", "missing #EXTM3U"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMedia(tt.playlist)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected %q in error, got: %v", tt.contains, err)
			}
		})
	}
}

func TestParseMedia_MasterRejected(t *testing.T) {
	_, err := ParseMedia("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1000\nlow/index.m3u8\n")
	if !errors.Is(err, ErrMasterPlaylist) {
		t.Fatalf("expected ErrMasterPlaylist, got %v", err)
	}
}
