// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hls parses HLS playlists for variant catalogs and playback duration.
package hls

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMasterPlaylist is returned by ParseMedia when handed a master playlist.
var ErrMasterPlaylist = errors.New("hls: master playlist where media playlist expected")

// MediaInfo is the timeline metadata of a media playlist.
type MediaInfo struct {
	Segments       int
	TargetDuration time.Duration
	TotalDuration  time.Duration
	LastDuration   time.Duration
	HasPDT         bool
	FirstPDT       time.Time
	LastPDT        time.Time
	IsVOD          bool // #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST
}

// Seconds returns the total duration in seconds.
func (m *MediaInfo) Seconds() float64 {
	return m.TotalDuration.Seconds()
}

// ParseMedia reads a media playlist. Program date times must be monotonic,
// and a live playlist that tags some segments must tag all of them.
func ParseMedia(playlist string) (*MediaInfo, error) {
	scanner := bufio.NewScanner(strings.NewReader(playlist))
	info := &MediaInfo{}

	var (
		pendingDur   time.Duration
		pendingPDT   time.Time
		lastPDT      time.Time
		endList      bool
		typeVOD      bool
		segsWithPDT  int
		sawExtM3U    bool
		sawFirstLine bool
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawFirstLine {
			sawFirstLine = true
			sawExtM3U = line == "#EXTM3U"
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			return nil, ErrMasterPlaylist
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			typeVOD = strings.TrimPrefix(line, "#EXT-X-PLAYLIST-TYPE:") == "VOD"
		case line == "#EXT-X-ENDLIST":
			endList = true
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			secs, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return nil, fmt.Errorf("invalid target duration: %s", line)
			}
			info.TargetDuration = time.Duration(secs) * time.Second
		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
			raw := strings.TrimPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:")
			t, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return nil, fmt.Errorf("invalid PDT format: %s", raw)
			}
			if !lastPDT.IsZero() && t.Before(lastPDT) {
				return nil, fmt.Errorf("PDT non-monotonic: %v < %v", t, lastPDT)
			}
			pendingPDT, lastPDT = t, t
		case strings.HasPrefix(line, "#EXTINF:"):
			raw := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.IndexByte(raw, ','); idx != -1 {
				raw = raw[:idx]
			}
			secs, err := strconv.ParseFloat(raw, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("invalid EXTINF duration: %s", raw)
			}
			pendingDur = time.Duration(secs * float64(time.Second))
		case !strings.HasPrefix(line, "#"):
			info.Segments++
			info.TotalDuration += pendingDur
			info.LastDuration = pendingDur
			if !pendingPDT.IsZero() {
				segsWithPDT++
				if info.FirstPDT.IsZero() {
					info.FirstPDT = pendingPDT
				}
				info.LastPDT = pendingPDT
			}
			pendingDur, pendingPDT = 0, time.Time{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawExtM3U {
		return nil, errors.New("hls: missing #EXTM3U header")
	}

	info.IsVOD = typeVOD || endList
	info.HasPDT = segsWithPDT > 0
	if !info.IsVOD && info.HasPDT && segsWithPDT != info.Segments {
		return nil, fmt.Errorf("partial PDT coverage in live playlist (found %d/%d)", segsWithPDT, info.Segments)
	}
	return info, nil
}
