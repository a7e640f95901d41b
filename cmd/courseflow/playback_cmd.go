// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/courseflow/internal/courseapi"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/playback"
	"github.com/ManuGH/courseflow/internal/resume"
)

func runResume(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlagSet("resume", rt.errOut)
	var course, video string
	courseFlag(fs, &course)
	fs.StringVar(&video, "video", "", "video ID (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if course == "" || video == "" {
		return usagef("--course and --video are required")
	}
	u, err := rt.me(ctx)
	if err != nil {
		return err
	}

	cp, serverErr := rt.api.GetCheckpoint(ctx, rt.cred, courseapi.ID(course), courseapi.ID(video))
	if serverErr == nil {
		fmt.Fprintf(rt.out, "position: %s (server)\n", formatSeconds(cp.LastPosition))
		if cp.Duration > 0 {
			fmt.Fprintf(rt.out, "duration: %s\n", formatSeconds(cp.Duration))
		}
		return nil
	}

	rt.logger.Warn().Err(serverErr).Str(xlog.FieldEvent, "resume.server_unavailable").Msg("reading local checkpoint mirror")
	mirror, err := rt.resumeStore(ctx)
	if err != nil {
		return serverErr
	}
	entry, err := mirror.Get(ctx, resume.Key{ViewerID: string(u.ID), CourseID: course, VideoID: video})
	if err != nil || entry == nil {
		return serverErr
	}
	fmt.Fprintf(rt.out, "position: %s (local, %s)\n", formatSeconds(float64(entry.PositionSeconds)), entry.UpdatedAt.Format(time.RFC3339))
	return nil
}

func runWatch(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlagSet("watch", rt.errOut)
	var (
		course, video, quality string
		seconds                float64
		tick                   time.Duration
		speed                  float64
	)
	courseFlag(fs, &course)
	fs.StringVar(&video, "video", "", "video ID (required)")
	fs.StringVar(&quality, "quality", "", "variant label such as 720p; empty picks the default")
	fs.Float64Var(&seconds, "seconds", 60, "how much of the video to play")
	fs.DurationVar(&tick, "tick", time.Second, "wall-clock interval between position reports")
	fs.Float64Var(&speed, "speed", 1, "playback rate")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if course == "" || video == "" {
		return usagef("--course and --video are required")
	}
	if seconds <= 0 || tick <= 0 || speed <= 0 {
		return usagef("--seconds, --tick and --speed must be positive")
	}

	u, err := rt.me(ctx)
	if err != nil {
		return err
	}
	mgr, err := rt.playback(ctx)
	if err != nil {
		return err
	}
	h, err := mgr.Attach(ctx, playback.MediaRef{CourseID: courseapi.ID(course), VideoID: courseapi.ID(video)}, playback.AttachOptions{
		Credential: rt.cred,
		ViewerID:   string(u.ID),
		Quality:    quality,
	})
	if err != nil {
		return err
	}
	defer func() {
		h.Detach()
		printSession(rt, h.Snapshot())
	}()
	if err := h.Err(); err != nil {
		return err
	}

	h.ReportReady()
	start := h.Snapshot()
	if start.ResumeFrom > 0 {
		fmt.Fprintf(rt.out, "resuming at %s\n", formatSeconds(start.Position))
	}

	pos, stop := start.Position, start.Position+seconds
	step := tick.Seconds() * speed
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.ReportPause()
			return ctx.Err()
		case <-t.C:
		}
		pos += step
		if start.Duration > 0 && pos >= start.Duration {
			h.ReportEnded()
			return nil
		}
		if pos >= stop {
			h.ReportTick(stop)
			h.ReportPause()
			return nil
		}
		h.ReportTick(pos)
	}
}

func printSession(rt *runtime, snap playback.Snapshot) {
	fmt.Fprintf(rt.out, "state: %s quality: %s position: %s", snap.State, snap.Quality, formatSeconds(snap.Position))
	if snap.Duration > 0 {
		fmt.Fprintf(rt.out, "/%s", formatSeconds(snap.Duration))
	}
	fmt.Fprintf(rt.out, "\ncheckpoints: %d sent, %d dropped\n", snap.Dispatched, snap.Dropped)
}

func formatSeconds(s float64) string {
	return (time.Duration(s) * time.Second).String()
}
