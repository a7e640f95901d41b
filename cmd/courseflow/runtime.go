// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ManuGH/courseflow/internal/cache"
	"github.com/ManuGH/courseflow/internal/config"
	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/daemon"
	"github.com/ManuGH/courseflow/internal/hls"
	"github.com/ManuGH/courseflow/internal/ingest"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/platform/httpx"
	"github.com/ManuGH/courseflow/internal/playback"
	"github.com/ManuGH/courseflow/internal/progression"
	"github.com/ManuGH/courseflow/internal/resume"
	"github.com/ManuGH/courseflow/internal/telemetry"
	"github.com/ManuGH/courseflow/internal/version"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var errNoToken = errors.New("no API token configured (set COURSEFLOW_TOKEN or api.token)")

// runtime holds the components of one command invocation. Components are
// built on first use and their shutdown hooks registered with the app.
type runtime struct {
	cfg    config.Config
	app    *daemon.App
	out    io.Writer
	errOut io.Writer
	api    *courseapi.Client
	cred   courseapi.Credential
	logger zerolog.Logger

	once struct {
		viewer, progression, playback, mirror sync.Once
	}
	viewer      *courseapi.User
	viewerErr   error
	progress    *progression.Service
	progressErr error
	player      *playback.Manager
	playerErr   error
	mirror      resume.Store
	mirrorErr   error
}

func newRuntime(ctx context.Context, cfg config.Config, app *daemon.App, out, errOut io.Writer) (*runtime, error) {
	tcfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	}
	tp, err := telemetry.NewProvider(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	app.RegisterShutdownHook("telemetry", tp.Shutdown)

	api, err := courseapi.New(cfg.API.BaseURL, courseapi.Options{
		Timeout:        cfg.API.Timeout,
		RateLimit:      rate.Limit(cfg.API.RateLimit),
		RateLimitBurst: cfg.API.RateBurst,
		UserAgent:      userAgent(cfg.API.UserAgent),
	})
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		app:    app,
		out:    out,
		errOut: errOut,
		api:    api,
		cred:   courseapi.Credential{Scheme: cfg.API.AuthScheme, Token: cfg.API.Token},
		logger: xlog.WithComponent("cli"),
	}, nil
}

func userAgent(configured string) string {
	configured = strings.TrimSpace(configured)
	if strings.Contains(configured, "/") {
		return configured
	}
	return version.UserAgent(configured)
}

// me resolves the viewer behind the configured token once per invocation.
func (rt *runtime) me(ctx context.Context) (*courseapi.User, error) {
	rt.once.viewer.Do(func() {
		if !rt.cred.Valid() {
			rt.viewerErr = errNoToken
			return
		}
		rt.viewer, rt.viewerErr = rt.api.Me(ctx, rt.cred)
		if rt.viewerErr == nil {
			rt.logger = rt.logger.With().Str(xlog.FieldViewerID, string(rt.viewer.ID)).Logger()
		}
	})
	return rt.viewer, rt.viewerErr
}

func (rt *runtime) scope(ctx context.Context, courseID string) (progression.Scope, error) {
	u, err := rt.me(ctx)
	if err != nil {
		return progression.Scope{}, err
	}
	return progression.Scope{Credential: rt.cred, ViewerID: string(u.ID), CourseID: courseapi.ID(courseID)}, nil
}

func (rt *runtime) fetcher() *hls.Fetcher {
	return hls.NewFetcher(httpx.Instrument(httpx.NewClient(rt.cfg.API.Timeout)))
}

func (rt *runtime) orchestrator() *ingest.Orchestrator {
	c := rt.cfg.Ingest
	return ingest.NewOrchestrator(rt.api, ingest.NewTransport(httpx.Instrument(httpx.NewTransferClient())), rt.fetcher(), ingest.Config{
		Poll: ingest.PollerConfig{
			Interval:             c.PollInterval,
			TickTimeout:          c.PollTimeout,
			MaxConsecutiveErrors: c.MaxConsecutiveErrors,
		},
		UploadRoles: c.UploadRoles,
		LedgerPath:  c.LedgerPath,
	})
}

func (rt *runtime) progression() (*progression.Service, error) {
	rt.once.progression.Do(func() {
		c, err := cache.New(cache.Config{
			Backend:         rt.cfg.Cache.Backend,
			CleanupInterval: rt.cfg.Cache.CleanupInterval,
			Redis: cache.RedisConfig{
				Addr:      rt.cfg.Cache.Redis.Addr,
				Password:  rt.cfg.Cache.Redis.Password,
				DB:        rt.cfg.Cache.Redis.DB,
				KeyPrefix: rt.cfg.Cache.Redis.KeyPrefix,
			},
		})
		if err != nil {
			rt.progressErr = fmt.Errorf("progress cache: %w", err)
			return
		}
		rt.app.RegisterShutdownHook("progress_cache", func(context.Context) error { return c.Close() })

		refetches := rt.cfg.Progression.RegressionRefetches
		if refetches == 0 {
			refetches = -1
		}
		rt.progress = progression.NewService(rt.api, c, progression.Config{
			CacheTTL:            rt.cfg.Progression.CacheTTL,
			RegressionRefetches: refetches,
		})
	})
	return rt.progress, rt.progressErr
}

func (rt *runtime) resumeStore(ctx context.Context) (resume.Store, error) {
	rt.once.mirror.Do(func() {
		rt.mirror, rt.mirrorErr = resume.NewStore(ctx, rt.cfg.Resume.Backend, rt.cfg.Resume.Dir)
		if rt.mirrorErr != nil {
			rt.mirrorErr = fmt.Errorf("resume store: %w", rt.mirrorErr)
			return
		}
		rt.app.RegisterShutdownHook("resume_store", func(context.Context) error { return rt.mirror.Close() })
	})
	return rt.mirror, rt.mirrorErr
}

func (rt *runtime) playback(ctx context.Context) (*playback.Manager, error) {
	rt.once.playback.Do(func() {
		mirror, err := rt.resumeStore(ctx)
		if err != nil {
			rt.playerErr = err
			return
		}
		fetcher := rt.fetcher()
		p := rt.cfg.Playback
		rt.player = playback.NewManager(rt.api, fetcher, func() playback.Decoder { return hls.NewDecoder(fetcher) }, mirror, playback.Config{
			CheckpointThreshold: p.CheckpointThreshold,
			DispatchTimeout:     p.DispatchTimeout,
			PendingLimit:        p.PendingLimit,
			BreakerThreshold:    p.BreakerThreshold,
			BreakerCooldown:     p.BreakerCooldown,
		})
		// Registered after the store so it runs first: sessions flush their
		// final checkpoint before the mirror closes.
		rt.app.RegisterShutdownHook("playback", rt.player.Close)
	})
	return rt.player, rt.playerErr
}
