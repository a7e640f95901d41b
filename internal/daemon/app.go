// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the lifecycle of a CLI run: the task itself, an
// optional metrics listener and the shutdown hooks that release resources.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoTask is returned by Run when given a nil task.
	ErrNoTask = errors.New("daemon: no task")
	// ErrMetricsListen wraps a failure to bind the metrics address.
	ErrMetricsListen = errors.New("daemon: metrics listener failed")
)

// ShutdownHook releases a resource once the task has returned.
type ShutdownHook func(ctx context.Context) error

// Task is the work of one CLI run. It should return when ctx is done.
type Task func(ctx context.Context) error

// Options configures an App.
type Options struct {
	// MetricsAddr serves /metrics while the task runs. Empty disables it.
	MetricsAddr     string
	ShutdownTimeout time.Duration
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// App runs one task with its supporting listeners.
type App struct {
	logger zerolog.Logger
	opts   Options

	mu    sync.Mutex
	hooks []namedHook
	addr  net.Addr
	ready chan struct{}
}

// NewApp creates an App.
func NewApp(logger zerolog.Logger, opts Options) *App {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &App{logger: logger, opts: opts, ready: make(chan struct{})}
}

// RegisterShutdownHook registers cleanup run after the task, in LIFO order.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
}

// MetricsAddr returns the bound metrics address once the listener is up,
// or nil when metrics are disabled.
func (a *App) MetricsAddr(ctx context.Context) net.Addr {
	if a.opts.MetricsAddr == "" {
		return nil
	}
	select {
	case <-a.ready:
	case <-ctx.Done():
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run executes task until it returns or ctx is done, then stops the metrics
// listener and runs the shutdown hooks. The first failure of the task or the
// listener is returned with hook failures joined to it.
func (a *App) Run(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNoTask
	}

	g, gctx := errgroup.WithContext(ctx)
	taskCtx, stopTask := context.WithCancel(gctx)
	defer stopTask()

	var srv *http.Server
	if a.opts.MetricsAddr != "" {
		ln, err := net.Listen("tcp", a.opts.MetricsAddr)
		if err != nil {
			return errors.Join(fmt.Errorf("%w on %s: %w", ErrMetricsListen, a.opts.MetricsAddr, err), a.shutdown(ctx))
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		a.mu.Lock()
		a.addr = ln.Addr()
		a.mu.Unlock()
		close(a.ready)

		a.logger.Info().Str("event", "metrics.listening").Str("addr", ln.Addr().String()).Msg("metrics server listening")
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error().Err(err).Str("event", "metrics.server.failed").Msg("metrics server failed")
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := task(taskCtx)
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
		return err
	})

	return errors.Join(g.Wait(), a.shutdown(ctx))
}

func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.ShutdownTimeout)
	defer cancel()

	a.mu.Lock()
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.hook(shutdownCtx); err != nil {
			a.logger.Warn().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		a.logger.Debug().Str("hook", h.name).Msg("shutdown hook completed")
	}
	return errors.Join(errs...)
}
