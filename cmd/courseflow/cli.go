// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/courseflow/internal/config"
	"github.com/ManuGH/courseflow/internal/daemon"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/version"
	"github.com/google/uuid"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, rt *runtime, args []string) error
}

var commands = []command{
	{"ingest", "upload a video and follow it until it is playable", runIngest},
	{"progress", "show module states and the next permitted action", runProgress},
	{"test", "open a test, or submit answers with --answers", runTest},
	{"history", "list submitted test attempts", runHistory},
	{"submit-link", "record the final project link of a course", runSubmitLink},
	{"certificate", "request the course certificate", runCertificate},
	{"resume", "show the stored playback position of a video", runResume},
	{"watch", "play a video for a while and checkpoint the position", runWatch},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// usageError marks bad command-line input; it exits with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  courseflow [--config file.yaml] [--env-file .env] [--metrics-addr host:port] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintf(w, "  %-12s %s\n", "version", "print build information")
	fmt.Fprintf(w, "  %-12s %s\n", "config", "validate or dump the effective configuration")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.summary)
	}
}

// run executes one command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("courseflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	configPath := fs.String("config", "", "path to config file (YAML)")
	envFile := fs.String("env-file", ".env", "dotenv file read before the environment (empty disables)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}
	name, rest := rest[0], rest[1:]

	switch name {
	case "version":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "help":
		printUsage(stdout)
		return 0
	case "config":
		return runConfigCLI(rest, strings.TrimSpace(*configPath), *envFile, stdout, stderr)
	}

	cmd, ok := lookupCommand(name)
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
		printUsage(stderr)
		return 2
	}

	// Safe defaults until the configuration is loaded.
	xlog.Configure(xlog.Config{Level: "info", Service: "courseflow", Version: version.Version, Output: stderr})
	logger := xlog.WithComponent("cli")

	cfg, err := config.NewLoader(strings.TrimSpace(*configPath), version.Version).WithEnvFile(*envFile).Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xlog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
		return 1
	}

	xlog.Configure(xlog.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: cfg.Version, Output: stderr})
	logger = xlog.WithComponent("cli")
	logger.Debug().
		Str(xlog.FieldEvent, "config.loaded").
		Str("command", name).
		Str("config_path", *configPath).
		Msg("configuration loaded")

	app := daemon.NewApp(logger, daemon.Options{MetricsAddr: *metricsAddr})
	err = app.Run(ctx, func(ctx context.Context) error {
		ctx = xlog.WithScope(ctx, xlog.Scope{CorrelationID: uuid.NewString()})
		rt, err := newRuntime(ctx, cfg, app, stdout, stderr)
		if err != nil {
			return err
		}
		return cmd.run(ctx, rt, rest)
	})
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(stderr, "Error: %v\n", uerr)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "Interrupted")
		return 130
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

// newFlagSet returns a subcommand flag set whose errors surface as usage errors.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("courseflow "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}
