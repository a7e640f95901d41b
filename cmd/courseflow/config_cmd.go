// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/courseflow/internal/config"
	"github.com/ManuGH/courseflow/internal/version"
	"gopkg.in/yaml.v3"
)

func runConfigCLI(args []string, configPath, envFile string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], configPath, envFile, stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], configPath, envFile, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  courseflow config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  courseflow config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func configFileFlags(fs *flag.FlagSet, file *string, fallback string) {
	fs.StringVar(file, "file", fallback, "path to YAML configuration file")
	fs.StringVar(file, "f", fallback, "path to YAML configuration file (shorthand)")
}

func runConfigValidate(args []string, configPath, envFile string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("courseflow config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file string
	configFileFlags(fs, &file, configPath)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	file = strings.TrimSpace(file)
	if _, err := config.NewLoader(file, version.Version).WithEnvFile(envFile).Load(); err != nil {
		source := file
		if source == "" {
			source = "environment"
		}
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", source, err)
		return 1
	}
	if file == "" {
		fmt.Fprintln(stdout, "configuration from environment and defaults is valid")
	} else {
		fmt.Fprintf(stdout, "%s is valid\n", file)
	}
	return 0
}

func runConfigDump(args []string, configPath, envFile string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("courseflow config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file, format string
	configFileFlags(fs, &file, configPath)
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.NewLoader(strings.TrimSpace(file), version.Version).WithEnvFile(envFile).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	masked := config.MaskSecrets(cfg)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(masked); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		_ = enc.Close()
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(masked); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintf(stderr, "Error: unsupported format %q (use yaml or json)\n", format)
		return 2
	}
	return 0
}
