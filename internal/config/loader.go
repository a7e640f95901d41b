// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	envFile    string
	version    string
	lookup     func(string) (string, bool)

	// ConsumedEnvKeys lists every environment key the last Load looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version, envFile: ".env"}
}

// WithEnvFile sets the dotenv file read before the environment. A missing file
// is not an error; an empty path disables it.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load loads configuration with precedence ENV > file > defaults and
// validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if err := l.loadDotEnv(); err != nil {
		return cfg, err
	}

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	env := newEnvReader(l.lookup)
	env.mergeEnv(&cfg)
	l.ConsumedEnvKeys = env.consumed
	if len(env.errs) > 0 {
		return cfg, fmt.Errorf("environment: %w", errors.Join(env.errs...))
	}

	if cfg.Resume.Dir != "" {
		if abs, err := filepath.Abs(cfg.Resume.Dir); err == nil {
			cfg.Resume.Dir = abs
		}
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv populates unset variables from the dotenv file. Variables
// already in the environment win.
func (l *Loader) loadDotEnv() error {
	if l.envFile == "" || l.lookup != nil {
		return nil
	}
	err := godotenv.Load(l.envFile)
	switch {
	case err == nil:
		logger := xlog.WithComponent("config")
		logger.Debug().Str("path", l.envFile).Msg("loaded dotenv file")
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("load %s: %w", l.envFile, err)
	}
}

// loadFile decodes a YAML file over cfg with strict parsing.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}
