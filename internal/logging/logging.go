// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures structured logging for docchat.
//
// Every component takes a zerolog.Logger by value and derives a child with
// Component. Tests pass zerolog.Nop().
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level      string    // debug, info, warn, error, disabled
	Pretty     bool      // human-readable console output
	Output     io.Writer // defaults to os.Stderr
	WithCaller bool

	// Dynamic leaves the logger itself at trace and applies Level through
	// zerolog.SetGlobalLevel, so SetLevel changes every derived logger.
	Dynamic bool
}

// ParseLevel maps a config string to a zerolog level. Unknown values fall
// back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New builds the root logger.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.Kitchen,
		}
	}

	level := ParseLevel(cfg.Level)
	if cfg.Dynamic {
		globalMu.Lock()
		dynamic = true
		globalMu.Unlock()
		zerolog.SetGlobalLevel(level)
		level = zerolog.TraceLevel
	}

	ctx := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "docchat")
	if cfg.WithCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// OpenFile opens (appending) a log file for full-screen modes where stderr
// output would corrupt the display. The caller closes the returned file.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// =============================================================================
// GLOBAL LOGGER
// =============================================================================

var (
	globalMu     sync.RWMutex
	globalLogger = zerolog.Nop()
	dynamic      bool
)

// SetGlobal installs the process-wide logger used by code without an
// injected one (config reload warnings, CLI helpers).
func SetGlobal(log zerolog.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = log
}

// Global returns the process-wide logger. It discards everything until
// SetGlobal is called.
func Global() zerolog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLevel changes the level of the global logger in place, used when the
// config file is edited while the TUI is running. Loggers built with
// Config.Dynamic follow the change as well.
func SetLevel(level string) {
	lvl := ParseLevel(level)

	globalMu.Lock()
	defer globalMu.Unlock()
	if dynamic {
		zerolog.SetGlobalLevel(lvl)
	}
	globalLogger = globalLogger.Level(lvl)
}
