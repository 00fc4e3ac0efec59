// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging wraps log/slog with the small amount of policy the
// intake components share: a minimum level, a service attribute stamped
// on every entry, and optional JSON file output alongside the stderr
// stream.
//
// The interview service installs the wrapped logger as the slog default
// so the engine packages can log through plain slog calls; intakectl
// does the same but keeps stderr quiet unless --verbose is set.
//
// Nothing here redacts respondent data. Log metadata about an answer
// (its label, its length), never the answer text itself.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseLevel reads a level name, case-insensitively. Unrecognized names
// fall back to LevelInfo, so a typo in LOG_LEVEL degrades to normal
// verbosity instead of crashing the service.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config configures a Logger. The zero value logs Info and above to
// stderr as text.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// LogDir, when set, adds a JSON log file named
	// "<service>_<YYYY-MM-DD>.log" in this directory. A leading ~ is
	// expanded to the home directory and the directory is created if
	// missing. File setup failures are ignored; stderr output remains.
	LogDir string

	// Service is stamped on every entry as the "service" attribute and
	// names the log file. Defaults to "intake" for the file name.
	Service string

	// JSON switches stderr from text to JSON. The file is always JSON.
	JSON bool

	// Quiet suppresses stderr. With no LogDir either, entries are
	// discarded.
	Quiet bool
}

// Logger is a leveled logger over slog.
//
// # Thread Safety
//
// Safe for concurrent use. Close must only be called once, on the
// logger returned by New; children created with With share the file.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	l := &Logger{}
	var targets []slog.Handler
	if !cfg.Quiet {
		if cfg.JSON {
			targets = append(targets, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			targets = append(targets, slog.NewTextHandler(os.Stderr, opts))
		}
	}
	if cfg.LogDir != "" {
		if f, err := openLogFile(cfg.LogDir, cfg.Service); err == nil {
			l.file = f
			targets = append(targets, slog.NewJSONHandler(f, opts))
		}
	}

	var handler slog.Handler
	switch len(targets) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = targets[0]
	default:
		handler = fanoutHandler(targets)
	}
	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}

	l.slog = slog.New(handler)
	return l
}

// Default returns a stderr text logger at Info level with the service
// name "intake".
func Default() *Logger {
	return New(Config{Service: "intake"})
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger whose entries carry the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: l.file}
}

// Slog exposes the underlying slog.Logger, for slog.SetDefault and for
// collaborators that take a *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing log file: %w", closeErr)
	}
	return nil
}

// openLogFile creates the log directory and opens today's log file for
// appending.
func openLogFile(dir, service string) (*os.File, error) {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	if service == "" {
		service = "intake"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
}

// expandPath replaces a leading ~ with the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// fanoutHandler delivers each record to every target, so stderr and the
// file can use different formats. Records are cloned per target since
// handlers may retain them.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
