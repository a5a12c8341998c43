// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for AleutianSwarm components.
//
// The same package serves two very different callers: the swarm CLI, which
// runs for milliseconds and must keep stderr clean enough for humans, and
// the coordinator service, which runs for weeks and emits JSON for log
// aggregation. The configuration surface covers both:
//
//   - Default: stderr output for CLI compatibility (follows Unix conventions)
//   - Optional: file logging with automatic directory creation
//   - Optional: a Sink hook for capture in tests and enterprise forwarding
//
// # Basic Usage
//
// For CLI-style usage with stderr output:
//
//	logger := logging.Default()
//	logger.Info("coordination check", "repo", repo, "branch", branch)
//	logger.Error("release failed", "error", err)
//
// # File Logging
//
// The coordinator enables file logging alongside stderr:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.aleutianswarm/logs",  // Supports ~ expansion
//	    Service: "coordinator",
//	})
//	defer logger.Close()  // Important: flushes and closes the file
//
// This creates log files named `{service}_{date}.log` in JSON format.
//
// # Log Levels
//
// Four levels are supported, matching slog conventions:
//
//   - Debug: Development troubleshooting (lock script arguments, cache keys)
//   - Info: Normal operations (locks acquired, graph rebuilt, sweep results)
//   - Warn: Recoverable issues (retry attempts, stale head, degraded mode)
//   - Error: Operation failures (but the process continues)
//
// # Thread Safety
//
// Logger is safe for concurrent use. Mutable state is protected by a
// mutex, and the underlying slog.Logger is thread-safe.
//
// # Security Considerations
//
// This package does NOT redact sensitive data. Callers must keep the
// GitHub token, sweep secret, and Redis password out of log attributes:
//
//	// BAD: logs the credential
//	logger.Info("github client ready", "token", token)
//
//	// GOOD: log presence only
//	logger.Info("github client ready", "token_present", token != "")
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity.
//
// Levels follow the slog convention and are ordered by severity:
// Debug < Info < Warn < Error. Setting a minimum level discards
// everything below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	// Example: "redis script sha", "graph cache key"
	LevelDebug Level = iota

	// LevelInfo is for normal operational events.
	// Example: "locks acquired", "sweep completed", "graph rebuilt"
	LevelInfo

	// LevelWarn is for unexpected but recoverable situations.
	// Example: "retrying github fetch", "serving stale graph"
	LevelWarn

	// LevelError is for failed operations where the process continues.
	// Example: "redis unreachable", "tree fetch failed"
	LevelError
)

// String returns the human-readable name of the level.
//
// Returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
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
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel bridges Level to the standard library's slog.Level.
// Unknown values map to Info rather than silencing the message.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures Logger behavior.
//
// A zero-value Config is valid and produces a logger that writes Info+
// messages to stderr as text.
//
// CLI default:
//
//	Config{}  // Info level, stderr, text format
//
// Coordinator in a container:
//
//	Config{
//	    Level:   LevelInfo,
//	    Service: "coordinator",
//	    JSON:    true,
//	}
//
// Test capture:
//
//	sink := logging.NewMemorySink()
//	Config{Quiet: true, Sink: sink}
type Config struct {
	// Level sets the minimum log level. Messages below it are discarded.
	// Default: LevelInfo
	Level Level

	// LogDir enables file logging to the given directory.
	//
	// When set, logs are written to both stderr and a file named
	// "{Service}_{YYYY-MM-DD}.log". File logs are always JSON. The
	// directory is created with 0750 permissions if missing, and a
	// leading ~ expands to the user's home directory.
	//
	// Default: "" (file logging disabled)
	LogDir string

	// Service identifies the component generating logs. The value is
	// attached to every entry as the "service" attribute so aggregated
	// logs can be filtered per component.
	//
	// Recommended values: "coordinator", "swarm", "sweeper"
	// Default: "" (no service attribute)
	Service string

	// JSON switches stderr output from human-readable text to JSON.
	// File logs are always JSON regardless of this setting.
	// Default: false
	JSON bool

	// Quiet disables stderr output. Logs still reach the file (if
	// LogDir is set) and the Sink (if configured). Useful for tests
	// and for daemons whose stderr nobody watches.
	// Default: false
	Quiet bool

	// Sink receives a copy of every entry at or above Level.
	//
	// Record is called synchronously on the logging goroutine, so
	// implementations must be fast and must never block; anything
	// doing I/O should buffer and flush elsewhere. This is the
	// extension point AleutianEnterprise uses for centralized log
	// shipping; the open source tree uses it for test capture.
	//
	// Default: nil (disabled)
	Sink Sink
}

// =============================================================================
// Sink Extension Point
// =============================================================================

// Sink receives structured log entries alongside the normal outputs.
//
// Implementations own their resources and lifecycle; Logger.Close does
// not call into the sink. A sink that opens connections or files should
// expose its own Close for the owner to defer.
type Sink interface {
	// Record consumes one entry. Called synchronously for every log
	// call at or above the configured level, so it must return fast.
	Record(e Entry)
}

// Entry is the structured form of one log call as seen by a Sink.
type Entry struct {
	// Time when the entry was produced (local time).
	Time time.Time

	// Level of the entry.
	Level Level

	// Message is the primary log message.
	Message string

	// Service from Config.Service, "" when unset.
	Service string

	// Attrs holds the key-value pairs passed at the call site.
	// Attributes baked in via With() travel through the slog handler
	// chain and do not appear here.
	Attrs map[string]any
}

// MemorySink collects entries in memory for inspection.
//
// Intended for tests:
//
//	sink := logging.NewMemorySink()
//	logger := logging.New(logging.Config{Quiet: true, Sink: sink})
//
//	logger.Info("sweep completed", "cleaned", 3)
//
//	entries := sink.Entries()
//	// entries[0].Message == "sweep completed"
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends the entry to the buffer.
func (s *MemorySink) Record(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Entries returns a copy of all recorded entries.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Reset discards all recorded entries.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

var _ Sink = (*MemorySink)(nil)

// =============================================================================
// Logger
// =============================================================================

// Logger provides structured logging with multi-destination output.
//
// Logger wraps slog.Logger and adds simultaneous stderr plus file
// output, the Sink hook, and cleanup via Close.
//
// Child loggers created with With() share the parent's file handle and
// sink; only the owner that called New should Close.
type Logger struct {
	// slog is the underlying structured logger.
	slog *slog.Logger

	// cfg is retained for level gating and sink metadata.
	cfg Config

	// file is the open log file, nil when file logging is disabled.
	file *os.File

	// mu protects file during Close.
	mu sync.Mutex
}

// New creates a Logger from the given configuration.
//
// Destinations are assembled from the config: stderr (unless Quiet),
// a JSON log file (when LogDir is set), and the Sink (when set). File
// setup failures degrade silently to the remaining destinations; a
// logger that cannot log its own construction error helps nobody.
//
// Close the returned Logger when file logging is enabled.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}
	l := &Logger{cfg: cfg}

	var handlers []slog.Handler
	if !cfg.Quiet {
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}
	if cfg.LogDir != "" {
		if file := openLogFile(cfg.LogDir, cfg.Service); file != nil {
			l.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet with no file still needs a valid handler; discard
		// by filtering everything out at the handler level.
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.Level(127),
		})
	case 1:
		handler = handlers[0]
	default:
		handler = &teeHandler{handlers: handlers}
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", cfg.Service),
		})
	}

	l.slog = slog.New(handler)
	return l
}

// openLogFile prepares the log directory and opens today's log file in
// append mode. Returns nil when the directory or file cannot be created.
func openLogFile(dir, service string) *os.File {
	logDir := expandPath(dir)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "swarm"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// Default returns a logger with default settings.
//
// The default configuration:
//   - Level: Info
//   - Output: stderr only
//   - Format: text (human-readable)
//   - Service: "swarm"
//
// Suitable for CLI paths and as the fallback when a component is
// constructed with a nil logger.
func Default() *Logger {
	return New(Config{
		Level:   LevelInfo,
		Service: "swarm",
	})
}

// Debug logs a message at Debug level.
//
// Parameters:
//   - msg: The log message
//   - args: Key-value pairs of attributes (e.g., "path", "src/auth.ts")
//
// Example:
//
//	logger.Debug("lock script loaded", "sha", scriptSHA)
func (l *Logger) Debug(msg string, args ...any) {
	l.emit(LevelDebug, msg, args...)
}

// Info logs a message at Info level.
//
// Parameters:
//   - msg: The log message
//   - args: Key-value pairs of attributes
//
// Example:
//
//	logger.Info("locks acquired",
//	    "repo", repo,
//	    "branch", branch,
//	    "count", len(paths),
//	)
func (l *Logger) Info(msg string, args ...any) {
	l.emit(LevelInfo, msg, args...)
}

// Warn logs a message at Warn level.
//
// Parameters:
//   - msg: The log message
//   - args: Key-value pairs of attributes
//
// Example:
//
//	logger.Warn("serving stale graph",
//	    "age", age.String(),
//	    "reason", "github quota exhausted",
//	)
func (l *Logger) Warn(msg string, args ...any) {
	l.emit(LevelWarn, msg, args...)
}

// Error logs a message at Error level.
//
// The process continues after an Error log; callers that need to
// terminate should follow up with os.Exit themselves.
//
// Parameters:
//   - msg: The log message
//   - args: Key-value pairs of attributes
//
// Example:
//
//	logger.Error("sweep failed", "error", err.Error())
func (l *Logger) Error(msg string, args ...any) {
	l.emit(LevelError, msg, args...)
}

// With returns a child Logger carrying additional attributes.
//
// The child includes all parent attributes plus the given ones, and
// shares the parent's file handle and sink. The parent is unchanged.
//
// Example:
//
//	reqLog := logger.With("request_id", reqID, "user_id", userID)
//	reqLog.Info("acquiring locks")
//	reqLog.Info("locks acquired")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog: l.slog.With(args...),
		cfg:  l.cfg,
		file: l.file, // shared; only the creator closes
	}
}

// Slog exposes the underlying slog.Logger for callers that need
// features this wrapper does not cover, such as LogAttrs.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if any.
//
// Sinks are not touched; they manage their own lifecycle. Close is a
// no-op for loggers without file logging.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	l.file = nil
	return nil
}

// emit dispatches to slog and mirrors the entry into the sink.
func (l *Logger) emit(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.cfg.Sink != nil && level >= l.cfg.Level {
		l.cfg.Sink.Record(Entry{
			Time:    time.Now(),
			Level:   level,
			Message: msg,
			Service: l.cfg.Service,
			Attrs:   attrMap(args),
		})
	}
}

// =============================================================================
// Tee Handler (Internal)
// =============================================================================

// teeHandler fans one record out to several slog handlers, enabling
// simultaneous text-to-stderr and JSON-to-file output.
type teeHandler struct {
	handlers []slog.Handler
}

// Enabled reports whether any wrapped handler wants the level.
func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every enabled handler. The first
// failure is returned but does not stop delivery to the rest.
func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs clones the tee with the attributes applied to every handler.
func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &teeHandler{handlers: handlers}
}

// WithGroup clones the tee with the group applied to every handler.
func (h *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &teeHandler{handlers: handlers}
}

// =============================================================================
// Helpers
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
//
// Examples:
//   - "~/.aleutianswarm/logs" -> "/home/user/.aleutianswarm/logs"
//   - "/var/log/swarm" -> "/var/log/swarm" (unchanged)
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// attrMap converts slog-style key-value args to a map for Entry.Attrs.
// Non-string keys and a dangling final value are skipped.
//
// Example:
//
//	attrMap([]any{"repo", "swarm/demo", "count", 3})
//	// map[string]any{"repo": "swarm/demo", "count": 3}
func attrMap(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			out[key] = args[i+1]
		}
	}
	return out
}
