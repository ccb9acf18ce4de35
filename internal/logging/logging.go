// Package logging provides structured logging using Go's slog package.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// SentenceKey is the context key for the sentence number being edited.
	SentenceKey ContextKey = "sentence"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	// Initialize with a default logger (JSON format, Info level)
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// ParseLevel maps a config string to a Level. Unknown values map to LevelInfo.
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

// ParseFormat maps a config string to a Format. Unknown values map to FormatJSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "text") {
		return FormatText
	}
	return FormatJSON
}

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(level Level, format Format) {
	InitLoggerTo(os.Stderr, level, format)
}

// InitLoggerTo is InitLogger with an explicit destination.
func InitLoggerTo(w io.Writer, level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// WithSentence adds the current sentence number to the context.
func WithSentence(ctx context.Context, sentence int) context.Context {
	return context.WithValue(ctx, SentenceKey, sentence)
}

// GetSentence retrieves the sentence number from the context, or 0.
func GetSentence(ctx context.Context) int {
	if n, ok := ctx.Value(SentenceKey).(int); ok {
		return n
	}
	return 0
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if n := GetSentence(ctx); n != 0 {
		logger = logger.With("sentence", n)
	}
	return logger
}

// Helper functions for common logging patterns

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// InfoContext logs an info message with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

// WarnContext logs a warning message with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

// ErrorContext logs an error message with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// GraphLoaded logs a successful graph load.
func GraphLoaded(path string, boxes int, encoding string, args ...any) {
	allArgs := []any{
		"path", path,
		"boxes", boxes,
		"encoding", encoding,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("graph_loaded", allArgs...)
}

// GraphSaved logs a graph write.
func GraphSaved(path string, boxes int, args ...any) {
	allArgs := []any{
		"path", path,
		"boxes", boxes,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("graph_saved", allArgs...)
}

// CommandStarted logs the launch of an external tool.
func CommandStarted(runID, command string, argv []string, args ...any) {
	allArgs := []any{
		"run_id", runID,
		"command", command,
		"argv", strings.Join(argv, " "),
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("command_started", allArgs...)
}

// CommandFinished logs the exit of an external tool.
func CommandFinished(runID, command string, exitCode int, duration time.Duration, args ...any) {
	allArgs := []any{
		"run_id", runID,
		"command", command,
		"exit_code", exitCode,
		"duration_ms", duration.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	if exitCode != 0 {
		defaultLogger.Warn("command_finished", allArgs...)
		return
	}
	defaultLogger.Info("command_finished", allArgs...)
}

// EditApplied logs a journaled model edit.
func EditApplied(kind string, boxes int, args ...any) {
	allArgs := []any{
		"kind", kind,
		"boxes", boxes,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("edit_applied", allArgs...)
}

// WebSocketEvent logs WebSocket events.
func WebSocketEvent(event string, clientCount int, args ...any) {
	allArgs := []any{
		"event", event,
		"client_count", clientCount,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("websocket_event", allArgs...)
}

// ServerStartup logs server startup information.
func ServerStartup(serverType, addr string, args ...any) {
	allArgs := []any{
		"server_type", serverType,
		"addr", addr,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("server_startup", allArgs...)
}
