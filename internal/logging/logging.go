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
	// DocSetKey is the context key for the docset an operation works on.
	DocSetKey ContextKey = "docset_id"
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

// ParseLevel maps a flag value such as "debug" or "WARN" to a Level.
// Unknown names fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
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

// ParseFormat maps "text" to FormatText and anything else to FormatJSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "text") {
		return FormatText
	}
	return FormatJSON
}

// InitLogger initializes the global logger with the specified level and format.
// Output goes to stderr so command output on stdout stays clean.
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

// WithDocSet records the docset an operation works on in the context.
func WithDocSet(ctx context.Context, docSetID string) context.Context {
	return context.WithValue(ctx, DocSetKey, docSetID)
}

// GetDocSet retrieves the docset id from the context.
func GetDocSet(ctx context.Context) string {
	if id, ok := ctx.Value(DocSetKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if id := GetDocSet(ctx); id != "" {
		logger = logger.With("docset_id", id)
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

// DebugContext logs a debug message with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug(msg, args...)
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

// DocumentImported logs a document added to a docset.
func DocumentImported(docSetID, docID string, sequences, blocks int, args ...any) {
	allArgs := []any{
		"docset_id", docSetID,
		"doc_id", docID,
		"sequences", sequences,
		"blocks", blocks,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("document_imported", allArgs...)
}

// EnumsRebuilt logs the size of one enum category after a rehash.
func EnumsRebuilt(docSetID, category string, size int, args ...any) {
	allArgs := []any{
		"docset_id", docSetID,
		"category", category,
		"size", size,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("enums_rebuilt", allArgs...)
}

// StoreEvent logs a persistence operation on a stored docset.
func StoreEvent(op, id string, args ...any) {
	allArgs := []any{
		"op", op,
		"id", id,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("store_event", allArgs...)
}

// OperationFailed logs an error returned by a named operation.
func OperationFailed(operation string, err error, args ...any) {
	allArgs := []any{
		"operation", operation,
		"error", err.Error(),
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Error("operation_failed", allArgs...)
}
