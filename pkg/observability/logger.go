// Package observability provides structured logging, metrics and timing helpers
// shared by the supabase-go sub-clients and the CLI.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LogFormat selects the slog handler used for output.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogLevel is the minimum level a logger emits.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to os.Stderr.
	Output    io.Writer
	AddSource bool
	// Component is attached to every record as "component".
	Component string
	// Version is attached to every record as "version".
	Version string
}

// DefaultLogConfig returns the text logger used during development.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatText,
		Output:    os.Stderr,
		Component: "supabase-go",
		Version:   "dev",
	}
}

// ProductionLogConfig returns a JSON logger with source locations.
func ProductionLogConfig() LogConfig {
	return LogConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatJSON,
		Output:    os.Stdout,
		AddSource: true,
		Component: "supabase-go",
		Version:   "unknown",
	}
}

// NewLogger builds a slog.Logger for cfg. Records logged with a context carry
// the correlation id stored in it.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     parseSlogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var base slog.Handler
	if cfg.Format == LogFormatJSON {
		base = slog.NewJSONHandler(out, opts)
	} else {
		base = slog.NewTextHandler(out, opts)
	}

	var attrs []slog.Attr
	if cfg.Component != "" {
		attrs = append(attrs, slog.String("component", cfg.Component))
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return slog.New(&contextHandler{handler: base, attrs: attrs})
}

// OrDefault returns logger, or slog.Default when logger is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func parseSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler appends fixed attributes and the correlation id found in the record's context.
type contextHandler struct {
	handler slog.Handler
	attrs   []slog.Attr
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)
	if id := CorrelationIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(CorrelationIDKey, id))
	}
	return h.handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{handler: h.handler.WithAttrs(attrs), attrs: h.attrs}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{handler: h.handler.WithGroup(name), attrs: h.attrs}
}

// LogOperation returns logger scoped to a named operation.
func LogOperation(logger *slog.Logger, operation string, attrs ...any) *slog.Logger {
	return OrDefault(logger).With(append([]any{OperationKey, operation}, attrs...)...)
}
