package observability

import (
	"context"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/batchmon/internal/logfields"
)

// LogContext holds structured logging context information for the execution
// currently being observed.
type LogContext struct {
	JobName        string
	JobExecutionID int64
	StepName       string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithJob adds the job name and execution id to the context.
func WithJob(ctx context.Context, jobName string, executionID int64) context.Context {
	lc := extractLogContext(ctx)
	lc.JobName = jobName
	lc.JobExecutionID = executionID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStep adds a step name to the context.
func WithStep(ctx context.Context, stepName string) context.Context {
	lc := extractLogContext(ctx)
	lc.StepName = stepName
	return context.WithValue(ctx, logContextKey, lc)
}

// extractLogContext retrieves or creates a LogContext from the context.
func extractLogContext(ctx context.Context) LogContext {
	if ctx == nil {
		return LogContext{}
	}
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// getLogAttrs returns slog attributes from the context's LogContext.
func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.JobName != "" {
		attrs = append(attrs, logfields.JobName(lc.JobName))
	}
	if lc.JobExecutionID != 0 {
		attrs = append(attrs, logfields.JobExecutionID(lc.JobExecutionID))
	}
	if lc.StepName != "" {
		attrs = append(attrs, logfields.StepName(lc.StepName))
	}

	return attrs
}

func logContext(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !slog.Default().Enabled(ctx, level) {
		return
	}
	allAttrs := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, level, msg, allAttrs...)
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelInfo, msg, attrs)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelWarn, msg, attrs)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelError, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelDebug, msg, attrs)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

// NewLogger builds a text or JSON slog logger writing to w.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
