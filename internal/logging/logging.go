// Package logging provides structured logging with trace correlation for the
// agent services.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Context keys for correlation fields.
type contextKey string

const (
	// TraceIDKey carries the request trace ID.
	TraceIDKey contextKey = "trace_id"

	// UserIDKey carries the authenticated user ID.
	UserIDKey contextKey = "user_id"

	// ServiceIDKey carries the calling service name on internal requests.
	ServiceIDKey contextKey = "service_id"
)

// Logger wraps logrus with service identity and context extraction.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger for the named service. Format is "json" or "text";
// unknown levels fall back to info.
func New(service, level, format string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{entry: base.WithField("service", service)}
}

// NewDefault creates a JSON logger at info level.
func NewDefault(service string) *Logger {
	return New(service, "info", "json")
}

// NewNop creates a logger that discards all output. Intended for tests.
func NewNop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// WithContext returns a logger annotated with correlation fields found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	entry := l.entry
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if userID := GetUserID(ctx); userID != "" {
		entry = entry.WithField("user_id", userID)
	}
	if serviceID := GetServiceID(ctx); serviceID != "" {
		entry = entry.WithField("caller_service", serviceID)
	}
	return &Logger{entry: entry}
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// LogRequest logs a completed HTTP request with its outcome.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("request completed")
}

// LogSecurityEvent logs an auth or abuse related event.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).WithField("security_event", event).WithFields(fields).Warn("security event")
}

// NewTraceID generates a fresh trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID returns a context carrying the trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from context, or "".
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the authenticated user ID from context, or "".
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

// WithServiceID returns a context carrying the calling service name.
func WithServiceID(ctx context.Context, serviceID string) context.Context {
	return context.WithValue(ctx, ServiceIDKey, serviceID)
}

// GetServiceID extracts the calling service name from context, or "".
func GetServiceID(ctx context.Context) string {
	return stringValue(ctx, ServiceIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
