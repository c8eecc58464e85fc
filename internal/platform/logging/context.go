package logging

import (
	"context"

	"go.uber.org/zap"
)

type (
	ctxLoggerKey  struct{}
	ctxTraceIDKey struct{}
)

// WithLogger returns a copy of ctx carrying logger. RequestLogger derives the
// request-scoped logger from it instead of the process-wide one.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return contextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request-scoped logger, or the process-wide logger when ctx carries none.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return Logger()
	}
	if l, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return Logger()
}

// SugarFromContext returns a sugared logger derived from the request context.
func SugarFromContext(ctx context.Context) *zap.SugaredLogger {
	return LoggerFromContext(ctx).Sugar()
}

// TraceIDFromContext returns the correlation identifier (trace resource or request ID).
// The empty string means the request carried neither.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxTraceIDKey{}).(string)
	return id
}

// helperLogger skips the Log* frame so the caller field names the code that logged.
func helperLogger(ctx context.Context) *zap.Logger {
	return LoggerFromContext(ctx).WithOptions(zap.AddCallerSkip(1))
}

func LogInfo(ctx context.Context, msg string, fields ...zap.Field) {
	helperLogger(ctx).Info(msg, fields...)
}

func LogWarn(ctx context.Context, msg string, fields ...zap.Field) {
	helperLogger(ctx).Warn(msg, fields...)
}

// LogError logs at error severity, appending err as the "error" field when non-nil.
func LogError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	helperLogger(ctx).Error(msg, withError(fields, err)...)
}

// LogFatal logs like LogError and then terminates the process.
func LogFatal(ctx context.Context, msg string, err error, fields ...zap.Field) {
	helperLogger(ctx).Fatal(msg, withError(fields, err)...)
}

func withError(fields []zap.Field, err error) []zap.Field {
	if err == nil {
		return fields
	}
	return append(fields, zap.Error(err))
}

func contextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTraceIDKey{}, traceID)
}
