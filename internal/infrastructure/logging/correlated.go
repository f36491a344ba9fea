package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/flasky/internal/infrastructure/tracing"
)

// Field keys that tie a log entry to its span
const (
	TraceIDKey = "trace_id"
	SpanIDKey  = "span_id"
)

// TraceFields returns the trace_id and span_id of the span active in ctx,
// or nil when no span is active.
func TraceFields(ctx context.Context) []zap.Field {
	sc, ok := tracing.CurrentSpan(ctx)
	if !ok {
		return nil
	}
	return []zap.Field{
		zap.String(TraceIDKey, sc.TraceID.String()),
		zap.String(SpanIDKey, sc.SpanID.String()),
	}
}

// Log emits msg at level, stamped with the ids of the span active in ctx.
// The ids are read when Log is called, not when the entry is encoded.
func (l *Logger) Log(ctx context.Context, level zapcore.Level, msg string, fields ...zap.Field) {
	l.write(ctx, level, msg, fields)
}

// DebugContext logs at debug level with trace correlation
func (l *Logger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.DebugLevel, msg, fields)
}

// InfoContext logs at info level with trace correlation
func (l *Logger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.InfoLevel, msg, fields)
}

// WarnContext logs at warn level with trace correlation
func (l *Logger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.WarnLevel, msg, fields)
}

// ErrorContext logs at error level with trace correlation
func (l *Logger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.write(ctx, zapcore.ErrorLevel, msg, fields)
}

// For returns a zap logger bound to the span active in ctx. Later spans
// do not change the ids it carries.
func (l *Logger) For(ctx context.Context) *zap.Logger {
	return l.Logger.With(TraceFields(ctx)...)
}

func (l *Logger) write(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {
	ce := l.ctxLogger.Check(level, msg)
	if ce == nil {
		return
	}
	if trace := TraceFields(ctx); len(trace) > 0 {
		fields = append(fields[:len(fields):len(fields)], trace...)
	}
	ce.Write(fields...)
}
