package tracing

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes finished spans to a logger instead of a collector.
// It keeps spans visible when no collector is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs through logger
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send implements Sink
func (l *LogSink) Send(_ context.Context, batch []SpanRecord) error {
	for _, span := range batch {
		fields := []zap.Field{
			zap.String("trace_id", span.Context.TraceID.String()),
			zap.String("span_id", span.Context.SpanID.String()),
			zap.String("operation", span.Name),
			zap.String("kind", span.Kind.String()),
			zap.Duration("duration", span.Duration()),
			zap.String("service", span.Service),
			zap.String("status", span.Status.Code.String()),
			zap.Any("attributes", span.Attributes),
		}

		if !span.Context.IsRoot() {
			fields = append(fields, zap.String("parent_id", span.Context.ParentSpanID.String()))
		}

		if span.Status.Code == StatusError {
			fields = append(fields, zap.String("error", span.Status.Description))
			l.logger.Error("span completed with error", fields...)
		} else {
			l.logger.Info("span completed", fields...)
		}
	}
	return nil
}
