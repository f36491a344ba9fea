// Package logging provides structured logging using uber/zap.
//
// Two output modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every entry carries the process-wide service and environment fields.
// The *Context methods add trace_id and span_id when a span is active in
// the given context, so log lines can be joined with exported spans.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.InfoContext(ctx, "picked color", zap.String("color", "blue"))
//	logger.Error("Failed to connect", zap.Error(err))
package logging
