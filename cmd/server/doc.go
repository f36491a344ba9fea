// Package main is the entry point for the flasky server.
//
// The server answers a few demo routes while exercising the telemetry
// pipeline: every request becomes a trace whose spans are batched and
// shipped to a Zipkin collector, every log line emitted inside a span
// carries its trace_id and span_id, and request metrics are exposed at
// /metrics.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	ZIPKIN_ENDPOINT=http://zipkin:9411/api/v2/spans ./server -port 8080
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, flushing pending spans
package main
