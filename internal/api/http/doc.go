// Package http holds the request handlers.
//
// Each business route opens a span for its own work inside the request's
// root span and logs through the correlated logger, so its log lines carry
// the span's trace_id and span_id.
//
// Routes:
//   - GET /       span "main"
//   - GET /hello  span "hello" with child "random_color"
//   - GET /bye    span "bye"
//   - GET /health service and exporter status
package http
