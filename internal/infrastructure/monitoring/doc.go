/*
Package monitoring provides request metrics and their exposition.

# Overview

Metrics live on a private Prometheus registry rather than the global
default, so tests and multiple servers in one process do not collide.

# Metrics

  - <ns>_http_requests_total{route,status_class}
  - <ns>_http_request_duration_seconds{route}
  - <ns>_app_info{version}
  - <ns>_spans_dropped_total, <ns>_span_export_failures_total,
    <ns>_spans_exported_total (read from the span exporter at scrape time)
  - Go runtime and process collectors

# Usage

	reg := monitoring.NewRegistry("flasky", "1.0.3")
	router.Use(monitoring.Middleware(reg))
	router.GET("/metrics", reg.Handler())
*/
package monitoring
