// Package config provides 12-factor configuration management for the service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Service: name, environment and version stamped on spans and logs
//   - Server: HTTP listen address and shutdown timeout
//   - Collector: Zipkin endpoint and transport settings
//   - Spans: batching and leak detection
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Server running on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - MICROSERVICE_NAME, ENVIRONMENT_NAME, APP_VERSION
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - COLLECTOR_ENABLED, ZIPKIN_ENDPOINT, COLLECTOR_TIMEOUT, COLLECTOR_GZIP
//   - SPAN_BATCH_SIZE, SPAN_FLUSH_INTERVAL, SPAN_LEAK_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED, RATE_LIMIT_GLOBAL
package config
