// Package middleware provides the HTTP middleware stack.
//
// Middleware stack includes:
//   - RequestID: assigns a req_ ULID and returns it in X-Request-ID
//   - CORS: Cross-origin resource sharing that exposes the correlation headers
//   - RateLimit: Per-IP token bucket rate limiting
//
// Rate Limiting:
//   - Per-IP tracking with idle client eviction
//   - Token bucket algorithm
//   - Configurable RPS and burst capacity
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
