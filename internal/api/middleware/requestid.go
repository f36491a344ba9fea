package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/flasky/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/flasky/internal/shared/id"
)

// Response headers that correlate a request with its logs and spans
const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = tracing.TraceIDHeader
)

// RequestID assigns every request a fresh request ID. Client supplied
// values are ignored.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := string(id.NewRequestID())
		c.Set(tracing.RequestIDKey, reqID)
		c.Header(RequestIDHeader, reqID)
		c.Next()
	}
}
