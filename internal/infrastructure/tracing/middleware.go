package tracing

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TraceIDHeader carries the request's trace ID in responses so a caller
// can look the trace up. Incoming values are never trusted.
const TraceIDHeader = "X-Trace-ID"

// RequestIDKey is the gin context key the request ID middleware sets.
const RequestIDKey = "request_id"

// HTTPMiddleware creates Gin middleware that wraps every request in a
// root server span on a fresh span slot.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx := ContextWithNewSlot(c.Request.Context())
		ctx, span := tracer.StartSpan(ctx, c.Request.Method+" "+route,
			WithKind(KindServer),
			WithAttributes(map[string]any{
				"http.method": c.Request.Method,
				"http.route":  route,
				"http.target": c.Request.URL.Path,
				"http.host":   c.Request.Host,
			}),
		)
		if reqID := c.GetString(RequestIDKey); reqID != "" {
			span.SetAttribute("http.request_id", reqID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceIDHeader, span.Context().TraceID.String())

		defer func() {
			if r := recover(); r != nil {
				span.SetStatus(StatusError, fmt.Sprintf("panic: %v", r))
				finish(tracer, c, span)
				panic(r)
			}
			finish(tracer, c, span)
		}()

		c.Next()

		status := c.Writer.Status()
		span.SetAttribute("http.status_code", status)
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(StatusError, http.StatusText(status))
		}
	}
}

// finish ends the root span. If the handler left child spans open the
// whole slot is released so nothing outlives the request.
func finish(tracer *Tracer, c *gin.Context, span *Span) {
	err := span.End()
	if errors.Is(err, ErrOutOfOrderSpanEnd) {
		tracer.ReleaseSlot(c.Request.Context(), "request finished with open spans")
	}
}
