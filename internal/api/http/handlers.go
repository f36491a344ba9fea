package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/flasky/internal/infrastructure/logging"
	"github.com/GriffinCanCode/flasky/internal/infrastructure/tracing"
)

// ServiceInfo describes the running service in health responses
type ServiceInfo struct {
	Name        string
	Environment string
	Version     string
}

// ExportStats reports span exporter health
type ExportStats interface {
	Pending() int
	DroppedSpans() uint64
	ExportFailures() uint64
}

// Handlers contains all HTTP handlers
type Handlers struct {
	tracer *tracing.Tracer
	logger *logging.Logger
	info   ServiceInfo
	stats  ExportStats
}

// NewHandlers creates a new handler set. stats may be nil.
func NewHandlers(tracer *tracing.Tracer, logger *logging.Logger, info ServiceInfo, stats ExportStats) *Handlers {
	return &Handlers{
		tracer: tracer,
		logger: logger,
		info:   info,
		stats:  stats,
	}
}

// Root handles GET /
func (h *Handlers) Root(c *gin.Context) {
	h.inSpan(c.Request.Context(), "main", func(ctx context.Context, _ *tracing.Span) {
		h.logger.InfoContext(ctx, "main action")
	})

	c.String(http.StatusOK, "What are you doing here?")
}

// Hello handles GET /hello
func (h *Handlers) Hello(c *gin.Context) {
	var message string
	h.inSpan(c.Request.Context(), "hello", func(ctx context.Context, _ *tracing.Span) {
		h.logger.InfoContext(ctx, "hello action")
		message = "hello " + h.randomColor(ctx)
	})

	c.String(http.StatusOK, message)
}

// Bye handles GET /bye
func (h *Handlers) Bye(c *gin.Context) {
	h.inSpan(c.Request.Context(), "bye", func(ctx context.Context, _ *tracing.Span) {
		h.logger.InfoContext(ctx, "bye action")
	})

	c.String(http.StatusOK, "bye")
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":      "healthy",
		"service":     h.info.Name,
		"environment": h.info.Environment,
		"version":     h.info.Version,
		"open_spans":  h.tracer.OpenSpans(),
	}
	if h.stats != nil {
		body["exporter"] = gin.H{
			"pending":  h.stats.Pending(),
			"dropped":  h.stats.DroppedSpans(),
			"failures": h.stats.ExportFailures(),
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) randomColor(ctx context.Context) (color string) {
	h.inSpan(ctx, "random_color", func(ctx context.Context, span *tracing.Span) {
		color = "blue"
		span.SetAttribute("color", color)
		h.logger.InfoContext(ctx, "random color action", zap.String("color", color))
	})
	return color
}

// inSpan runs fn inside a span named name. The span is ended on every exit
// path; a panic marks it as an error before it propagates.
func (h *Handlers) inSpan(ctx context.Context, name string, fn func(context.Context, *tracing.Span)) {
	ctx, span := h.tracer.StartSpan(ctx, name)
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(tracing.StatusError, fmt.Sprintf("panic: %v", r))
			h.end(ctx, span)
			panic(r)
		}
		h.end(ctx, span)
	}()

	fn(ctx, span)
}

// end closes span. A failure is a tracing bug, never a request error.
func (h *Handlers) end(ctx context.Context, span *tracing.Span) {
	if err := span.End(); err != nil {
		h.logger.WarnContext(ctx, "failed to end span", zap.String("span", span.Name()), zap.Error(err))
	}
}
