package tracing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/flasky/internal/shared/id"
)

// Exporter receives finished spans. BatchExporter is the production
// implementation.
type Exporter interface {
	Enqueue(record SpanRecord)
	Shutdown(ctx context.Context) error
}

// Tracer creates spans, tracks the active span of each request and hands
// finished spans to the exporter.
type Tracer struct {
	service  string
	logger   *zap.Logger
	exporter Exporter
	ids      *id.Generator
	now      func() time.Time

	leakTimeout   time.Duration
	sweepInterval time.Duration

	// open indexes every started, not yet ended span by span ID.
	open sync.Map

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Tracer
type Option func(*Tracer)

// WithLeakDetection force-closes spans left open longer than timeout,
// checking every interval. A zero timeout disables the sweep.
func WithLeakDetection(timeout, interval time.Duration) Option {
	return func(t *Tracer) {
		t.leakTimeout = timeout
		t.sweepInterval = interval
	}
}

// WithIDGenerator overrides the ID source
func WithIDGenerator(gen *id.Generator) Option {
	return func(t *Tracer) {
		t.ids = gen
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracer) {
		t.now = now
	}
}

// New creates a tracer for service and starts its leak sweep.
func New(service string, logger *zap.Logger, exporter Exporter, opts ...Option) *Tracer {
	t := &Tracer{
		service:       service,
		logger:        logger,
		exporter:      exporter,
		ids:           id.Default(),
		now:           time.Now,
		leakTimeout:   5 * time.Minute,
		sweepInterval: 30 * time.Second,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.leakTimeout > 0 && t.sweepInterval > 0 {
		go t.sweepLoop()
	} else {
		close(t.done)
	}

	return t
}

// Service returns the service name stamped on every span
func (t *Tracer) Service() string {
	return t.service
}

type spanConfig struct {
	parent    SpanContext
	hasParent bool
	kind      Kind
	attrs     map[string]any
}

// SpanOption configures a span at start
type SpanOption func(*spanConfig)

// WithParent starts the span under an explicit parent instead of the
// context's current span.
func WithParent(parent SpanContext) SpanOption {
	return func(c *spanConfig) {
		c.parent = parent
		c.hasParent = true
	}
}

// WithKind sets the span kind
func WithKind(kind Kind) SpanOption {
	return func(c *spanConfig) {
		c.kind = kind
	}
}

// WithAttributes seeds the span's attributes
func WithAttributes(attrs map[string]any) SpanOption {
	return func(c *spanConfig) {
		for k, v := range attrs {
			c.attrs[k] = v
		}
	}
}

// StartSpan opens a span and makes it the current span of ctx's slot.
// The parent is the explicit WithParent context if given and still live,
// otherwise the slot's current span; with neither, a new trace begins.
// The returned context carries the slot and must be used for the work
// the span covers. Callers must defer End.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := spanConfig{attrs: make(map[string]any)}
	for _, opt := range opts {
		opt(&cfg)
	}

	stack := slotFrom(ctx)
	if stack == nil {
		ctx = ContextWithNewSlot(ctx)
		stack = slotFrom(ctx)
	}

	stack.mu.Lock()
	defer stack.mu.Unlock()

	parent, hasParent := cfg.parent, cfg.hasParent
	if hasParent && !t.isLive(parent.SpanID) {
		t.logger.Debug("parent span is not live, starting new trace",
			zap.String("operation", name),
			zap.String("parent_id", parent.SpanID.String()),
		)
		hasParent = false
	}
	if !hasParent {
		if top := stack.top(); top != nil {
			parent, hasParent = top.sc, true
		}
	}

	sc := SpanContext{SpanID: t.ids.SpanID()}
	if hasParent {
		sc.TraceID = parent.TraceID
		sc.ParentSpanID = parent.SpanID
	} else {
		sc.TraceID = t.ids.TraceID()
	}

	span := &Span{
		tracer: t,
		stack:  stack,
		sc:     sc,
		name:   name,
		kind:   cfg.kind,
		start:  t.now(),
		attrs:  cfg.attrs,
	}
	stack.push(span)
	t.open.Store(sc.SpanID, span)

	return ctx, span
}

func (t *Tracer) isLive(spanID trace.SpanID) bool {
	v, ok := t.open.Load(spanID)
	if !ok {
		return false
	}
	return !v.(*Span).IsEnded()
}

// EndSpan finishes span, pops it from its slot and enqueues its record.
// Ending a span twice returns ErrInvalidSpanState; ending a span that is
// not the slot's current span returns ErrOutOfOrderSpanEnd. Neither error
// changes any state.
func (t *Tracer) EndSpan(span *Span) error {
	if span == nil {
		return ErrInvalidSpanState
	}

	stack := span.stack
	stack.mu.Lock()
	span.mu.Lock()

	if span.ended {
		span.mu.Unlock()
		stack.mu.Unlock()
		t.logger.Debug("span ended twice",
			zap.String("operation", span.name),
			zap.String("trace_id", span.sc.TraceID.String()),
			zap.String("span_id", span.sc.SpanID.String()),
		)
		return fmt.Errorf("%w: %s", ErrInvalidSpanState, span.name)
	}

	if top := stack.top(); top != span {
		span.mu.Unlock()
		stack.mu.Unlock()
		open := "none"
		if top != nil {
			open = top.name
		}
		t.logger.Warn("span ended out of order",
			zap.String("operation", span.name),
			zap.String("open_child", open),
			zap.String("trace_id", span.sc.TraceID.String()),
			zap.String("span_id", span.sc.SpanID.String()),
		)
		return fmt.Errorf("%w: %s ended while %s is open", ErrOutOfOrderSpanEnd, span.name, open)
	}

	stack.pop()
	if span.status.Code == StatusUnset {
		span.status.Code = StatusOk
	}
	record := span.finish(t.now())

	span.mu.Unlock()
	stack.mu.Unlock()

	t.open.Delete(span.sc.SpanID)
	t.exporter.Enqueue(record)
	return nil
}

// CurrentSpan returns the current span of ctx's slot
func (t *Tracer) CurrentSpan(ctx context.Context) (SpanContext, bool) {
	return CurrentSpan(ctx)
}

// ReleaseSlot force-closes every span still open in ctx's slot, innermost
// first, with status Error. Request middleware calls it when a handler
// returned without ending its spans.
func (t *Tracer) ReleaseSlot(ctx context.Context, reason string) int {
	stack := slotFrom(ctx)
	if stack == nil {
		return 0
	}

	stack.mu.Lock()
	spans := make([]*Span, len(stack.spans))
	copy(spans, stack.spans)
	stack.mu.Unlock()

	closed := 0
	for i := len(spans) - 1; i >= 0; i-- {
		if t.forceEnd(spans[i], reason) {
			closed++
		}
	}
	return closed
}

// forceEnd closes span regardless of nesting, marking it as an error.
func (t *Tracer) forceEnd(span *Span, reason string) bool {
	stack := span.stack
	stack.mu.Lock()
	span.mu.Lock()

	if span.ended {
		span.mu.Unlock()
		stack.mu.Unlock()
		return false
	}

	stack.remove(span)
	span.attrs["span.leaked"] = true
	span.status = Status{Code: StatusError, Description: reason}
	record := span.finish(t.now())

	span.mu.Unlock()
	stack.mu.Unlock()

	t.open.Delete(span.sc.SpanID)
	t.logger.Warn("span force-closed",
		zap.String("operation", span.name),
		zap.String("reason", reason),
		zap.Duration("open_for", record.Duration()),
		zap.String("trace_id", span.sc.TraceID.String()),
		zap.String("span_id", span.sc.SpanID.String()),
	)
	t.exporter.Enqueue(record)
	return true
}

func (t *Tracer) sweepLoop() {
	defer close(t.done)

	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep(t.now())
		}
	}
}

// sweep force-closes spans open longer than the leak timeout.
func (t *Tracer) sweep(now time.Time) int {
	var leaked []*Span
	t.open.Range(func(_, v any) bool {
		span := v.(*Span)
		if now.Sub(span.start) > t.leakTimeout {
			leaked = append(leaked, span)
		}
		return true
	})

	closed := 0
	for _, span := range leaked {
		if t.forceEnd(span, "span leak: open past idle timeout") {
			closed++
		}
	}
	return closed
}

// OpenSpans returns how many spans are currently open across all requests
func (t *Tracer) OpenSpans() int {
	n := 0
	t.open.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Shutdown stops the leak sweep, force-closes every open span and shuts
// the exporter down within ctx's deadline.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	<-t.done

	var open []*Span
	t.open.Range(func(_, v any) bool {
		open = append(open, v.(*Span))
		return true
	})
	for _, span := range open {
		t.forceEnd(span, "closed at shutdown")
	}

	if err := t.exporter.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown span exporter: %w", err)
	}
	return nil
}
