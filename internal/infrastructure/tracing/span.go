package tracing

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// SpanContext is the immutable identity of one unit of work.
type SpanContext struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
	// ParentSpanID is the zero SpanID for root spans.
	ParentSpanID trace.SpanID
}

// IsRoot reports whether the span has no parent.
func (sc SpanContext) IsRoot() bool {
	return !sc.ParentSpanID.IsValid()
}

// StatusCode is the outcome of a span
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOk
	StatusError
)

// String returns the string representation of the status code
func (c StatusCode) String() string {
	switch c {
	case StatusOk:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Status pairs a status code with an optional description
type Status struct {
	Code        StatusCode
	Description string
}

// Kind describes the role of a span in a request
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "internal"
	}
}

// SpanRecord is the finished, immutable form of a span handed to the exporter.
type SpanRecord struct {
	Context    SpanContext
	Name       string
	Service    string
	Kind       Kind
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]any
	Status     Status
}

// Duration returns how long the span was open
func (r SpanRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Span is the mutable recorder for an open span. It is owned by the code
// path that started it; only that path should mutate it or call End.
type Span struct {
	tracer *Tracer
	stack  *spanStack
	sc     SpanContext
	name   string
	kind   Kind
	start  time.Time

	mu     sync.Mutex
	ended  bool
	attrs  map[string]any
	status Status
}

// Context returns the span's identity
func (s *Span) Context() SpanContext {
	return s.sc
}

// Name returns the operation name
func (s *Span) Name() string {
	return s.name
}

// StartTime returns when the span was started
func (s *Span) StartTime() time.Time {
	return s.start
}

// IsEnded reports whether End (or a forced close) already ran
func (s *Span) IsEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// SetAttribute records a key/value pair on the span. Ignored once ended.
func (s *Span) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attrs[key] = value
}

// SetStatus sets the span outcome. Ignored once ended.
func (s *Span) SetStatus(code StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.status = Status{Code: code, Description: description}
}

// RecordError marks the span as failed with err's message
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attrs["error.message"] = err.Error()
	s.status = Status{Code: StatusError, Description: err.Error()}
}

// End finishes the span. See Tracer.EndSpan.
func (s *Span) End() error {
	return s.tracer.EndSpan(s)
}

// finish closes the span and snapshots it. Caller holds s.mu.
func (s *Span) finish(end time.Time) SpanRecord {
	s.ended = true

	attrs := make(map[string]any, len(s.attrs))
	for k, v := range s.attrs {
		attrs[k] = v
	}

	return SpanRecord{
		Context:    s.sc,
		Name:       s.name,
		Service:    s.tracer.service,
		Kind:       s.kind,
		StartTime:  s.start,
		EndTime:    end,
		Attributes: attrs,
		Status:     s.status,
	}
}
