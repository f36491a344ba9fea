package tracing

import (
	"context"
	"sync"
)

// Context keys for the active span slot
type contextKey string

const slotKey contextKey = "span_slot"

// spanStack is the active span slot of one request. Start pushes, end pops.
// The mutex is only contended by the leak sweep; requests never share a stack.
type spanStack struct {
	mu    sync.Mutex
	spans []*Span
}

func (st *spanStack) top() *Span {
	if len(st.spans) == 0 {
		return nil
	}
	return st.spans[len(st.spans)-1]
}

func (st *spanStack) push(s *Span) {
	st.spans = append(st.spans, s)
}

func (st *spanStack) pop() {
	st.spans[len(st.spans)-1] = nil
	st.spans = st.spans[:len(st.spans)-1]
}

// remove drops s wherever it sits in the stack.
func (st *spanStack) remove(s *Span) {
	for i := len(st.spans) - 1; i >= 0; i-- {
		if st.spans[i] == s {
			copy(st.spans[i:], st.spans[i+1:])
			st.spans[len(st.spans)-1] = nil
			st.spans = st.spans[:len(st.spans)-1]
			return
		}
	}
}

// ContextWithNewSlot returns a context carrying a fresh, empty span slot.
// The HTTP middleware calls it once per request so no span state can
// carry over from anything the parent context held.
func ContextWithNewSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, slotKey, &spanStack{})
}

func slotFrom(ctx context.Context) *spanStack {
	if ctx == nil {
		return nil
	}
	st, _ := ctx.Value(slotKey).(*spanStack)
	return st
}

// CurrentSpan returns the span on top of the context's slot.
func CurrentSpan(ctx context.Context) (SpanContext, bool) {
	st := slotFrom(ctx)
	if st == nil {
		return SpanContext{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if top := st.top(); top != nil {
		return top.sc, true
	}
	return SpanContext{}, false
}

// ActiveDepth returns how many spans are open in the context's slot
func ActiveDepth(ctx context.Context) int {
	st := slotFrom(ctx)
	if st == nil {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.spans)
}

// GetTraceID returns the hex trace ID of the current span, or ""
func GetTraceID(ctx context.Context) string {
	if sc, ok := CurrentSpan(ctx); ok {
		return sc.TraceID.String()
	}
	return ""
}

// GetSpanID returns the hex ID of the current span, or ""
func GetSpanID(ctx context.Context) string {
	if sc, ok := CurrentSpan(ctx); ok {
		return sc.SpanID.String()
	}
	return ""
}
