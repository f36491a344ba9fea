package tracing

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

// recordingExporter captures enqueued spans in order.
type recordingExporter struct {
	mu       sync.Mutex
	records  []SpanRecord
	shutdown bool
}

func (r *recordingExporter) Enqueue(record SpanRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *recordingExporter) Shutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	return nil
}

func (r *recordingExporter) Records() []SpanRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SpanRecord, len(r.records))
	copy(out, r.records)
	return out
}

// recordingSink captures batches and can be told to fail.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]SpanRecord
	calls   int
	fail    func(call int) error
	block   chan struct{}
}

func (s *recordingSink) Send(ctx context.Context, batch []SpanRecord) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	fail := s.fail
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail != nil {
		if err := fail(call); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]SpanRecord, len(batch))
	copy(cp, batch)
	s.batches = append(s.batches, cp)
	return nil
}

func (s *recordingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *recordingSink) Spans() []SpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SpanRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func newTestTracer(t *testing.T, opts ...Option) (*Tracer, *recordingExporter, *observer.ObservedLogs) {
	t.Helper()
	logger, logs := newObservedLogger()
	exp := &recordingExporter{}
	opts = append([]Option{WithLeakDetection(0, 0)}, opts...)
	tracer := New("test-service", logger, exp, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	})
	return tracer, exp, logs
}

func testRecord(name string) SpanRecord {
	now := time.Now()
	return SpanRecord{
		Name:      name,
		Service:   "test-service",
		StartTime: now,
		EndTime:   now.Add(time.Millisecond),
		Status:    Status{Code: StatusOk},
	}
}
