package logging

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/flasky/internal/infrastructure/tracing"
)

type discardExporter struct{}

func (discardExporter) Enqueue(tracing.SpanRecord)        {}
func (discardExporter) Shutdown(context.Context) error { return nil }

func newTracer(t *testing.T) *tracing.Tracer {
	t.Helper()
	tracer := tracing.New("test", zap.NewNop(), discardExporter{}, tracing.WithLeakDetection(0, 0))
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer
}

func newObserved(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewWithCore(core), logs
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "development", cfg: DevelopmentConfig()},
		{name: "process fields", cfg: Config{Level: "warn", Service: "flasky", Environment: "staging"}},
		{name: "invalid level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			assert.NotNil(t, logger.ctxLogger)
		})
	}
}

func TestNewDefaultAndDevelopment(t *testing.T) {
	assert.NotNil(t, NewDefault())
	assert.NotNil(t, NewDevelopment())
}

func TestProcessFields(t *testing.T) {
	assert.Nil(t, processFields(Config{}))
	assert.Equal(t, map[string]interface{}{
		"service":     "flasky",
		"environment": "development",
	}, processFields(Config{Service: "flasky", Environment: "development"}))
}

func TestLogWithoutSpanHasNoTraceFields(t *testing.T) {
	logger, logs := newObserved(zapcore.DebugLevel)

	logger.InfoContext(context.Background(), "no span", zap.String("k", "v"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "v", fields["k"])
	assert.NotContains(t, fields, TraceIDKey)
	assert.NotContains(t, fields, SpanIDKey)
}

func TestLogInsideSpansCarriesActiveIDs(t *testing.T) {
	tracer := newTracer(t)
	logger, logs := newObserved(zapcore.DebugLevel)

	ctx, root := tracer.StartSpan(context.Background(), "hello")
	logger.InfoContext(ctx, "in root")

	childCtx, child := tracer.StartSpan(ctx, "random_color")
	logger.Log(childCtx, zapcore.WarnLevel, "in child")
	require.NoError(t, child.End())

	logger.ErrorContext(ctx, "back in root")
	require.NoError(t, root.End())

	logger.DebugContext(ctx, "after root")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	rootID := root.Context().SpanID.String()
	traceID := root.Context().TraceID.String()

	assert.Equal(t, traceID, entries[0].ContextMap()[TraceIDKey])
	assert.Equal(t, rootID, entries[0].ContextMap()[SpanIDKey])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, traceID, entries[1].ContextMap()[TraceIDKey])
	assert.Equal(t, child.Context().SpanID.String(), entries[1].ContextMap()[SpanIDKey])

	assert.Equal(t, rootID, entries[2].ContextMap()[SpanIDKey])
	assert.NotContains(t, entries[3].ContextMap(), TraceIDKey)
}

func TestLogBelowLevelIsDropped(t *testing.T) {
	logger, logs := newObserved(zapcore.WarnLevel)

	logger.DebugContext(context.Background(), "quiet")
	logger.InfoContext(context.Background(), "quiet")
	logger.WarnContext(context.Background(), "loud")

	assert.Equal(t, 1, logs.Len())
}

func TestLogDoesNotMutateCallerFields(t *testing.T) {
	tracer := newTracer(t)
	logger, _ := newObserved(zapcore.DebugLevel)

	ctx, span := tracer.StartSpan(context.Background(), "op")
	defer span.End()

	fields := make([]zap.Field, 1, 4)
	fields[0] = zap.Int("n", 1)
	logger.InfoContext(ctx, "first", fields...)

	assert.Len(t, fields, 1)
	assert.Equal(t, zap.Int("n", 1), fields[:cap(fields)][0])
	assert.Equal(t, zap.Field{}, fields[:cap(fields)][1])
}

func TestForBindsCurrentSpan(t *testing.T) {
	tracer := newTracer(t)
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewWithCore(core)

	ctx, span := tracer.StartSpan(context.Background(), "op")
	bound := logger.For(ctx)
	require.NoError(t, span.End())

	bound.Info("bound after end")

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, span.Context().SpanID.String(), entries[0].ContextMap()[SpanIDKey])
}

func TestConcurrentRequestsKeepTheirOwnIDs(t *testing.T) {
	tracer := newTracer(t)
	logger, logs := newObserved(zapcore.InfoLevel)

	const requests = 20
	var wg sync.WaitGroup
	spans := make(chan string, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := tracing.ContextWithNewSlot(context.Background())
			ctx, span := tracer.StartSpan(ctx, "request")
			logger.InfoContext(ctx, "handling", zap.String("expect", span.Context().SpanID.String()))
			spans <- span.Context().SpanID.String()
			_ = span.End()
		}()
	}
	wg.Wait()
	close(spans)

	for _, e := range logs.AllUntimed() {
		fields := e.ContextMap()
		assert.Equal(t, fields["expect"], fields[SpanIDKey])
	}
	assert.Equal(t, requests, logs.Len())
}

func TestCallerPointsAtCallSite(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	logger.InfoContext(context.Background(), "where")

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	require.True(t, entries[0].Caller.Defined)
	assert.Contains(t, entries[0].Caller.File, "logger_test.go")
}
