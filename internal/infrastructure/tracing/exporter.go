package tracing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/flasky/internal/infrastructure/resilience"
)

// Sink transmits a batch of finished spans to a collector.
type Sink interface {
	Send(ctx context.Context, batch []SpanRecord) error
}

// ExporterSettings configures the batch exporter
type ExporterSettings struct {
	// BatchSize is the capacity of the pending batch; the oldest span is
	// dropped when a new one arrives while it is full
	BatchSize int
	// FlushInterval is the periodic flush tick
	FlushInterval time.Duration
	// ExportTimeout bounds a single transmission attempt
	ExportTimeout time.Duration
	// RetryBackoff is the delay before the single retry
	RetryBackoff time.Duration
	// Breaker guards the sink; nil disables circuit breaking
	Breaker *resilience.Breaker
}

// DefaultExporterSettings mirrors common batch span processor defaults.
func DefaultExporterSettings() ExporterSettings {
	return ExporterSettings{
		BatchSize:     512,
		FlushInterval: 5 * time.Second,
		ExportTimeout: 30 * time.Second,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// BatchExporter buffers finished spans and ships them to a Sink from a
// single background worker, so request paths never wait on the collector.
type BatchExporter struct {
	sink     Sink
	logger   *zap.Logger
	settings ExporterSettings

	mu     sync.Mutex
	batch  []SpanRecord
	closed bool

	full     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// ctx is cancelled when Shutdown gives up waiting on an in-flight flush.
	ctx    context.Context
	cancel context.CancelFunc

	dropped  atomic.Uint64
	failures atomic.Uint64
	exported atomic.Uint64
}

// NewBatchExporter creates an exporter and starts its flush worker.
func NewBatchExporter(sink Sink, logger *zap.Logger, settings ExporterSettings) *BatchExporter {
	defaults := DefaultExporterSettings()
	if settings.BatchSize <= 0 {
		settings.BatchSize = defaults.BatchSize
	}
	if settings.FlushInterval <= 0 {
		settings.FlushInterval = defaults.FlushInterval
	}
	if settings.ExportTimeout <= 0 {
		settings.ExportTimeout = defaults.ExportTimeout
	}
	if settings.RetryBackoff <= 0 {
		settings.RetryBackoff = defaults.RetryBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &BatchExporter{
		sink:     sink,
		logger:   logger,
		settings: settings,
		batch:    make([]SpanRecord, 0, settings.BatchSize),
		full:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	go e.run()

	return e
}

// Enqueue appends record to the pending batch without blocking. When the
// batch is at capacity the oldest record is dropped.
func (e *BatchExporter) Enqueue(record SpanRecord) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.dropped.Add(1)
		return
	}

	dropped := false
	if len(e.batch) >= e.settings.BatchSize {
		copy(e.batch, e.batch[1:])
		e.batch[len(e.batch)-1] = record
		dropped = true
	} else {
		e.batch = append(e.batch, record)
	}
	full := len(e.batch) >= e.settings.BatchSize
	e.mu.Unlock()

	if dropped {
		e.dropped.Add(1)
		e.logger.Debug("span batch full, dropped oldest span")
	}
	if full {
		select {
		case e.full <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of spans waiting for the next flush
func (e *BatchExporter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.batch)
}

// DroppedSpans returns how many spans were discarded before transmission
func (e *BatchExporter) DroppedSpans() uint64 {
	return e.dropped.Load()
}

// ExportFailures returns how many batches were discarded after failed transmission
func (e *BatchExporter) ExportFailures() uint64 {
	return e.failures.Load()
}

// ExportedSpans returns how many spans the sink accepted
func (e *BatchExporter) ExportedSpans() uint64 {
	return e.exported.Load()
}

func (e *BatchExporter) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.settings.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.flush(e.ctx)
		case <-e.full:
			e.flush(e.ctx)
		}
	}
}

// swap takes the pending batch and installs an empty one.
func (e *BatchExporter) swap() []SpanRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.batch) == 0 {
		return nil
	}
	batch := e.batch
	e.batch = make([]SpanRecord, 0, e.settings.BatchSize)
	return batch
}

func (e *BatchExporter) flush(ctx context.Context) error {
	batch := e.swap()
	if len(batch) == 0 {
		return nil
	}
	return e.export(ctx, batch)
}

// export sends batch with one retry. A batch that still fails is
// discarded and counted; the error is only reported to the caller.
func (e *BatchExporter) export(ctx context.Context, batch []SpanRecord) error {
	send := func() error {
		return retry.Do(
			func() error {
				attemptCtx, cancel := context.WithTimeout(ctx, e.settings.ExportTimeout)
				defer cancel()
				return e.sink.Send(attemptCtx, batch)
			},
			retry.Attempts(2),
			retry.Delay(e.settings.RetryBackoff),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				e.logger.Debug("span export attempt failed",
					zap.Uint("attempt", n+1),
					zap.Int("spans", len(batch)),
					zap.Error(err),
				)
			}),
		)
	}

	var err error
	if e.settings.Breaker != nil {
		err = e.settings.Breaker.Execute(send)
	} else {
		err = send()
	}

	if err != nil {
		e.failures.Add(1)
		e.logger.Warn("discarding span batch after failed export",
			zap.Int("spans", len(batch)),
			zap.Error(err),
		)
		return err
	}

	e.exported.Add(uint64(len(batch)))
	return nil
}

// Shutdown stops the worker and makes a final flush bounded by ctx.
// Spans that cannot be delivered before the deadline are discarded.
func (e *BatchExporter) Shutdown(ctx context.Context) error {
	var err error
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		close(e.stop)
		select {
		case <-e.done:
		case <-ctx.Done():
			e.cancel()
			e.discard()
			err = ctx.Err()
			return
		}
		defer e.cancel()

		batch := e.swap()
		if len(batch) == 0 {
			return
		}

		result := make(chan error, 1)
		go func() {
			result <- e.export(ctx, batch)
		}()

		// On timeout the abandoned export fails on the expired ctx and
		// counts the batch as an export failure.
		select {
		case err = <-result:
		case <-ctx.Done():
			e.logger.Warn("final span flush timed out, discarding spans", zap.Int("spans", len(batch)))
			err = ctx.Err()
		}
	})
	return err
}

func (e *BatchExporter) discard() {
	if batch := e.swap(); len(batch) > 0 {
		e.dropped.Add(uint64(len(batch)))
		e.logger.Warn("exporter shut down before final flush, discarding spans", zap.Int("spans", len(batch)))
	}
}
