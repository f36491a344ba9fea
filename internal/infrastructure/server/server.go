package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	handlers "github.com/GriffinCanCode/flasky/internal/api/http"
	"github.com/GriffinCanCode/flasky/internal/api/middleware"
	"github.com/GriffinCanCode/flasky/internal/infrastructure/config"
	"github.com/GriffinCanCode/flasky/internal/infrastructure/logging"
	"github.com/GriffinCanCode/flasky/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/flasky/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/flasky/internal/infrastructure/tracing"
)

// Server wraps the HTTP server and its telemetry pipeline
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Registry
	tracer     *tracing.Tracer
	exporter   *tracing.BatchExporter
	breaker    *resilience.Breaker
}

// Option customizes server construction
type Option func(*options)

type options struct {
	logger *logging.Logger
}

// WithLogger replaces the logger built from configuration
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Initialize logger
	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			Service:     cfg.Service.Name,
			Environment: cfg.Service.Environment,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	logger.Info("Initializing server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("version", cfg.Service.Version),
		zap.Bool("collector", cfg.Collector.Enabled),
	)

	metrics := monitoring.NewRegistry(cfg.Service.Name, cfg.Service.Version)

	breaker := resilience.New("span-collector", resilience.Settings{
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	exporter := tracing.NewBatchExporter(newSink(cfg, logger), logger.Named("exporter").Logger, tracing.ExporterSettings{
		BatchSize:     cfg.Spans.BatchSize,
		FlushInterval: cfg.Spans.FlushInterval,
		ExportTimeout: cfg.Collector.Timeout,
		RetryBackoff:  cfg.Spans.RetryBackoff,
		Breaker:       breaker,
	})
	if err := metrics.TrackSpanExport(exporter); err != nil {
		_ = exporter.Shutdown(context.Background())
		return nil, err
	}

	tracer := tracing.New(cfg.Service.Name, logger.Named("tracer").Logger, exporter,
		tracing.WithLeakDetection(cfg.Spans.LeakTimeout, cfg.Spans.SweepInterval),
	)
	logger.Info("Distributed tracing initialized")

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Bool("global", cfg.RateLimit.Global),
		)
		limits := middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}
		if cfg.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(limits))
		} else {
			router.Use(middleware.RateLimit(limits))
		}
	}

	h := handlers.NewHandlers(tracer, logger, handlers.ServiceInfo{
		Name:        cfg.Service.Name,
		Environment: cfg.Service.Environment,
		Version:     cfg.Service.Version,
	}, exporter)

	// Register routes
	router.GET("/", h.Root)
	router.GET("/hello", h.Hello)
	router.GET("/bye", h.Bye)
	router.GET("/health", h.Health)
	router.GET("/metrics", metrics.Handler())

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		tracer:   tracer,
		exporter: exporter,
		breaker:  breaker,
	}, nil
}

// newSink picks the Zipkin collector, or span logging when it is disabled.
func newSink(cfg *config.Config, logger *logging.Logger) tracing.Sink {
	if !cfg.Collector.Enabled {
		logger.Info("Span collector disabled, logging spans instead")
		return tracing.NewLogSink(logger.Named("spans").Logger)
	}
	logger.Info("Exporting spans to Zipkin", zap.String("endpoint", cfg.Collector.Endpoint))
	return tracing.NewZipkinSink(tracing.ZipkinConfig{
		Endpoint:          cfg.Collector.Endpoint,
		Environment:       cfg.Service.Environment,
		Timeout:           cfg.Collector.Timeout,
		MaxTagValueLength: cfg.Collector.MaxTagLength,
		Gzip:              cfg.Collector.Gzip,
	})
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops. A server stopped by
// Shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, then closes open spans and flushes
// the exporter. Everything is bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to drain HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("drain http server: %w", err))
	}

	if err := s.tracer.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to flush spans", zap.Error(err))
		errs = append(errs, err)
	}
	s.logger.Info("Span exporter stopped",
		zap.Uint64("exported", s.exporter.ExportedSpans()),
		zap.Uint64("dropped", s.exporter.DroppedSpans()),
		zap.Uint64("failed_batches", s.exporter.ExportFailures()),
	)

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}

// Close shuts down within the configured shutdown timeout
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}
