package monitoring

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the media type of Snapshot output.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// durationBuckets covers fast handlers up to slow collector round trips.
var durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// ExportStats exposes the span exporter's counters
type ExportStats interface {
	DroppedSpans() uint64
	ExportFailures() uint64
	ExportedSpans() uint64
}

// Registry holds the service's Prometheus metrics on a private registry
type Registry struct {
	namespace string
	reg       *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Build metadata, always 1
	AppInfo *prometheus.GaugeVec
}

// NewRegistry creates a registry whose metric names are prefixed with
// namespace. It also registers the Go runtime and process collectors.
func NewRegistry(namespace, version string) *Registry {
	ns := sanitize(namespace)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	r := &Registry{
		namespace: ns,
		reg:       reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status_class"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"route"},
		),
		AppInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "app_info",
				Help:      "Application info",
			},
			[]string{"version"},
		),
	}

	r.AppInfo.WithLabelValues(version).Set(1)

	return r
}

// ObserveRequest records one finished request. durationMs is converted
// to seconds.
func (r *Registry) ObserveRequest(route, statusClass string, durationMs float64) {
	r.RequestsTotal.WithLabelValues(route, statusClass).Inc()
	r.RequestDuration.WithLabelValues(route).Observe(durationMs / 1000)
}

// TrackSpanExport exposes the exporter counters. The values are read at
// scrape time.
func (r *Registry) TrackSpanExport(stats ExportStats) error {
	funcs := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "spans_dropped_total",
			Help:      "Spans discarded before transmission",
		}, func() float64 { return float64(stats.DroppedSpans()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "span_export_failures_total",
			Help:      "Span batches discarded after failed transmission",
		}, func() float64 { return float64(stats.ExportFailures()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      "spans_exported_total",
			Help:      "Spans accepted by the collector",
		}, func() float64 { return float64(stats.ExportedSpans()) }),
	}

	for _, c := range funcs {
		if err := r.reg.Register(c); err != nil {
			return fmt.Errorf("register span export metrics: %w", err)
		}
	}
	return nil
}

// Snapshot renders every registered metric in the text exposition format.
func (r *Registry) Snapshot() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}

// sanitize maps a service name onto the metric name alphabet.
func sanitize(namespace string) string {
	ns := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, namespace)
	if ns != "" && ns[0] >= '0' && ns[0] <= '9' {
		ns = "_" + ns
	}
	return ns
}
