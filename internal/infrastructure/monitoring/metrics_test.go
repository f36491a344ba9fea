package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	dropped, failures, exported uint64
}

func (f *fakeStats) DroppedSpans() uint64   { return f.dropped }
func (f *fakeStats) ExportFailures() uint64 { return f.failures }
func (f *fakeStats) ExportedSpans() uint64  { return f.exported }

func TestObserveRequest(t *testing.T) {
	reg := NewRegistry("flasky", "1.0.3")

	reg.ObserveRequest("/hello", "2xx", 12)
	reg.ObserveRequest("/hello", "2xx", 30)
	reg.ObserveRequest("/hello", "5xx", 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("/hello", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("/hello", "5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.RequestDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.AppInfo.WithLabelValues("1.0.3")))
}

func TestSnapshotRendersTextFormat(t *testing.T) {
	reg := NewRegistry("flasky", "1.0.3")
	reg.ObserveRequest("/bye", "2xx", 250)

	out, err := reg.Snapshot()
	require.NoError(t, err)

	assert.Contains(t, out, `flasky_http_requests_total{route="/bye",status_class="2xx"} 1`)
	assert.Contains(t, out, `flasky_http_request_duration_seconds_sum{route="/bye"} 0.25`)
	assert.Contains(t, out, `flasky_http_request_duration_seconds_count{route="/bye"} 1`)
	assert.Contains(t, out, `flasky_app_info{version="1.0.3"} 1`)
	assert.Contains(t, out, "go_goroutines")
}

func TestSnapshotIsConsistentUnderConcurrency(t *testing.T) {
	reg := NewRegistry("flasky", "1.0.3")

	const observers = 8
	const perObserver = 500
	var wg sync.WaitGroup
	for i := 0; i < observers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perObserver; j++ {
				reg.ObserveRequest("/", "2xx", 1)
			}
		}()
	}

	stop := make(chan struct{})
	snapshots := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				snapshots <- nil
				return
			default:
				if _, err := reg.Snapshot(); err != nil {
					snapshots <- err
					return
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	require.NoError(t, <-snapshots)

	assert.Equal(t, float64(observers*perObserver), testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("/", "2xx")))
}

func TestTrackSpanExport(t *testing.T) {
	reg := NewRegistry("flasky", "1.0.3")
	stats := &fakeStats{dropped: 3, failures: 1, exported: 42}

	require.NoError(t, reg.TrackSpanExport(stats))

	out, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, out, "flasky_spans_dropped_total 3")
	assert.Contains(t, out, "flasky_span_export_failures_total 1")
	assert.Contains(t, out, "flasky_spans_exported_total 42")

	// Registering twice collides.
	assert.Error(t, reg.TrackSpanExport(stats))
}

func TestNamespaceSanitized(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flasky", "flasky"},
		{"my-service", "my_service"},
		{"svc.v2", "svc_v2"},
		{"9lives", "_9lives"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize(tt.in))
		})
	}

	reg := NewRegistry("my-service", "dev")
	reg.ObserveRequest("/", "2xx", 1)
	out, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, out, "my_service_http_requests_total")
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{42, "unknown"},
		{600, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusClass(tt.code), "code %d", tt.code)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry("flasky", "1.0.3")

	router := gin.New()
	router.Use(Middleware(reg))
	router.GET("/hello", func(c *gin.Context) { c.String(http.StatusOK, "hello blue") })
	router.GET("/metrics", reg.Handler())

	for _, path := range []string{"/hello", "/hello", "/missing"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("/hello", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues(UnmatchedRoute, "4xx")))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), `flasky_http_requests_total{route="/hello",status_class="2xx"} 2`)
}

func TestMiddlewareCountsPanickingRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry("flasky", "1.0.3")

	router := gin.New()
	router.Use(gin.Recovery(), Middleware(reg))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("/boom", "5xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("/boom", "2xx")))
}
