package tracing

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/openzipkin/zipkin-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// collector is a fake Zipkin endpoint that decodes posted spans.
type collector struct {
	mu       sync.Mutex
	spans    []model.SpanModel
	encoding string
	status   int
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.encoding = r.Header.Get("Content-Encoding")
	var body io.Reader = r.Body
	if c.encoding == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer zr.Close()
		body = zr
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var spans []model.SpanModel
	if err := sonic.ConfigStd.Unmarshal(raw, &spans); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.spans = append(c.spans, spans...)

	if c.status != 0 {
		w.WriteHeader(c.status)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (c *collector) Encoding() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoding
}

func (c *collector) Spans() []model.SpanModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.SpanModel(nil), c.spans...)
}

func newCollector(t *testing.T, status int) (*collector, ZipkinConfig) {
	t.Helper()
	c := &collector{status: status}
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)

	cfg := DefaultZipkinConfig()
	cfg.Endpoint = srv.URL + "/api/v2/spans"
	cfg.Environment = "test"
	return c, cfg
}

func tracedRecord(name string, parent trace.SpanID) SpanRecord {
	r := testRecord(name)
	r.Context = SpanContext{
		TraceID:      trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:       trace.SpanID{0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8},
		ParentSpanID: parent,
	}
	return r
}

func TestZipkinSinkPostsSpans(t *testing.T) {
	c, cfg := newCollector(t, 0)
	sink := NewZipkinSink(cfg)

	root := tracedRecord("GET /hello", trace.SpanID{})
	root.Kind = KindServer
	root.Attributes = map[string]any{"http.status_code": 200}

	child := tracedRecord("random_color", trace.SpanID{0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8})
	child.Context.SpanID = trace.SpanID{0xb1, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6, 0xb7, 0xb8}

	require.NoError(t, sink.Send(context.Background(), []SpanRecord{child, root}))

	spans := c.Spans()
	require.Len(t, spans, 2)

	gotChild, gotRoot := spans[0], spans[1]
	assert.Equal(t, "random_color", gotChild.Name)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", gotChild.TraceID.String())
	assert.Equal(t, "b1b2b3b4b5b6b7b8", gotChild.ID.String())
	require.NotNil(t, gotChild.ParentID)
	assert.Equal(t, "a1a2a3a4a5a6a7a8", gotChild.ParentID.String())
	assert.Equal(t, time.Millisecond, gotChild.Duration)

	assert.Nil(t, gotRoot.ParentID)
	assert.Equal(t, model.Server, gotRoot.Kind)
	require.NotNil(t, gotRoot.LocalEndpoint)
	assert.Equal(t, "test-service", gotRoot.LocalEndpoint.ServiceName)
	assert.Equal(t, "200", gotRoot.Tags["http.status_code"])
	assert.Equal(t, "test", gotRoot.Tags["environment"])
	assert.Equal(t, "OK", gotRoot.Tags["otel.status_code"])
	assert.NotContains(t, gotRoot.Tags, "error")
}

func TestZipkinSinkErrorTags(t *testing.T) {
	c, cfg := newCollector(t, 0)
	cfg.MaxTagValueLength = 8
	sink := NewZipkinSink(cfg)

	r := tracedRecord("failing", trace.SpanID{})
	r.Status = Status{Code: StatusError, Description: "connection refused"}
	r.Attributes = map[string]any{"note": strings.Repeat("x", 20)}

	require.NoError(t, sink.Send(context.Background(), []SpanRecord{r}))

	spans := c.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "ERROR", spans[0].Tags["otel.status_code"])
	assert.Equal(t, "connecti", spans[0].Tags["error"])
	assert.Equal(t, "xxxxxxxx", spans[0].Tags["note"])
}

func TestZipkinSinkGzip(t *testing.T) {
	c, cfg := newCollector(t, 0)
	cfg.Gzip = true
	sink := NewZipkinSink(cfg)

	require.NoError(t, sink.Send(context.Background(), []SpanRecord{tracedRecord("zipped", trace.SpanID{})}))

	assert.Equal(t, "gzip", c.Encoding())
	require.Len(t, c.Spans(), 1)
	assert.Equal(t, "zipped", c.Spans()[0].Name)
}

func TestZipkinSinkRejectedBatch(t *testing.T) {
	_, cfg := newCollector(t, http.StatusServiceUnavailable)
	sink := NewZipkinSink(cfg)

	err := sink.Send(context.Background(), []SpanRecord{tracedRecord("rejected", trace.SpanID{})})
	assert.ErrorIs(t, err, ErrExportTransmission)
}

func TestZipkinSinkUnreachable(t *testing.T) {
	cfg := DefaultZipkinConfig()
	cfg.Endpoint = "http://127.0.0.1:1/api/v2/spans"
	cfg.Timeout = time.Second
	sink := NewZipkinSink(cfg)

	err := sink.Send(context.Background(), []SpanRecord{tracedRecord("lost", trace.SpanID{})})
	assert.ErrorIs(t, err, ErrExportTransmission)
}

func TestZipkinSinkEmptyBatch(t *testing.T) {
	c, cfg := newCollector(t, 0)
	sink := NewZipkinSink(cfg)

	require.NoError(t, sink.Send(context.Background(), nil))
	assert.Empty(t, c.Spans())
}

func TestLogSink(t *testing.T) {
	logger, logs := newObservedLogger()
	sink := NewLogSink(logger)

	ok := tracedRecord("fine", trace.SpanID{0x01})
	failed := tracedRecord("broken", trace.SpanID{})
	failed.Status = Status{Code: StatusError, Description: "boom"}

	require.NoError(t, sink.Send(context.Background(), []SpanRecord{ok, failed}))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "span completed", entries[0].Message)
	assert.Equal(t, "fine", entries[0].ContextMap()["operation"])
	assert.Equal(t, "0100000000000000", entries[0].ContextMap()["parent_id"])
	assert.Equal(t, "span completed with error", entries[1].Message)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.NotContains(t, entries[1].ContextMap(), "parent_id")
}
