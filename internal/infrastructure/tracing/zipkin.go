package tracing

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/openzipkin/zipkin-go/model"
)

// ZipkinConfig configures the Zipkin collector sink
type ZipkinConfig struct {
	// Endpoint is the collector's v2 spans URL
	Endpoint string
	// Environment is added to every span as the "environment" tag
	Environment string
	// Timeout bounds each HTTP request
	Timeout time.Duration
	// MaxTagValueLength truncates tag values; zero disables truncation
	MaxTagValueLength int
	// Gzip compresses request bodies
	Gzip bool
}

// DefaultZipkinConfig returns the defaults of a local Zipkin collector.
func DefaultZipkinConfig() ZipkinConfig {
	return ZipkinConfig{
		Endpoint:          "http://localhost:9411/api/v2/spans",
		Timeout:           5 * time.Second,
		MaxTagValueLength: 256,
	}
}

// ZipkinSink posts span batches to a Zipkin v2 JSON endpoint.
type ZipkinSink struct {
	client *resty.Client
	cfg    ZipkinConfig
}

// NewZipkinSink creates a sink for cfg.Endpoint
func NewZipkinSink(cfg ZipkinConfig) *ZipkinSink {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &ZipkinSink{
		client: client,
		cfg:    cfg,
	}
}

// Send implements Sink
func (z *ZipkinSink) Send(ctx context.Context, batch []SpanRecord) error {
	if len(batch) == 0 {
		return nil
	}

	spans := make([]model.SpanModel, 0, len(batch))
	for _, record := range batch {
		spans = append(spans, z.toModel(record))
	}

	body, err := sonic.ConfigStd.Marshal(spans)
	if err != nil {
		return fmt.Errorf("encode zipkin spans: %w", err)
	}

	req := z.client.R().SetContext(ctx)
	if z.cfg.Gzip {
		if body, err = gzipBody(body); err != nil {
			return fmt.Errorf("compress zipkin spans: %w", err)
		}
		req.SetHeader("Content-Encoding", "gzip")
	}

	resp, err := req.SetBody(body).Post(z.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportTransmission, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: collector responded %s", ErrExportTransmission, resp.Status())
	}
	return nil
}

// toModel converts a record into the Zipkin v2 span model.
func (z *ZipkinSink) toModel(record SpanRecord) model.SpanModel {
	tid := record.Context.TraceID
	sc := model.SpanContext{
		TraceID: model.TraceID{
			High: binary.BigEndian.Uint64(tid[:8]),
			Low:  binary.BigEndian.Uint64(tid[8:]),
		},
		ID: model.ID(binary.BigEndian.Uint64(record.Context.SpanID[:])),
	}
	if !record.Context.IsRoot() {
		parent := model.ID(binary.BigEndian.Uint64(record.Context.ParentSpanID[:]))
		sc.ParentID = &parent
	}

	tags := make(map[string]string, len(record.Attributes)+3)
	for k, v := range record.Attributes {
		tags[k] = z.truncate(fmt.Sprint(v))
	}
	if z.cfg.Environment != "" {
		tags["environment"] = z.cfg.Environment
	}
	if record.Status.Code != StatusUnset {
		tags["otel.status_code"] = strings.ToUpper(record.Status.Code.String())
	}
	if record.Status.Code == StatusError {
		desc := record.Status.Description
		if desc == "" {
			desc = "true"
		}
		tags["error"] = z.truncate(desc)
	}

	return model.SpanModel{
		SpanContext:   sc,
		Name:          record.Name,
		Kind:          zipkinKind(record.Kind),
		Timestamp:     record.StartTime,
		Duration:      record.Duration(),
		LocalEndpoint: &model.Endpoint{ServiceName: record.Service},
		Tags:          tags,
	}
}

func (z *ZipkinSink) truncate(v string) string {
	if z.cfg.MaxTagValueLength > 0 && len(v) > z.cfg.MaxTagValueLength {
		return v[:z.cfg.MaxTagValueLength]
	}
	return v
}

func zipkinKind(k Kind) model.Kind {
	switch k {
	case KindServer:
		return model.Server
	case KindClient:
		return model.Client
	default:
		return model.Undetermined
	}
}

func gzipBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
