// Package id provides centralized ID generation for the service.
//
// This package offers:
//   - Trace IDs: 128-bit ULIDs, so traces sort by the time they started
//   - Span IDs: 64-bit random identifiers, never zero
//   - Request IDs: prefixed ULID strings (req_*) echoed in X-Request-ID
//
// Trace and span identifiers use the W3C-compatible array types from
// go.opentelemetry.io/otel/trace so they render as lowercase hex.
package id

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

// RequestID identifies an API request
type RequestID string

// RequestPrefix is prepended to every request ID
const RequestPrefix = "req"

// Generator generates trace, span and request identifiers
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// TraceID mints a trace identifier. The ULID timestamp occupies the
// high 48 bits, so the result is never the invalid all-zero ID.
func (g *Generator) TraceID() trace.TraceID {
	return trace.TraceID(g.Generate())
}

// SpanID mints a non-zero 64-bit span identifier.
func (g *Generator) SpanID() trace.SpanID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	var sid trace.SpanID
	for {
		if _, err := io.ReadFull(g.entropy, sid[:]); err != nil {
			// Entropy exhausted; fall back to the clock so IDs stay unique-ish
			// rather than panicking on the request path.
			binary.BigEndian.PutUint64(sid[:], uint64(time.Now().UnixNano()))
		}
		if sid.IsValid() {
			return sid
		}
	}
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id RequestID) String() string { return string(id) }
