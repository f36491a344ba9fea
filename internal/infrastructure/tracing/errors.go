package tracing

import "errors"

var (
	// ErrInvalidSpanState is returned when a span is ended twice.
	ErrInvalidSpanState = errors.New("span already ended")
	// ErrOutOfOrderSpanEnd is returned when a span is ended while a child is still open.
	ErrOutOfOrderSpanEnd = errors.New("span ended out of nesting order")
	// ErrExportTransmission wraps collector delivery failures.
	ErrExportTransmission = errors.New("span export transmission failed")
)
