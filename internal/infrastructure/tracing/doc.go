/*
Package tracing provides request-scoped tracing for the service.

# Overview

Every request gets a root span and every internal operation a child span.
The active span of a request lives in a span slot carried by the request's
context.Context: starting a span pushes onto the slot, ending it pops. The
slot is created per request by HTTPMiddleware, so concurrent requests never
see each other's spans.

Finished spans are handed to a BatchExporter, which buffers them and ships
them to a Sink (Zipkin over HTTP, or the log) from one background worker.
The request path never blocks on export: a full buffer drops its oldest
span and a failed transmission is retried once, then discarded and counted.

# Usage

	exporter := tracing.NewBatchExporter(sink, logger, tracing.DefaultExporterSettings())
	tracer := tracing.New("flasky", logger, exporter)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	ctx, span := tracer.StartSpan(ctx, "random_color")
	defer span.End()

	span.SetAttribute("color", "blue")

	// On shutdown
	tracer.Shutdown(ctx)

# Errors

Ending a span twice returns ErrInvalidSpanState. Ending a span while one of
its children is still open returns ErrOutOfOrderSpanEnd. Neither changes
state. Spans left open past the leak timeout are force-closed with status
Error by a background sweep.
*/
package tracing
