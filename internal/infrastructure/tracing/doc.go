/*
Package tracing provides lightweight request tracing.

# Overview

Every HTTP request gets a span. Trace ids arrive in, or are generated for,
the X-Trace-ID header and are forwarded to the upstream origin, so a slow
proxied page can be followed from the client through the origin fetch to
the last injected fragment. Finished spans are logged with zap from a
buffered collector.

# Usage

	tracer := tracing.New("bodysplice", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "upstream.fetch")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	tracing.InjectTraceContext(ctx, req.Header)

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation

Spans are dropped rather than block a request when the buffer (1000 spans)
is full.
*/
package tracing
