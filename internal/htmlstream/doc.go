// Package htmlstream finds the positions in a streaming HTML response where
// markup can be spliced in safely: direct children of <body>.
//
// The package has three layers:
//   - Tokenizer: a byte-at-a-time tag scanner that survives arbitrary chunk
//     boundaries and reports start and end tags to a Handler
//   - BodyDetector: a Handler that turns tag events into a depth below <body>
//     and pauses the scan whenever that depth is zero
//   - Transform: an io.Writer that drives both over a stream and forwards the
//     bytes to a Sink, split only at those pauses
//
// Nothing is decoded. Attribute values, entities and text are skipped; only
// enough of the HTML tokenizing rules are kept to track void elements, raw
// text (script, style, textarea), comments and doctypes correctly on real
// world markup.
//
// Example Usage:
//
//	t := htmlstream.NewTransform(sink)
//	if _, err := htmlstream.Pipe(ctx, resp.Body, t, 0); err != nil {
//		return err
//	}
package htmlstream
