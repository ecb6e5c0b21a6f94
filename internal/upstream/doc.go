// Package upstream fetches pages from the origin server being proxied.
//
// Requests go through resty over a go-retryablehttp transport, so connection
// errors and 5xx answers are retried with backoff before the response is
// handed back. An x/time/rate limiter caps the request rate and a
// resilience.Breaker stops calling an origin that keeps failing.
//
// Bodies are returned unread. gzip and zstd bodies are decoded on the fly
// (klauspost/compress) and untyped bodies are sniffed with mimetype, so the
// caller only has to look at Response.HTML to decide whether to run the
// stream through the HTML transform.
//
// Example Usage:
//
//	client := upstream.NewClient(cfg.Upstream, logger, metrics)
//	resp, err := client.Fetch(ctx, "/index.html?lang=en", r.Header)
//	if err != nil {
//		return err
//	}
//	defer resp.Body.Close()
package upstream
