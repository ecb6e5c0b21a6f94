package upstream

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// sniffLen is how much of an untyped body is inspected to detect HTML.
const sniffLen = 3072

// newResponse decodes the body of an upstream response and decides whether it
// is HTML. Encodings other than gzip and zstd are left alone, and such bodies
// are never treated as HTML.
func newResponse(status int, header http.Header, raw io.ReadCloser) (*Response, error) {
	if raw == nil {
		raw = http.NoBody
	}

	resp := &Response{Status: status, Header: header, Body: raw}

	encoding := strings.ToLower(strings.TrimSpace(header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
	case "gzip", "x-gzip", "zstd":
		body, err := decodeBody(encoding, raw)
		if err != nil {
			raw.Close()
			return nil, err
		}
		resp.Body = body
		resp.Decoded = true
		header.Del("Content-Encoding")
		header.Del("Content-Length")
	default:
		return resp, nil
	}

	if status == http.StatusNoContent || status == http.StatusNotModified {
		return resp, nil
	}

	if ct := header.Get("Content-Type"); ct != "" {
		resp.HTML = isHTML(ct)
		return resp, nil
	}

	br := bufio.NewReaderSize(resp.Body, sniffLen)
	prefix, _ := br.Peek(sniffLen)
	detected := mimetype.Detect(prefix)
	resp.HTML = detected.Is("text/html")
	header.Set("Content-Type", detected.String())
	resp.Body = readCloser{Reader: br, Closer: resp.Body}

	return resp, nil
}

func decodeBody(encoding string, raw io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "zstd":
		dec, err := zstd.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		return readCloser{Reader: dec, Closer: closeFunc(func() error {
			dec.Close()
			return raw.Close()
		})}, nil
	default:
		// gzip.NewReader reads the header, so an empty body fails here.
		dec, err := gzip.NewReader(raw)
		if err == io.EOF {
			return raw, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return readCloser{Reader: dec, Closer: closeFunc(func() error {
			dec.Close()
			return raw.Close()
		})}, nil
	}
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(contentType), "text/html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

type readCloser struct {
	io.Reader
	io.Closer
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }
