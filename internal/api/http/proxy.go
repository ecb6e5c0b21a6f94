package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bodysplice/internal/domain/stream"
	"github.com/GriffinCanCode/bodysplice/internal/htmlstream"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/logging"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/bodysplice/internal/inject"
	"github.com/GriffinCanCode/bodysplice/internal/upstream"
)

// Response headers that are not copied from the origin.
var skipHeaders = map[string]struct{}{
	"Connection":        {},
	"Keep-Alive":        {},
	"Proxy-Connection":  {},
	"Te":                {},
	"Trailer":           {},
	"Transfer-Encoding": {},
	"Upgrade":           {},
}

// Proxy fetches the page at the wildcard path and streams it back. HTML is
// run through the transform with an injector; anything else is copied as is.
func (h *Handlers) Proxy(c *gin.Context) {
	path := c.Param("path")
	if q := c.Request.URL.RawQuery; q != "" {
		path += "?" + q
	}
	ctx := c.Request.Context()

	resp, err := h.fetcher.Fetch(ctx, path, c.Request.Header)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			status = http.StatusServiceUnavailable
		}
		h.recordStreamError("upstream")
		h.logger.Warn("upstream fetch failed", zap.String("path", path), zap.Error(err))
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	session := h.streams.Open(path)
	defer h.streams.Close(session.ID)
	logger := h.logger.With(logging.StreamFields(session.ID.String(), path)...)

	header := c.Writer.Header()
	for k, vv := range resp.Header {
		if _, skip := skipHeaders[k]; skip {
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	header.Set(StreamHeader, session.ID.String())

	if resp.HTML {
		h.transform(ctx, c, resp, session, logger)
	} else {
		h.passthrough(c, resp, session, logger)
	}
}

func (h *Handlers) passthrough(c *gin.Context, resp *upstream.Response, session *stream.Session, logger *zap.Logger) {
	start := time.Now()
	h.streamOpened("passthrough")

	c.Status(resp.Status)
	c.Writer.WriteHeaderNow()
	n, err := io.Copy(c.Writer, resp.Body)

	session.Finish(htmlstream.TransformStats{BytesIn: n, BytesOut: n}, err)
	h.streamClosed(time.Since(start), n, n)
	if err != nil {
		h.recordStreamError("copy")
		logger.Warn("passthrough copy failed", zap.Int64("bytes", n), zap.Error(err))
	}
}

func (h *Handlers) transform(ctx context.Context, c *gin.Context, resp *upstream.Response, session *stream.Session, logger *zap.Logger) {
	start := time.Now()
	h.streamOpened("html")

	// Spliced fragments change the length.
	c.Writer.Header().Del("Content-Length")
	c.Status(resp.Status)
	c.Writer.WriteHeaderNow()

	inj := inject.New(c.Writer,
		inject.WithLogger(logger),
		inject.WithMaxQueue(h.maxQueue),
		inject.WithOnInject(func(p inject.Placement) {
			session.RecordInjection(p)
			if h.metrics != nil {
				h.metrics.RecordInjection(string(p.Fragment.Source))
			}
		}),
	)
	session.Attach(inj)

	for _, f := range h.rules.Match(session.Path) {
		if err := inj.Enqueue(f); err != nil {
			h.recordRejected("queue_full")
			logger.Warn("rule fragment dropped", zap.String("fragment_id", f.ID.String()), zap.Error(err))
		}
	}

	t := htmlstream.NewTransform(session.Tap(inj),
		htmlstream.WithTokenizerOptions(htmlstream.WithMaxPending(h.cfg.MaxPending)),
		htmlstream.WithSplitting(!h.cfg.PassFirstChunk),
	)

	// The first chunk is the document shell; once it is out, fragments
	// waiting for readiness may go in.
	src := &shellReader{r: resp.Body, onShell: func() {
		t.EnableSplitting()
		inj.Ready()
	}}

	_, err := htmlstream.Pipe(ctx, src, t, h.cfg.ChunkSize)
	stats := t.Stats()
	session.Finish(stats, err)

	if h.metrics != nil {
		h.metrics.RecordBoundaries(stats.Boundaries)
	}
	for i := inj.Pending(); i > 0; i-- {
		h.recordRejected("unplaced")
	}
	h.streamClosed(time.Since(start), stats.BytesIn, stats.BytesOut)

	fields := []zap.Field{
		zap.Int64("bytes_in", stats.BytesIn),
		zap.Int64("bytes_out", stats.BytesOut),
		zap.Int("boundaries", stats.Boundaries),
		zap.Int("injected", inj.Injected()),
		zap.Duration("duration", time.Since(start)),
	}
	switch {
	case err == nil:
		logger.Info("stream completed", fields...)
	case ctx.Err() != nil:
		h.recordStreamError("client")
		logger.Info("client went away", append(fields, zap.Error(err))...)
	default:
		h.recordStreamError("transform")
		logger.Warn("stream failed", append(fields, zap.Error(err))...)
	}
}

// shellReader calls onShell on the first read after data was returned. Pipe
// only reads again once the previous chunk has gone through the transform.
type shellReader struct {
	r       io.Reader
	seen    bool
	fired   bool
	onShell func()
}

func (s *shellReader) Read(p []byte) (int, error) {
	if s.seen && !s.fired {
		s.fired = true
		s.onShell()
	}
	n, err := s.r.Read(p)
	if n > 0 {
		s.seen = true
	}
	return n, err
}

func (h *Handlers) streamOpened(kind string) {
	if h.metrics != nil {
		h.metrics.StreamOpened(kind)
	}
}

func (h *Handlers) streamClosed(d time.Duration, in, out int64) {
	if h.metrics != nil {
		h.metrics.StreamClosed(d, in, out)
	}
}

func (h *Handlers) recordStreamError(stage string) {
	if h.metrics != nil {
		h.metrics.RecordStreamError(stage)
	}
}

func (h *Handlers) recordRejected(reason string) {
	if h.metrics != nil {
		h.metrics.RecordInjectRejected(reason)
	}
}
