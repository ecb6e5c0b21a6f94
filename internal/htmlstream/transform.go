package htmlstream

import "errors"

// ErrTransformClosed is returned by Write after Close or Abort.
var ErrTransformClosed = errors.New("htmlstream: transform closed")

// Boundary describes a position in the output where the body detector paused.
type Boundary struct {
	// Offset is the number of bytes emitted before the boundary.
	Offset      int64
	Depth       int
	DirectChild bool
}

// Sink receives the output of a Transform. Chunks concatenate to exactly the
// bytes written to the transform. Chunk must not retain p after returning.
type Sink interface {
	Chunk(p []byte) error
	Boundary(b Boundary) error
}

// TransformStats are running totals for one stream.
type TransformStats struct {
	BytesIn    int64
	BytesOut   int64
	Chunks     int
	Boundaries int
	Remainder  int
}

// TransformOption configures a Transform.
type TransformOption func(*Transform)

// WithTokenizerOptions passes options to the underlying tokenizer.
func WithTokenizerOptions(opts ...TokenizerOption) TransformOption {
	return func(t *Transform) {
		t.tokOpts = append(t.tokOpts, opts...)
	}
}

// WithObserver receives every tag event after the body detector.
func WithObserver(h Handler) TransformOption {
	return func(t *Transform) {
		t.observer = h
	}
}

// WithSplitting sets whether output is split at boundaries from the start.
// When disabled, tags are still tracked but chunks pass through whole until
// EnableSplitting is called.
func WithSplitting(enabled bool) TransformOption {
	return func(t *Transform) {
		t.splitting = enabled
	}
}

// continuation is the unscanned part of a work buffer. Bytes before emitFrom
// have been sent to the sink; bytes before scanFrom have been scanned.
type continuation struct {
	buf      []byte
	scanFrom int
	emitFrom int
}

// Transform feeds an ordered byte stream through a Tokenizer and BodyDetector
// and forwards it to a Sink, splitting the output only where the detector
// paused. A tag cut by a chunk boundary is held back and re-scanned with the
// next chunk. A Transform serves a single stream and is not safe for
// concurrent use.
type Transform struct {
	sink      Sink
	tok       *Tokenizer
	body      *BodyDetector
	tokOpts   []TokenizerOption
	observer  Handler
	splitting bool

	remainder []byte
	queue     []continuation
	stats     TransformStats
	closed    bool
	err       error
}

// NewTransform returns a transform writing to sink. Splitting is enabled
// unless WithSplitting(false) is given.
func NewTransform(sink Sink, opts ...TransformOption) *Transform {
	t := &Transform{
		sink:      sink,
		splitting: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.tok = NewTokenizer(t.tokOpts...)
	t.body = NewBodyDetector(t.observer)
	return t
}

// Detector returns the body detector driven by this transform.
func (t *Transform) Detector() *BodyDetector { return t.body }

// Tokenizer returns the tokenizer driven by this transform.
func (t *Transform) Tokenizer() *Tokenizer { return t.tok }

// Stats returns running totals.
func (t *Transform) Stats() TransformStats {
	s := t.stats
	s.Remainder = len(t.remainder)
	return s
}

// EnableSplitting starts splitting output at boundaries. Bytes already
// consumed are not revisited.
func (t *Transform) EnableSplitting() { t.splitting = true }

// Write scans p and forwards every byte that is not part of an incomplete
// tag. It returns an error if the sink fails, the tokenizer breaks, or the
// transform was closed.
func (t *Transform) Write(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	if t.closed {
		return 0, ErrTransformClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	t.stats.BytesIn += int64(len(p))

	work := p
	if len(t.remainder) > 0 {
		work = make([]byte, 0, len(t.remainder)+len(p))
		work = append(work, t.remainder...)
		work = append(work, p...)
		t.remainder = nil
	}

	t.queue = append(t.queue, continuation{buf: work})
	if err := t.drain(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// drain runs queued continuations one at a time. A pause re-queues the rest
// of the buffer instead of recursing, so dense boundaries cost no stack.
func (t *Transform) drain() error {
	for len(t.queue) > 0 {
		if t.err != nil {
			return t.err
		}
		c := t.queue[0]
		t.queue = t.queue[1:]
		if err := t.step(c); err != nil {
			t.fail(err)
			return err
		}
	}
	t.queue = t.queue[:0]
	return nil
}

func (t *Transform) step(c continuation) error {
	n, act, err := t.tok.Scan(c.buf[c.scanFrom:], t.body)
	if err != nil {
		return err
	}
	end := c.scanFrom + n

	if act == Pause {
		if t.splitting {
			if err := t.emit(c.buf[c.emitFrom:end]); err != nil {
				return err
			}
			c.emitFrom = end
			t.stats.Boundaries++
			b := Boundary{
				Offset:      t.stats.BytesOut,
				Depth:       t.body.Depth(),
				DirectChild: t.body.DirectChild(),
			}
			if err := t.sink.Boundary(b); err != nil {
				return err
			}
		}
		c.scanFrom = end
		if end < len(c.buf) {
			t.queue = append(t.queue, c)
			return nil
		}
		return t.emit(c.buf[c.emitFrom:])
	}

	if err := t.emit(c.buf[c.emitFrom:end]); err != nil {
		return err
	}
	if end < len(c.buf) {
		// The tokenizer handed back an incomplete tag. Copy it so the
		// caller's buffer can be reused.
		t.remainder = append([]byte(nil), c.buf[end:]...)
	}
	return nil
}

func (t *Transform) emit(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	t.stats.BytesOut += int64(len(p))
	t.stats.Chunks++
	return t.sink.Chunk(p)
}

// Close flushes a held incomplete tag and closes the transform. An
// unterminated tag at end of stream is passed through unchanged.
func (t *Transform) Close() error {
	if t.err != nil {
		return t.err
	}
	if t.closed {
		return nil
	}
	t.closed = true
	rest := t.remainder
	t.remainder = nil
	if err := t.emit(rest); err != nil {
		t.fail(err)
		return err
	}
	return nil
}

// Abort stops the transform without flushing. Pending continuations and the
// held remainder are released. Later writes return cause, or
// ErrTransformClosed when cause is nil.
func (t *Transform) Abort(cause error) {
	if cause == nil {
		cause = ErrTransformClosed
	}
	t.fail(cause)
}

func (t *Transform) fail(err error) {
	if t.err == nil {
		t.err = err
	}
	t.closed = true
	t.queue = nil
	t.remainder = nil
}
