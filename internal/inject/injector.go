package inject

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/bodysplice/internal/htmlstream"
)

var (
	ErrQueueFull = errors.New("inject: queue full")
	ErrClosed    = errors.New("inject: stream closed")
)

// DefaultMaxQueue bounds the fragments waiting on one stream.
const DefaultMaxQueue = 64

// Placement is reported to the OnInject hook for every written fragment.
type Placement struct {
	Fragment Fragment
	// Offset is the number of page bytes written before the fragment.
	Offset int64
	Depth  int
}

// Option configures an Injector.
type Option func(*Injector)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Injector) {
		i.logger = logger
	}
}

// WithMaxQueue bounds the queue. Values below one use DefaultMaxQueue.
func WithMaxQueue(n int) Option {
	return func(i *Injector) {
		if n > 0 {
			i.maxQueue = n
		}
	}
}

// WithOnInject registers a hook called after each fragment is written. It
// runs on the streaming goroutine and must not block.
func WithOnInject(fn func(Placement)) Option {
	return func(i *Injector) {
		i.onInject = fn
	}
}

// Injector is an htmlstream.Sink that copies the page to w and writes queued
// fragments at direct-child-of-body boundaries. Enqueue, Ready, Pending and
// Injected may be called from any goroutine; Chunk and Boundary are called by
// the transform that owns the stream.
type Injector struct {
	w        io.Writer
	flusher  http.Flusher
	logger   *zap.Logger
	maxQueue int
	onInject func(Placement)

	mu       sync.Mutex
	queue    []Fragment
	ready    bool
	closed   bool
	injected int

	written atomic.Int64
}

// New creates an injector writing to w. If w is an http.Flusher it is
// flushed after every chunk so the browser sees each piece as it arrives.
func New(w io.Writer, opts ...Option) *Injector {
	i := &Injector{
		w:        w,
		logger:   zap.NewNop(),
		maxQueue: DefaultMaxQueue,
	}
	if f, ok := w.(http.Flusher); ok {
		i.flusher = f
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Enqueue adds f to the queue. Fragments are written in the order they were
// queued.
func (i *Injector) Enqueue(f Fragment) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrClosed
	}
	if len(i.queue) >= i.maxQueue {
		return ErrQueueFull
	}
	i.queue = append(i.queue, f)
	return nil
}

// Ready releases fragments queued with PositionReady. They are written at the
// next direct-child boundary.
func (i *Injector) Ready() {
	i.mu.Lock()
	i.ready = true
	i.mu.Unlock()
}

// IsReady reports whether Ready has been called.
func (i *Injector) IsReady() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ready
}

// Pending returns the number of queued fragments.
func (i *Injector) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queue)
}

// Injected returns the number of fragments written so far.
func (i *Injector) Injected() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.injected
}

// Written returns the page bytes written, excluding fragments.
func (i *Injector) Written() int64 {
	return i.written.Load()
}

// Chunk implements htmlstream.Sink.
func (i *Injector) Chunk(p []byte) error {
	n, err := i.w.Write(p)
	i.written.Add(int64(n))
	if err != nil {
		return fmt.Errorf("write page chunk: %w", err)
	}
	i.flush()
	return nil
}

// Boundary implements htmlstream.Sink. Only direct children of body receive
// fragments.
func (i *Injector) Boundary(b htmlstream.Boundary) error {
	if !b.DirectChild {
		return nil
	}

	due := i.take()
	if len(due) == 0 {
		return nil
	}

	for n, f := range due {
		if _, err := i.w.Write(f.Markup); err != nil {
			i.requeue(due[n:])
			return fmt.Errorf("write fragment %s: %w", f.ID, err)
		}

		i.mu.Lock()
		i.injected++
		i.mu.Unlock()

		i.logger.Debug("fragment injected",
			zap.String("fragment_id", f.ID.String()),
			zap.String("source", string(f.Source)),
			zap.Int64("offset", b.Offset),
			zap.Int("bytes", len(f.Markup)))

		if i.onInject != nil {
			i.onInject(Placement{Fragment: f, Offset: b.Offset, Depth: b.Depth})
		}
	}
	i.flush()
	return nil
}

// Close stops accepting fragments and returns those that were never placed.
func (i *Injector) Close() []Fragment {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.closed = true
	left := i.queue
	i.queue = nil
	return left
}

// take removes the fragments that may be written now, keeping queue order.
func (i *Injector) take() []Fragment {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.queue) == 0 {
		return nil
	}

	var due []Fragment
	kept := i.queue[:0]
	for _, f := range i.queue {
		if i.ready || f.Position == PositionStart {
			due = append(due, f)
		} else {
			kept = append(kept, f)
		}
	}
	i.queue = kept
	return due
}

func (i *Injector) requeue(fs []Fragment) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.queue = append(append([]Fragment(nil), fs...), i.queue...)
}

func (i *Injector) flush() {
	if i.flusher != nil {
		i.flusher.Flush()
	}
}
