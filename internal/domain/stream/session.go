package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/bodysplice/internal/htmlstream"
	"github.com/GriffinCanCode/bodysplice/internal/inject"
	"github.com/GriffinCanCode/bodysplice/internal/shared/id"
)

var (
	ErrNotFound     = errors.New("stream not found")
	ErrNotStreaming = errors.New("stream is not transforming HTML")
)

// State is the lifecycle state of a stream.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// EventType names an event published by the registry.
type EventType string

const (
	EventOpen     EventType = "stream-open"
	EventBoundary EventType = "boundary"
	EventInject   EventType = "inject"
	EventClose    EventType = "stream-close"
)

// Event is sent to subscribers.
type Event struct {
	Type        EventType     `json:"type"`
	StreamID    id.StreamID   `json:"stream_id"`
	Path        string        `json:"path,omitempty"`
	Offset      int64         `json:"offset"`
	Depth       int           `json:"depth"`
	DirectChild bool          `json:"direct_child"`
	FragmentID  id.FragmentID `json:"fragment_id,omitempty"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Info is a point-in-time copy of a session.
type Info struct {
	ID         id.StreamID `json:"id"`
	Path       string      `json:"path"`
	State      State       `json:"state"`
	HTML       bool        `json:"html"`
	StartedAt  time.Time   `json:"started_at"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
	BytesIn    int64       `json:"bytes_in"`
	BytesOut   int64       `json:"bytes_out"`
	Boundaries int         `json:"boundaries"`
	Injected   int         `json:"injected"`
	Pending    int         `json:"pending"`
	Ready      bool        `json:"ready"`
	Error      string      `json:"error,omitempty"`
}

// Session is one proxied response.
type Session struct {
	ID        id.StreamID
	Path      string
	StartedAt time.Time

	manager *Manager

	mu         sync.Mutex
	injector   *inject.Injector // nil for passthrough responses
	state      State
	closedAt   time.Time
	bytesIn    int64
	bytesOut   int64
	boundaries int
	err        string
}

// Attach makes the session accept fragments through inj.
func (s *Session) Attach(inj *inject.Injector) {
	s.mu.Lock()
	s.injector = inj
	s.mu.Unlock()
}

// Enqueue queues a fragment on the live stream.
func (s *Session) Enqueue(f inject.Fragment) error {
	s.mu.Lock()
	inj, state := s.injector, s.state
	s.mu.Unlock()

	if state == StateClosed {
		return inject.ErrClosed
	}
	if inj == nil {
		return ErrNotStreaming
	}
	return inj.Enqueue(f)
}

// Tap returns a sink that records boundaries on the session before passing
// them on to next.
func (s *Session) Tap(next htmlstream.Sink) htmlstream.Sink {
	return &tap{session: s, next: next}
}

// RecordInjection publishes an inject event. It fits inject.WithOnInject.
func (s *Session) RecordInjection(p inject.Placement) {
	s.Publish(Event{
		Type:        EventInject,
		Offset:      p.Offset,
		Depth:       p.Depth,
		DirectChild: true,
		FragmentID:  p.Fragment.ID,
	})
}

// Publish sends e to all subscribers with the session's ID filled in.
func (s *Session) Publish(e Event) {
	e.StreamID = s.ID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.manager.publish(e)
}

// Finish records final totals. The manager's Close publishes the close event.
func (s *Session) Finish(stats htmlstream.TransformStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bytesIn = stats.BytesIn
	s.bytesOut = stats.BytesOut
	if err != nil && s.err == "" {
		s.err = err.Error()
	}
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:         s.ID,
		Path:       s.Path,
		State:      s.state,
		HTML:       s.injector != nil,
		StartedAt:  s.StartedAt,
		BytesIn:    s.bytesIn,
		BytesOut:   s.bytesOut,
		Boundaries: s.boundaries,
		Error:      s.err,
	}
	if s.state == StateClosed {
		closedAt := s.closedAt
		info.ClosedAt = &closedAt
	}
	if s.injector != nil {
		info.Injected = s.injector.Injected()
		info.Pending = s.injector.Pending()
		info.Ready = s.injector.IsReady()
		if info.BytesOut == 0 {
			info.BytesOut = s.injector.Written()
		}
	}
	return info
}

func (s *Session) markClosed(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	s.closedAt = now
	return true
}

type tap struct {
	session *Session
	next    htmlstream.Sink
}

func (t *tap) Chunk(p []byte) error {
	return t.next.Chunk(p)
}

func (t *tap) Boundary(b htmlstream.Boundary) error {
	t.session.mu.Lock()
	t.session.boundaries++
	t.session.mu.Unlock()

	t.session.Publish(Event{
		Type:        EventBoundary,
		Offset:      b.Offset,
		Depth:       b.Depth,
		DirectChild: b.DirectChild,
	})
	return t.next.Boundary(b)
}
