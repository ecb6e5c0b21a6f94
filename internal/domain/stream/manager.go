package stream

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bodysplice/internal/shared/id"
)

// DefaultSubscriberBuffer is the event backlog a subscriber may fall behind by
// before events are dropped for it.
const DefaultSubscriberBuffer = 256

// Stats summarizes the registry.
type Stats struct {
	Active      int    `json:"active"`
	Opened      uint64 `json:"opened"`
	Subscribers int    `json:"subscribers"`
	Dropped     uint64 `json:"dropped_events"`
}

type subscriber struct {
	events chan Event
}

// Manager tracks live streams and fans their events out to subscribers.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[id.StreamID]*Session // Protected by mu
	subscribers map[string]*subscriber   // Protected by mu

	logger  *zap.Logger
	buffer  int
	opened  atomic.Uint64
	dropped atomic.Uint64
}

// NewManager creates an empty registry.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:    make(map[id.StreamID]*Session),
		subscribers: make(map[string]*subscriber),
		logger:      logger,
		buffer:      DefaultSubscriberBuffer,
	}
}

// WithSubscriberBuffer sets the per-subscriber backlog.
func (m *Manager) WithSubscriberBuffer(n int) *Manager {
	if n > 0 {
		m.buffer = n
	}
	return m
}

// Open registers a new stream for path and announces it.
func (m *Manager) Open(path string) *Session {
	s := &Session{
		ID:        id.NewStreamID(),
		Path:      path,
		StartedAt: time.Now(),
		manager:   m,
		state:     StateOpen,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.opened.Add(1)

	s.Publish(Event{Type: EventOpen, Path: path, Depth: -1})
	return s
}

// Get retrieves a live stream by ID
func (m *Manager) Get(streamID id.StreamID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[streamID]
	return s, ok
}

// List returns snapshots of live streams, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Close ends a stream, announces it and removes it from the registry.
// Fragments still queued are dropped and logged. It returns false for an
// unknown stream.
func (m *Manager) Close(streamID id.StreamID) bool {
	m.mu.Lock()
	s, ok := m.sessions[streamID]
	delete(m.sessions, streamID)
	m.mu.Unlock()

	if !ok || !s.markClosed(time.Now()) {
		return false
	}

	s.mu.Lock()
	inj, errMsg := s.injector, s.err
	s.mu.Unlock()

	if inj != nil {
		if left := inj.Close(); len(left) > 0 {
			m.logger.Warn("stream closed with fragments still queued",
				zap.String("stream_id", streamID.String()),
				zap.Int("fragments", len(left)))
		}
	}

	s.Publish(Event{Type: EventClose, Path: s.Path, Depth: -1, Error: errMsg})
	return true
}

// Subscribe returns a subscriber ID and a channel of events from all
// streams. cancel must be called to release the subscription; it closes the
// channel.
func (m *Manager) Subscribe() (string, <-chan Event, func()) {
	subID := uuid.New().String()
	sub := &subscriber{events: make(chan Event, m.buffer)}

	m.mu.Lock()
	m.subscribers[subID] = sub
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, subID)
			close(sub.events)
			m.mu.Unlock()
		})
	}
	return subID, sub.events, cancel
}

// Stats returns registry totals.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Active:      len(m.sessions),
		Opened:      m.opened.Load(),
		Subscribers: len(m.subscribers),
		Dropped:     m.dropped.Load(),
	}
}

// publish never blocks the stream: a subscriber with a full backlog loses
// the event.
func (m *Manager) publish(e Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for subID, sub := range m.subscribers {
		select {
		case sub.events <- e:
		default:
			if m.dropped.Add(1)%100 == 1 {
				m.logger.Debug("subscriber behind, dropping events",
					zap.String("subscriber_id", subID),
					zap.String("event", string(e.Type)))
			}
		}
	}
}
