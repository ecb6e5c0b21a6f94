package stream

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/bodysplice/internal/htmlstream"
	"github.com/GriffinCanCode/bodysplice/internal/inject"
	"github.com/GriffinCanCode/bodysplice/internal/shared/id"
)

func fragment(t *testing.T, markup string) inject.Fragment {
	t.Helper()
	f, err := inject.NewSanitizer(false).Fragment([]byte(markup), inject.SourceAPI, inject.PositionStart)
	if err != nil {
		t.Fatalf("Fragment failed: %v", err)
	}
	return f
}

func next(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestOpenAndGet(t *testing.T) {
	m := NewManager(nil)

	s := m.Open("/docs/")
	if !id.IsStreamID(s.ID.String()) {
		t.Errorf("Expected stream ID, got %q", s.ID)
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Fatal("Get did not return the opened session")
	}

	info := got.Info()
	if info.State != StateOpen {
		t.Errorf("Expected state open, got %s", info.State)
	}
	if info.HTML {
		t.Error("Expected no injector before Attach")
	}
	if info.ClosedAt != nil {
		t.Error("Expected ClosedAt to be unset")
	}
}

func TestListOrder(t *testing.T) {
	m := NewManager(nil)

	first := m.Open("/a")
	time.Sleep(2 * time.Millisecond)
	second := m.Open("/b")

	infos := m.List()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 streams, got %d", len(infos))
	}
	if infos[0].ID != first.ID || infos[1].ID != second.ID {
		t.Errorf("Expected oldest first, got %s, %s", infos[0].ID, infos[1].ID)
	}
}

func TestClose(t *testing.T) {
	m := NewManager(nil)
	s := m.Open("/a")
	inj := inject.New(&bytes.Buffer{})
	s.Attach(inj)

	if err := s.Enqueue(fragment(t, "<p>x</p>")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if !m.Close(s.ID) {
		t.Fatal("Close failed")
	}
	if m.Close(s.ID) {
		t.Error("Second Close should report false")
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("Closed stream should be removed")
	}

	info := s.Info()
	if info.State != StateClosed || info.ClosedAt == nil {
		t.Errorf("Expected closed state, got %+v", info)
	}
	if info.Pending != 0 {
		t.Errorf("Expected queue drained on close, got %d pending", info.Pending)
	}
	if err := s.Enqueue(fragment(t, "<p>y</p>")); !errors.Is(err, inject.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestEnqueueWithoutInjector(t *testing.T) {
	m := NewManager(nil)
	s := m.Open("/image.png")

	if err := s.Enqueue(fragment(t, "<p>x</p>")); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("Expected ErrNotStreaming, got %v", err)
	}
}

func TestSubscribeReceivesLifecycle(t *testing.T) {
	m := NewManager(nil)
	_, events, cancel := m.Subscribe()
	defer cancel()

	s := m.Open("/page")
	var out bytes.Buffer
	inj := inject.New(&out, inject.WithOnInject(s.RecordInjection))
	s.Attach(inj)
	if err := s.Enqueue(fragment(t, `<i id="f"></i>`)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	tr := htmlstream.NewTransform(s.Tap(inj))
	if _, err := tr.Write([]byte("<html><body><p>x</p></body></html>")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	s.Finish(tr.Stats(), nil)
	m.Close(s.ID)

	want := []EventType{EventOpen, EventBoundary, EventInject, EventBoundary, EventClose}
	for i, typ := range want {
		e := next(t, events)
		if e.Type != typ {
			t.Fatalf("Event %d: expected %s, got %s", i, typ, e.Type)
		}
		if e.StreamID != s.ID {
			t.Errorf("Event %d: expected stream %s, got %s", i, s.ID, e.StreamID)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("Event %d: missing timestamp", i)
		}
	}

	if got := out.String(); got != `<html><body><i id="f"></i><p>x</p></body></html>` {
		t.Errorf("Unexpected output %q", got)
	}

	info := s.Info()
	if info.Boundaries != 2 || info.Injected != 1 {
		t.Errorf("Expected 2 boundaries and 1 injection, got %+v", info)
	}
	if info.BytesIn != int64(len("<html><body><p>x</p></body></html>")) {
		t.Errorf("Unexpected bytes in: %d", info.BytesIn)
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	m := NewManager(nil).WithSubscriberBuffer(2)
	_, events, cancel := m.Subscribe()

	for i := 0; i < 5; i++ {
		m.Open("/p")
	}

	if got := len(events); got != 2 {
		t.Errorf("Expected backlog of 2, got %d", got)
	}
	if stats := m.Stats(); stats.Dropped != 3 {
		t.Errorf("Expected 3 dropped events, got %d", stats.Dropped)
	}

	cancel()
	cancel()
	for range events {
	}
	if stats := m.Stats(); stats.Subscribers != 0 {
		t.Errorf("Expected no subscribers after cancel, got %d", stats.Subscribers)
	}
}

func TestStats(t *testing.T) {
	m := NewManager(nil)
	a := m.Open("/a")
	m.Open("/b")
	m.Close(a.ID)

	stats := m.Stats()
	if stats.Active != 1 {
		t.Errorf("Expected 1 active stream, got %d", stats.Active)
	}
	if stats.Opened != 2 {
		t.Errorf("Expected 2 opened streams, got %d", stats.Opened)
	}
}

func TestFinishKeepsFirstError(t *testing.T) {
	m := NewManager(nil)
	s := m.Open("/a")

	s.Finish(htmlstream.TransformStats{BytesIn: 10, BytesOut: 8}, errors.New("client went away"))
	s.Finish(htmlstream.TransformStats{BytesIn: 10, BytesOut: 8}, errors.New("later"))

	info := s.Info()
	if info.Error != "client went away" {
		t.Errorf("Expected first error kept, got %q", info.Error)
	}
	if info.BytesOut != 8 {
		t.Errorf("Expected 8 bytes out, got %d", info.BytesOut)
	}
}
