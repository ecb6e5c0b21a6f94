package id

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	id := NewGenerator().GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestDeterministicEntropy(t *testing.T) {
	gen := NewGeneratorWithEntropy(bytes.NewReader(make([]byte, 64)))

	u := gen.Generate()
	if !strings.HasSuffix(u.String(), "0000000000000000") {
		t.Errorf("zero entropy should produce a zero random part, got %s", u)
	}
}

func TestTypedIDFormat(t *testing.T) {
	ids := map[string]string{
		StreamPrefix:   NewStreamID().String(),
		FragmentPrefix: NewFragmentID().String(),
		RequestPrefix:  NewRequestID().String(),
		SpanPrefix:     NewSpanID().String(),
	}

	for prefix, id := range ids {
		got, u, err := Split(id)
		if err != nil {
			t.Fatalf("Split(%q): %v", id, err)
		}
		if got != prefix {
			t.Errorf("Expected prefix '%s', got '%s' in ID: %s", prefix, got, id)
		}
		if len(u.String()) != 26 {
			t.Errorf("ULID should be 26 characters in ID: %s", id)
		}
	}
}

func TestSplitRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "stm", "_01H0000000000000000000000", "stm_invalid", "stm-01H"} {
		if _, _, err := Split(s); !errors.Is(err, ErrMalformed) {
			t.Errorf("Split(%q) should fail with ErrMalformed, got %v", s, err)
		}
	}
}

func TestIsStreamID(t *testing.T) {
	if !IsStreamID(NewStreamID().String()) {
		t.Error("stream id should be recognized")
	}
	if IsStreamID(NewFragmentID().String()) {
		t.Error("fragment id is not a stream id")
	}
	if IsStreamID("stm_nope") {
		t.Error("invalid ULID is not a stream id")
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(NewGenerator().GenerateString()) {
		t.Error("Generated ULID should be valid")
	}

	for _, id := range []string{"", "invalid", "1234567890", "zzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		if IsValid(id) {
			t.Errorf("ID should be invalid: %s", id)
		}
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now()
	id := NewGenerator().GenerateString()
	after := time.Now()

	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Failed to extract timestamp: %v", err)
	}

	// ULID timestamps have millisecond precision.
	if ts.UnixMilli() < before.UnixMilli() || ts.UnixMilli() > after.UnixMilli() {
		t.Errorf("Timestamp %d outside [%d, %d]", ts.UnixMilli(), before.UnixMilli(), after.UnixMilli())
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const idsPerGoroutine = 100

	var wg sync.WaitGroup
	idChan := make(chan string, goroutines*idsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				idChan <- gen.GenerateString()
			}
		}()
	}

	wg.Wait()
	close(idChan)

	seen := make(map[string]bool)
	for id := range idChan {
		if seen[id] {
			t.Errorf("Duplicate ID found in concurrent generation: %s", id)
		}
		seen[id] = true
	}

	if len(seen) != goroutines*idsPerGoroutine {
		t.Errorf("Expected %d unique IDs, got %d", goroutines*idsPerGoroutine, len(seen))
	}
}

func TestLexicographicSorting(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = gen.GenerateString()
		time.Sleep(2 * time.Millisecond)
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("IDs should be lexicographically sorted: %s should be > %s", ids[i], ids[i-1])
		}
	}
}

func BenchmarkGenerateWithPrefix(b *testing.B) {
	gen := NewGenerator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.GenerateWithPrefix(StreamPrefix)
	}
}
