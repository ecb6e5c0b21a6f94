// Package id generates the identifiers used across the service.
//
// Every identifier is a ULID behind a short type prefix (stm_*, frag_*,
// req_*), so ids sort by creation time and read well in logs. Separate
// string types keep a stream id from being passed where a fragment id is
// expected.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// StreamID identifies one proxied response.
type StreamID string

// FragmentID identifies a piece of markup queued for injection.
type FragmentID string

// RequestID identifies an API request or a trace.
type RequestID string

// SpanID identifies one traced operation.
type SpanID string

const (
	StreamPrefix   = "stm"
	FragmentPrefix = "frag"
	RequestPrefix  = "req"
	SpanPrefix     = "span"
)

// ErrMalformed is returned by Split for strings that are not prefix_ULID.
var ErrMalformed = errors.New("malformed id")

// Generator produces ULIDs from a shared entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator returns a generator reading crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy returns a generator reading entropy, which lets
// tests produce deterministic ids.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate returns a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString returns a new ULID in its canonical form.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix returns prefix_ULID.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

func NewStreamID() StreamID {
	return StreamID(Default().GenerateWithPrefix(StreamPrefix))
}

func NewFragmentID() FragmentID {
	return FragmentID(Default().GenerateWithPrefix(FragmentPrefix))
}

func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

func (id StreamID) String() string   { return string(id) }
func (id FragmentID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }
func (id SpanID) String() string     { return string(id) }

// IsValid reports whether s is a bare ULID.
func IsValid(s string) bool {
	_, err := ulid.Parse(s)
	return err == nil
}

// Parse parses a bare ULID.
func Parse(s string) (ulid.ULID, error) {
	return ulid.Parse(s)
}

// Split separates a prefixed id into its prefix and ULID.
func Split(s string) (string, ulid.ULID, error) {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok || prefix == "" {
		return "", ulid.ULID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	u, err := ulid.Parse(rest)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return prefix, u, nil
}

// IsStreamID reports whether s has the stream prefix and a valid ULID.
func IsStreamID(s string) bool {
	prefix, _, err := Split(s)
	return err == nil && prefix == StreamPrefix
}

// Timestamp returns the creation time encoded in a bare ULID.
func Timestamp(s string) (time.Time, error) {
	parsed, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
