package inject

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/bodysplice/internal/htmlstream"
	"github.com/GriffinCanCode/bodysplice/internal/shared/id"
)

var (
	ErrEmptyFragment = errors.New("inject: empty fragment")
	ErrUnbalanced    = htmlstream.ErrUnbalanced
)

// Source says where a fragment came from.
type Source string

const (
	// SourceRule fragments come from the operator's rules file and are trusted.
	SourceRule Source = "rule"
	// SourceAPI fragments are posted by clients and get sanitized.
	SourceAPI Source = "api"
)

// Position controls when a queued fragment may be written.
type Position string

const (
	// PositionStart fragments go out at the first direct-child boundary,
	// without waiting for Ready.
	PositionStart Position = "start"
	// PositionReady fragments wait until the injector is ready.
	PositionReady Position = "ready"
)

// Valid reports whether p is a known position.
func (p Position) Valid() bool {
	return p == PositionStart || p == PositionReady
}

// Fragment is a piece of markup to splice into a page.
type Fragment struct {
	ID       id.FragmentID `json:"id"`
	Markup   []byte        `json:"-"`
	Source   Source        `json:"source"`
	Position Position      `json:"position"`
}

// Sanitizer turns raw markup into fragments that are safe to splice. Markup
// from the API is cleaned with a bluemonday UGC policy when sanitizing is
// enabled; all markup must be balanced.
type Sanitizer struct {
	policy  *bluemonday.Policy
	enabled bool
}

// NewSanitizer creates a sanitizer. With enabled false only the balance check
// runs.
func NewSanitizer(enabled bool) *Sanitizer {
	return &Sanitizer{
		policy:  bluemonday.UGCPolicy(),
		enabled: enabled,
	}
}

// Fragment validates markup and wraps it in a Fragment with a new ID.
func (s *Sanitizer) Fragment(markup []byte, source Source, pos Position) (Fragment, error) {
	if s.enabled && source == SourceAPI {
		markup = s.policy.SanitizeBytes(markup)
	}
	return newFragment(markup, source, pos)
}

func newFragment(markup []byte, source Source, pos Position) (Fragment, error) {
	if pos == "" {
		pos = PositionReady
	}
	if !pos.Valid() {
		return Fragment{}, fmt.Errorf("inject: unknown position %q", pos)
	}

	markup = bytes.TrimSpace(markup)
	if len(markup) == 0 {
		return Fragment{}, ErrEmptyFragment
	}
	if err := htmlstream.Balanced(markup); err != nil {
		return Fragment{}, err
	}

	return Fragment{
		ID:       id.NewFragmentID(),
		Markup:   append([]byte(nil), markup...),
		Source:   source,
		Position: pos,
	}, nil
}
