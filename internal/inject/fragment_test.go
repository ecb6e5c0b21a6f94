package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bodysplice/internal/shared/id"
)

func TestSanitizerCleansAPIMarkup(t *testing.T) {
	s := NewSanitizer(true)

	tests := []struct {
		name   string
		markup string
		source Source
		want   string
	}{
		{
			name:   "event handler stripped",
			markup: `<div onclick="steal()">hi</div>`,
			source: SourceAPI,
			want:   `<div>hi</div>`,
		},
		{
			name:   "script dropped",
			markup: `<script>alert(1)</script><p>x</p>`,
			source: SourceAPI,
			want:   `<p>x</p>`,
		},
		{
			name:   "rules are trusted",
			markup: `<div onclick="track()">hi</div>`,
			source: SourceRule,
			want:   `<div onclick="track()">hi</div>`,
		},
		{
			name:   "whitespace trimmed",
			markup: "  <p>x</p>\n",
			source: SourceAPI,
			want:   `<p>x</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := s.Fragment([]byte(tt.markup), tt.source, PositionReady)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(f.Markup))
			assert.Equal(t, tt.source, f.Source)
			assert.True(t, id.IsValid(string(f.ID)))
		})
	}
}

func TestSanitizerDisabled(t *testing.T) {
	f, err := NewSanitizer(false).Fragment([]byte(`<div onclick="x()">hi</div>`), SourceAPI, "")
	require.NoError(t, err)
	assert.Equal(t, `<div onclick="x()">hi</div>`, string(f.Markup))
	assert.Equal(t, PositionReady, f.Position)
}

func TestSanitizerRejects(t *testing.T) {
	s := NewSanitizer(false)

	tests := []struct {
		name   string
		markup string
		pos    Position
		target error
	}{
		{name: "open div", markup: "<div>", target: ErrUnbalanced},
		{name: "stray close", markup: "</p>", target: ErrUnbalanced},
		{name: "open script", markup: "<script>x", target: ErrUnbalanced},
		{name: "unterminated attribute", markup: `<a href="x`, target: ErrUnbalanced},
		{name: "open comment", markup: "<!-- x", target: ErrUnbalanced},
		{name: "empty", markup: "   ", target: ErrEmptyFragment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Fragment([]byte(tt.markup), SourceAPI, tt.pos)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	_, err := s.Fragment([]byte("<p></p>"), SourceAPI, "middle")
	assert.Error(t, err)
}

func TestSanitizedToNothing(t *testing.T) {
	_, err := NewSanitizer(true).Fragment([]byte(`<script>alert(1)</script>`), SourceAPI, PositionReady)
	assert.ErrorIs(t, err, ErrEmptyFragment)
}

func TestFragmentCopiesMarkup(t *testing.T) {
	buf := []byte("<p>x</p>")
	f, err := newFragment(buf, SourceRule, PositionStart)
	require.NoError(t, err)

	buf[1] = 'b'
	assert.Equal(t, "<p>x</p>", string(f.Markup))
}
