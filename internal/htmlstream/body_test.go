package htmlstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	event       string
	directChild bool
	depth       int
}

// trace records the detector state after every event it sees.
func trace(t *testing.T, html string) []step {
	t.Helper()
	var steps []step
	var d *BodyDetector
	d = NewBodyDetector(HandlerFuncs{
		Open: func(name string) Action {
			steps = append(steps, step{"+" + name, d.DirectChild(), d.Depth()})
			return Continue
		},
		Close: func(name string) Action {
			steps = append(steps, step{"-" + name, d.DirectChild(), d.Depth()})
			return Continue
		},
	})
	feed(t, NewTokenizer(), d, []byte(html))
	return steps
}

func TestBodyDetectorDirectChildren(t *testing.T) {
	steps := trace(t, "<html><body><div></div><script></script></body></html>")

	assert.Equal(t, []step{
		{"+html", false, -1},
		{"+body", true, 0},
		{"+div", false, 1},
		{"-div", true, 0},
		{"+script", false, 1},
		{"-script", true, 0},
		{"-body", false, -1},
		{"-html", false, -1},
	}, steps)
}

func TestBodyDetectorNesting(t *testing.T) {
	steps := trace(t, "<body><div><p><br></p></div><img></body>")

	assert.Equal(t, []step{
		{"+body", true, 0},
		{"+div", false, 1},
		{"+p", false, 2},
		{"+br", false, 3},
		{"-br", false, 2},
		{"-p", false, 1},
		{"-div", true, 0},
		{"+img", false, 1},
		{"-img", true, 0},
		{"-body", false, -1},
	}, steps)
}

func TestBodyDetectorStrayEndTag(t *testing.T) {
	steps := trace(t, "<body></span><div></div></body>")

	assert.Equal(t, []step{
		{"+body", true, 0},
		{"-span", false, -1},
		{"+div", false, -1},
		{"-div", false, -1},
		{"-body", false, -1},
	}, steps)

	d := NewBodyDetector(nil)
	assert.Equal(t, Pause, d.OpenTag("body"))
	assert.Equal(t, Continue, d.CloseTag("p"))
	assert.False(t, d.InBody())
	assert.Equal(t, Continue, d.OpenTag("div"))
	assert.Equal(t, -1, d.Depth())
}

func TestBodyDetectorIgnoresNestedBody(t *testing.T) {
	d := NewBodyDetector(nil)

	assert.Equal(t, Pause, d.OpenTag("body"))
	assert.Equal(t, Continue, d.OpenTag("body"))
	assert.Equal(t, 1, d.Depth())
	assert.Equal(t, Pause, d.CloseTag("body2"))
	assert.True(t, d.InBody())
}

func TestBodyDetectorOutsideBody(t *testing.T) {
	d := NewBodyDetector(nil)

	assert.Equal(t, Continue, d.OpenTag("head"))
	assert.Equal(t, Continue, d.CloseTag("head"))
	assert.Equal(t, -1, d.Depth())
	assert.False(t, d.InBody())
}

func TestBodyDetectorObserverPause(t *testing.T) {
	d := NewBodyDetector(HandlerFuncs{
		Open: func(name string) Action {
			if name == "head" {
				return Pause
			}
			return Continue
		},
	})

	tok := NewTokenizer()
	html := []byte("<html><head></head><body><div></div></body></html>")

	var stops []string
	for len(html) > 0 {
		n, act, err := tok.Scan(html, d)
		require.NoError(t, err)
		if act == Pause {
			stops = append(stops, string(html[:n]))
		}
		html = html[n:]
	}

	assert.Equal(t, []string{"<html><head>", "</head><body>", "<div></div>"}, stops)
}
