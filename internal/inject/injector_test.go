package inject

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bodysplice/internal/htmlstream"
)

const page = `<!DOCTYPE html><html><head><title>x</title></head>` +
	`<body><main><p>a <b>b</b></p></main><footer>f</footer></body></html>`

const banner = `<aside id="banner">hi</aside>`

func mustFragment(t *testing.T, markup string, pos Position) Fragment {
	t.Helper()
	f, err := newFragment([]byte(markup), SourceRule, pos)
	require.NoError(t, err)
	return f
}

// splice streams doc through a transform into inj in chunks of size n.
func splice(t *testing.T, inj *Injector, doc string, n int) {
	t.Helper()
	tr := htmlstream.NewTransform(inj)
	for start := 0; start < len(doc); start += n {
		end := start + n
		if end > len(doc) {
			end = len(doc)
		}
		_, err := tr.Write([]byte(doc[start:end]))
		require.NoError(t, err)
	}
	require.NoError(t, tr.Close())
}

func bodyChildren(t *testing.T, out string) []string {
	t.Helper()
	doc, err := htmlquery.Parse(strings.NewReader(out))
	require.NoError(t, err)

	var names []string
	for _, n := range htmlquery.Find(doc, "//body/*") {
		names = append(names, n.Data)
	}
	return names
}

func TestInjectsAtBodyStart(t *testing.T) {
	var out bytes.Buffer
	inj := New(&out)
	require.NoError(t, inj.Enqueue(mustFragment(t, banner, PositionStart)))

	splice(t, inj, page, len(page))

	want := strings.Replace(page, "<body>", "<body>"+banner, 1)
	assert.Equal(t, want, out.String())
	assert.Equal(t, 1, inj.Injected())
	assert.Equal(t, 0, inj.Pending())
	assert.Equal(t, int64(len(page)), inj.Written())

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out.String()))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("body > aside#banner").Length())
	assert.Equal(t, 0, doc.Find("main aside").Length())
}

func TestReadyFragmentsWait(t *testing.T) {
	var out bytes.Buffer
	inj := New(&out)
	require.NoError(t, inj.Enqueue(mustFragment(t, banner, PositionReady)))

	tr := htmlstream.NewTransform(inj)
	_, err := tr.Write([]byte("<html><body><main>"))
	require.NoError(t, err)
	assert.Equal(t, 1, inj.Pending(), "not ready at the body boundary")
	assert.False(t, inj.IsReady())

	inj.Ready()
	_, err = tr.Write([]byte("<p>a</p></main><footer>f</footer></body></html>"))
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	assert.Equal(t,
		"<html><body><main><p>a</p></main>"+banner+"<footer>f</footer></body></html>",
		out.String())
	assert.Equal(t, []string{"main", "aside", "footer"}, bodyChildren(t, out.String()))
}

func TestFragmentsKeepQueueOrder(t *testing.T) {
	var out bytes.Buffer
	inj := New(&out)
	inj.Ready()
	for _, m := range []string{`<i id="1"></i>`, `<i id="2"></i>`, `<i id="3"></i>`} {
		require.NoError(t, inj.Enqueue(mustFragment(t, m, PositionReady)))
	}

	splice(t, inj, "<body><div></div></body>", 64)

	assert.Equal(t, `<body><i id="1"></i><i id="2"></i><i id="3"></i><div></div></body>`, out.String())
}

func TestStartFragmentsSkipReadyOnes(t *testing.T) {
	var out bytes.Buffer
	inj := New(&out)
	waiting := mustFragment(t, `<i id="late"></i>`, PositionReady)
	require.NoError(t, inj.Enqueue(waiting))
	require.NoError(t, inj.Enqueue(mustFragment(t, `<i id="early"></i>`, PositionStart)))

	splice(t, inj, "<body><div></div></body>", 64)

	assert.Equal(t, `<body><i id="early"></i><div></div></body>`, out.String())
	left := inj.Close()
	require.Len(t, left, 1)
	assert.Equal(t, waiting.ID, left[0].ID)
}

func TestNeverInsideNestedElements(t *testing.T) {
	doc := `<html><body><section><div><p>deep</p></div></section>` +
		`<script>if (a<b) { document.write("<div>") }</script>` +
		`<ul><li>1</li><li>2<br></li></ul></body></html>`

	var reference string
	for n := 1; n <= len(doc); n++ {
		var out bytes.Buffer
		inj := New(&out)
		inj.Ready()
		require.NoError(t, inj.Enqueue(mustFragment(t, `<hr class="x">`, PositionReady)))
		require.NoError(t, inj.Enqueue(mustFragment(t, `<em class="x">e</em>`, PositionReady)))

		splice(t, inj, doc, n)

		if reference == "" {
			reference = out.String()
		}
		require.Equal(t, reference, out.String(), "chunk size %d", n)
	}

	q, err := goquery.NewDocumentFromReader(strings.NewReader(reference))
	require.NoError(t, err)
	assert.Equal(t, 2, q.Find(".x").Length())
	assert.Equal(t, 2, q.Find("body > .x").Length())
}

func TestOnInjectReportsPlacement(t *testing.T) {
	var placements []Placement
	var out bytes.Buffer
	inj := New(&out, WithOnInject(func(p Placement) {
		placements = append(placements, p)
	}))
	f := mustFragment(t, banner, PositionStart)
	require.NoError(t, inj.Enqueue(f))

	splice(t, inj, "<html><body><p>x</p></body></html>", 5)

	require.Len(t, placements, 1)
	assert.Equal(t, f.ID, placements[0].Fragment.ID)
	assert.Equal(t, int64(len("<html><body>")), placements[0].Offset)
	assert.Equal(t, 0, placements[0].Depth)
}

func TestQueueLimits(t *testing.T) {
	inj := New(&bytes.Buffer{}, WithMaxQueue(2))

	require.NoError(t, inj.Enqueue(mustFragment(t, "<i></i>", PositionReady)))
	require.NoError(t, inj.Enqueue(mustFragment(t, "<i></i>", PositionReady)))
	assert.ErrorIs(t, inj.Enqueue(mustFragment(t, "<i></i>", PositionReady)), ErrQueueFull)

	assert.Len(t, inj.Close(), 2)
	assert.ErrorIs(t, inj.Enqueue(mustFragment(t, "<i></i>", PositionReady)), ErrClosed)
	assert.Equal(t, 0, inj.Pending())
}

type failingWriter struct {
	bytes.Buffer
	failOn string
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte(w.failOn)) {
		return 0, errors.New("connection reset")
	}
	return w.Buffer.Write(p)
}

func TestFragmentWriteErrorRequeues(t *testing.T) {
	w := &failingWriter{failOn: "<aside"}
	inj := New(w)
	require.NoError(t, inj.Enqueue(mustFragment(t, banner, PositionStart)))

	tr := htmlstream.NewTransform(inj)
	_, err := tr.Write([]byte("<body><p>x</p></body>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, inj.Pending())
	assert.Equal(t, 0, inj.Injected())
}

func TestFlushesHTTPResponses(t *testing.T) {
	rec := httptest.NewRecorder()
	inj := New(rec)

	splice(t, inj, "<body><p>x</p></body>", 4)

	assert.True(t, rec.Flushed)
	assert.Equal(t, "<body><p>x</p></body>", rec.Body.String())
}

func TestConcurrentEnqueue(t *testing.T) {
	const writers, each = 4, 25

	var out bytes.Buffer
	inj := New(&out, WithMaxQueue(writers*each))
	inj.Ready()

	doc := "<html><body>" + strings.Repeat("<div>x</div>", 500) + "</body></html>"
	tr := htmlstream.NewTransform(inj)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				f, err := newFragment([]byte(`<span class="c"></span>`), SourceAPI, PositionReady)
				if err == nil {
					_ = inj.Enqueue(f)
				}
			}
		}()
	}

	for start := 0; start < len(doc); start += 37 {
		end := start + 37
		if end > len(doc) {
			end = len(doc)
		}
		_, err := tr.Write([]byte(doc[start:end]))
		require.NoError(t, err)
	}
	wg.Wait()
	require.NoError(t, tr.Close())

	left := inj.Close()
	assert.Equal(t, writers*each, inj.Injected()+len(left))
	assert.Equal(t, inj.Injected(), strings.Count(out.String(), `<span class="c"></span>`))

	q, err := goquery.NewDocumentFromReader(strings.NewReader(out.String()))
	require.NoError(t, err)
	assert.Equal(t, 0, q.Find("div span").Length())
}
