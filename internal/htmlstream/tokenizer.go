package htmlstream

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState means the state machine reached a state it has no rule
	// for. It is never caused by input; the tokenizer is unusable afterwards.
	ErrInvalidState = errors.New("htmlstream: invalid tokenizer state")
)

// Action is what a Handler asks the tokenizer to do after a tag event.
type Action uint8

const (
	// Continue keeps scanning.
	Continue Action = iota
	// Pause makes Scan return right after the tag that triggered it.
	Pause
)

func (a Action) String() string {
	if a == Pause {
		return "pause"
	}
	return "continue"
}

// Handler receives tag events. Names are lower case.
type Handler interface {
	OpenTag(name string) Action
	CloseTag(name string) Action
}

// HandlerFuncs adapts a pair of functions to Handler. Nil funcs continue.
type HandlerFuncs struct {
	Open  func(name string) Action
	Close func(name string) Action
}

func (h HandlerFuncs) OpenTag(name string) Action {
	if h.Open == nil {
		return Continue
	}
	return h.Open(name)
}

func (h HandlerFuncs) CloseTag(name string) Action {
	if h.Close == nil {
		return Continue
	}
	return h.Close(name)
}

const (
	// DefaultMaxPending is the largest incomplete tag handed back to the
	// caller for re-feeding. Longer tags are carried as state instead.
	DefaultMaxPending = 16 * 1024

	maxNameLen = 256
)

// TokenizerOption configures a Tokenizer.
type TokenizerOption func(*Tokenizer)

// WithMaxPending bounds the bytes of an incomplete tag that Scan leaves
// unconsumed at the end of a buffer. Zero disables rewinding entirely.
func WithMaxPending(n int) TokenizerOption {
	return func(t *Tokenizer) {
		if n < 0 {
			n = 0
		}
		t.maxPending = n
	}
}

// Tokenizer is a streaming HTML tag scanner. It recognizes start and end tags,
// skips attributes, comments, doctypes and raw text, and reports tags to a
// Handler. State persists across Scan calls; a Tokenizer serves one stream and
// must not be used concurrently.
type Tokenizer struct {
	state      State
	name       []byte
	rawParent  string
	maxPending int
	pending    bool
	err        error
}

// NewTokenizer returns a tokenizer positioned in text.
func NewTokenizer(opts ...TokenizerOption) *Tokenizer {
	t := &Tokenizer{
		state:      StateText,
		name:       make([]byte, 0, 16),
		maxPending: DefaultMaxPending,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current lexer state.
func (t *Tokenizer) State() State { return t.state }

// RawTextParent returns the raw-text element being scanned, or "".
func (t *Tokenizer) RawTextParent() string { return t.rawParent }

// Pending reports whether the last Scan handed back an incomplete tag.
func (t *Tokenizer) Pending() bool { return t.pending }

// Err returns the error that stopped the tokenizer, if any.
func (t *Tokenizer) Err() error { return t.err }

// Scan consumes buf from offset 0 and returns how many bytes were consumed.
//
// Scan returns early with Pause as soon as a handler asks for it; n is then
// the offset just past the '>' of the tag. Otherwise it returns Continue. If
// buf ends inside a tag, Scan rewinds to the state before the tag's '<' and
// returns that offset, so buf[n:] must be prefixed to the next buffer. Tags
// longer than the pending limit, and comments of any length, are carried as
// state and fully consumed.
func (t *Tokenizer) Scan(buf []byte, h Handler) (n int, act Action, err error) {
	if t.err != nil {
		return 0, Continue, t.err
	}
	t.pending = false

	mark := -1
	i := 0
	for i < len(buf) {
		c := buf[i]

		switch t.state {
		case StateText:
			if c == '<' {
				t.state = StateBeforeTagName
				mark = i
			}

		case StateBeforeTagName:
			switch {
			case c == '<':
				mark = i // <<
			case t.rawParent != "":
				if c == '/' {
					t.state = StateBeforeClosingName
					t.name = t.name[:0]
				} else {
					t.state = StateText
				}
			case isASCIIAlpha(c):
				t.state = StateInTagName
				t.name = append(t.name[:0], toLower(c))
			case c == '/':
				t.state = StateBeforeClosingName
				t.name = t.name[:0]
			case c == '!':
				t.state = StateMarkupDecl
			case c == '?':
				t.state = StateBogusComment // <?xml ... >
			default:
				t.state = StateText // <> or < followed by text
			}

		case StateInTagName:
			switch {
			case c == '>':
				act = t.emitOpen(h, false)
			case c == '/':
				t.state = StateSelfClosing
			case isSpace(c):
				t.state = StateBeforeAttrName
			default:
				t.appendName(c)
			}

		case StateBeforeAttrName:
			switch {
			case c == '>':
				act = t.emitOpen(h, false)
			case c == '/':
				t.state = StateSelfClosing
			case isSpace(c):
			default:
				t.state = StateInAttrName
			}

		case StateInAttrName:
			switch {
			case c == '>':
				act = t.emitOpen(h, false)
			case c == '/':
				t.state = StateSelfClosing
			case c == '=':
				t.state = StateBeforeAttrValue
			case isSpace(c):
				t.state = StateAfterAttrName
			}

		case StateAfterAttrName:
			switch {
			case c == '>':
				act = t.emitOpen(h, false)
			case c == '/':
				t.state = StateSelfClosing
			case c == '=':
				t.state = StateBeforeAttrValue // name = value
			case isSpace(c):
			default:
				t.state = StateInAttrName
			}

		case StateBeforeAttrValue:
			switch {
			case c == '"':
				t.state = StateAttrValueDouble
			case c == '\'':
				t.state = StateAttrValueSingle
			case c == '>':
				act = t.emitOpen(h, false) // <a href=>
			case isSpace(c):
			default:
				t.state = StateAttrValueUnquoted
			}

		case StateAttrValueUnquoted:
			// Quotes, '=' and '/' are part of an unquoted value.
			switch {
			case c == '>':
				act = t.emitOpen(h, false)
			case isSpace(c):
				t.state = StateBeforeAttrName
			}

		case StateAttrValueSingle:
			if c == '\'' {
				t.state = StateBeforeAttrName
			}

		case StateAttrValueDouble:
			if c == '"' {
				t.state = StateBeforeAttrName
			}

		case StateSelfClosing:
			if c == '>' {
				act = t.emitOpen(h, true)
			} else {
				t.state = StateBeforeAttrName
				continue // reprocess as an attribute byte
			}

		case StateBeforeClosingName:
			switch {
			case isASCIIAlpha(c):
				t.state = StateInClosingName
				t.name = append(t.name[:0], toLower(c))
			case t.rawParent != "":
				if c == '<' {
					t.state = StateBeforeTagName
					mark = i
				} else {
					t.state = StateText
				}
			case c == '>':
				t.state = StateText // </>
			default:
				t.state = StateBogusComment // </ div>
			}

		case StateInClosingName:
			if t.rawParent != "" {
				act = t.rawClosingName(h, c, i, &mark)
				break
			}
			switch {
			case c == '>':
				act = t.emitClose(h)
			case isSpace(c) || c == '/':
				t.state = StateAfterClosingName
			default:
				t.appendName(c)
			}

		case StateAfterClosingName:
			if c == '>' {
				act = t.emitClose(h)
			}

		case StateMarkupDecl:
			switch c {
			case '-':
				t.state = StateCommentOpen
			case 'd', 'D':
				t.state = StateDoctypeName
				t.name = append(t.name[:0], 'd')
			case '>':
				t.state = StateText // <!>
			default:
				t.state = StateBogusComment // <![CDATA[ and friends
			}

		case StateDoctypeName:
			t.doctypeName(c)

		case StateDoctype:
			if c == '>' {
				t.state = StateText
			}

		case StateCommentOpen:
			switch c {
			case '-':
				t.state = StateCommentStart
			case '>':
				t.state = StateText // <!->
			default:
				t.state = StateBogusComment
			}

		case StateCommentStart:
			switch c {
			case '>':
				t.state = StateText // <!--> and <!--->
			case '-':
			default:
				t.state = StateComment
			}

		case StateComment:
			if c == '-' {
				t.state = StateCommentEndDash
			}

		case StateCommentEndDash:
			if c == '-' {
				t.state = StateCommentEnd
			} else {
				t.state = StateComment
			}

		case StateCommentEnd:
			switch c {
			case '>':
				t.state = StateText
			case '-':
				// ---
			default:
				t.state = StateComment
			}

		case StateBogusComment:
			if c == '>' {
				t.state = StateText
			}

		default:
			t.err = fmt.Errorf("%w: %s at offset %d", ErrInvalidState, t.state, i)
			return i, Continue, t.err
		}

		i++

		if act == Pause {
			return i, Pause, nil
		}
	}

	if t.state.rewindable() && mark >= 0 && len(buf)-mark <= t.maxPending {
		t.state = StateText
		t.name = t.name[:0]
		t.pending = true
		return mark, Continue, nil
	}

	return i, Continue, nil
}

// rawClosingName handles a byte of "</name" inside script, style or textarea.
// Only the parent's own end tag leaves raw text; anything else drops back to
// raw text immediately.
func (t *Tokenizer) rawClosingName(h Handler, c byte, i int, mark *int) Action {
	switch {
	case c == '>':
		if string(t.name) == t.rawParent {
			return t.emitClose(h)
		}
		t.state = StateText
	case isASCIIAlpha(c):
		t.name = append(t.name, toLower(c))
		if len(t.name) > len(t.rawParent) || t.rawParent[:len(t.name)] != string(t.name) {
			t.state = StateText
		}
	case (isSpace(c) || c == '/') && string(t.name) == t.rawParent:
		t.state = StateAfterClosingName // </script >
	case c == '<':
		t.state = StateBeforeTagName
		*mark = i
	default:
		t.state = StateText
	}
	return Continue
}

func (t *Tokenizer) doctypeName(c byte) {
	const keyword = "doctype"

	switch {
	case c == '>':
		t.state = StateText
	case isSpace(c):
		if string(t.name) == keyword {
			t.state = StateDoctype
		} else {
			t.state = StateBogusComment
		}
	case len(t.name) < len(keyword) && toLower(c) == keyword[len(t.name)]:
		t.name = append(t.name, toLower(c))
	default:
		t.state = StateBogusComment
	}
}

func (t *Tokenizer) appendName(c byte) {
	if len(t.name) < maxNameLen {
		t.name = append(t.name, toLower(c))
	}
}

// emitOpen reports a start tag. Void and self-closing tags get their close
// event immediately; the scan pauses if either event asked for it.
func (t *Tokenizer) emitOpen(h Handler, selfClosing bool) Action {
	name := string(t.name)
	t.name = t.name[:0]
	t.state = StateText

	act := h.OpenTag(name)
	if IsRawTextElement(name) {
		t.rawParent = name
	}
	if selfClosing || IsVoidElement(name) {
		if h.CloseTag(name) == Pause {
			act = Pause
		}
		t.rawParent = ""
	}
	return act
}

// emitClose reports an end tag. End tags of void elements and empty names are
// dropped so depth tracking stays consistent.
func (t *Tokenizer) emitClose(h Handler) Action {
	name := string(t.name)
	t.name = t.name[:0]
	t.state = StateText

	if t.rawParent != "" {
		t.rawParent = ""
		return h.CloseTag(name)
	}
	if name == "" || IsVoidElement(name) {
		return Continue
	}
	return h.CloseTag(name)
}
