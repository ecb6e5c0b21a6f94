package htmlstream

import (
	"errors"
	"fmt"
)

// ErrUnbalanced is returned by Balanced for markup that would leave the
// surrounding document at a different depth.
var ErrUnbalanced = errors.New("htmlstream: unbalanced markup")

// Balanced checks that fragment closes every element it opens, closes nothing
// it did not open, and does not end inside a tag, comment or raw-text element.
// Such a fragment can be spliced at a body boundary without moving it.
func Balanced(fragment []byte) error {
	depth := 0
	underflow := ""
	h := HandlerFuncs{
		Open: func(string) Action {
			depth++
			return Continue
		},
		Close: func(name string) Action {
			depth--
			if depth < 0 && underflow == "" {
				underflow = name
			}
			return Continue
		},
	}

	tok := NewTokenizer()
	n, _, err := tok.Scan(fragment, h)
	if err != nil {
		return err
	}

	switch {
	case underflow != "":
		return fmt.Errorf("%w: </%s> closes an element opened outside the fragment", ErrUnbalanced, underflow)
	case n < len(fragment):
		return fmt.Errorf("%w: incomplete tag at offset %d", ErrUnbalanced, n)
	case tok.RawTextParent() != "":
		return fmt.Errorf("%w: <%s> is not closed", ErrUnbalanced, tok.RawTextParent())
	case tok.State() != StateText:
		return fmt.Errorf("%w: fragment ends in %s", ErrUnbalanced, tok.State())
	case depth != 0:
		return fmt.Errorf("%w: %d element(s) left open", ErrUnbalanced, depth)
	}
	return nil
}
