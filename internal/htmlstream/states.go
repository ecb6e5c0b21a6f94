package htmlstream

import "fmt"

// State is the lexer state carried between Scan calls.
type State uint8

const (
	StateText State = iota
	StateBeforeTagName
	StateInTagName
	StateBeforeAttrName
	StateInAttrName
	StateAfterAttrName
	StateBeforeAttrValue
	StateAttrValueUnquoted
	StateAttrValueSingle
	StateAttrValueDouble
	StateSelfClosing
	StateBeforeClosingName
	StateInClosingName
	StateAfterClosingName
	StateMarkupDecl
	StateDoctypeName
	StateDoctype
	StateCommentOpen
	StateCommentStart
	StateComment
	StateCommentEndDash
	StateCommentEnd
	StateBogusComment

	stateCount
)

var stateNames = [...]string{
	StateText:              "text",
	StateBeforeTagName:     "before-tag-name",
	StateInTagName:         "in-tag-name",
	StateBeforeAttrName:    "before-attribute-name",
	StateInAttrName:        "in-attribute-name",
	StateAfterAttrName:     "after-attribute-name",
	StateBeforeAttrValue:   "before-attribute-value",
	StateAttrValueUnquoted: "attribute-value-unquoted",
	StateAttrValueSingle:   "attribute-value-single-quoted",
	StateAttrValueDouble:   "attribute-value-double-quoted",
	StateSelfClosing:       "self-closing-start-tag",
	StateBeforeClosingName: "before-closing-tag-name",
	StateInClosingName:     "in-closing-tag-name",
	StateAfterClosingName:  "after-closing-tag-name",
	StateMarkupDecl:        "markup-declaration",
	StateDoctypeName:       "doctype-keyword",
	StateDoctype:           "doctype",
	StateCommentOpen:       "comment-open",
	StateCommentStart:      "comment-start",
	StateComment:           "comment",
	StateCommentEndDash:    "comment-end-dash",
	StateCommentEnd:        "comment-end",
	StateBogusComment:      "bogus-comment",
}

func (s State) String() string {
	if s < stateCount {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// rewindable reports whether bytes scanned in s may be handed back to the
// caller as an unconsumed remainder. Comment bodies are carried as state so
// a long comment never has to be buffered.
func (s State) rewindable() bool {
	switch s {
	case StateBeforeTagName, StateInTagName, StateBeforeAttrName, StateInAttrName, StateAfterAttrName,
		StateBeforeAttrValue, StateAttrValueUnquoted, StateAttrValueSingle,
		StateAttrValueDouble, StateSelfClosing, StateBeforeClosingName,
		StateInClosingName, StateAfterClosingName, StateMarkupDecl,
		StateDoctypeName, StateDoctype, StateCommentOpen:
		return true
	}
	return false
}
