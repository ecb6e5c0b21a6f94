package htmlstream

// Elements with no end tag in well-formed HTML.
var voidElements = map[string]struct{}{
	"area":    {},
	"base":    {},
	"br":      {},
	"col":     {},
	"command": {},
	"embed":   {},
	"hr":      {},
	"img":     {},
	"input":   {},
	"keygen":  {},
	"link":    {},
	"meta":    {},
	"param":   {},
	"source":  {},
	"track":   {},
	"wbr":     {},
}

// IsVoidElement reports whether name (lower case) is a void element.
func IsVoidElement(name string) bool {
	_, ok := voidElements[name]
	return ok
}

// IsRawTextElement reports whether the content of name (lower case) is opaque
// text up to the matching end tag.
func IsRawTextElement(name string) bool {
	switch name {
	case "script", "style", "textarea":
		return true
	}
	return false
}

func isASCIIAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isSpace(c byte) bool {
	switch c {
	case '\t', '\n', '\v', '\f', '\r', ' ':
		return true
	}
	return false
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
