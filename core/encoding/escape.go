// Package encoding provides text escaping for the DXF and SVG writers.
package encoding

import (
	"fmt"
	"strings"
)

// EscapeDXF escapes s for a DXF string value. Carriage returns are
// dropped, newlines become \P, backslashes are doubled and anything
// outside printable ASCII becomes \U+XXXX. Characters beyond the BMP are
// written with their full code point.
func EscapeDXF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r':
		case r == '\n':
			b.WriteString(`\P`)
		case r == '\\':
			b.WriteString(`\\`)
		case r < 0x20 || r > 0x7E:
			fmt.Fprintf(&b, `\U+%04X`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeXMLText escapes the basic XML entities for text content. Control
// characters that XML 1.0 cannot carry are dropped.
func EscapeXMLText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeXMLAttr escapes text for use in a double-quoted XML attribute.
func EscapeXMLAttr(s string) string {
	s = EscapeXMLText(s)
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
