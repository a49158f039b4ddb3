package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text for indexing: it trims, collapses
// whitespace runs to a single space and drops control characters that
// PDF and DOCX extraction tend to leave behind.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case unicode.IsControl(r) || r == '\ufffd':
			continue
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
