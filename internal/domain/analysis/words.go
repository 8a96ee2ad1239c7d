package analysis

import (
	"strings"
	"unicode"
)

// CapWords keeps the first limit whitespace-separated words of text, leaving
// the original spacing between them intact. It reports whether text was cut.
func CapWords(text string, limit int) (string, bool) {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return text, false
	}
	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			words++
			if words > limit {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace) + "…", true
			}
		}
	}
	return text, false
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
