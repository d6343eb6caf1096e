package http

import (
	"strings"
	"unicode"
)

// sanitizeInput trims whitespace and strips control characters, newlines included.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}
