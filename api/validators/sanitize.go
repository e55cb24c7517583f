package validators

import (
	"strings"
	"unicode"
)

// SanitizeText trims input, drops control characters other than newline and
// tab, and cuts the result to maxRunes runes. maxRunes <= 0 disables the cut.
func SanitizeText(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	cleaned = strings.TrimSpace(cleaned)

	if maxRunes <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxRunes {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxRunes]))
}

// SanitizeIdentifier trims input and removes every whitespace and control
// character, for ids passed through to the lending backend.
func SanitizeIdentifier(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
}
