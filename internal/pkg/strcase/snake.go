package strcase

import (
	"strings"
	"unicode"
)

// ToLowerSnake converts CamelCase and mixedCase identifiers to snake_case.
// Runs of upper-case letters are treated as one word, so "HTTPStatus" becomes
// "http_status" rather than "h_t_t_p_status".
func ToLowerSnake(s string) string {
	runes := []rune(s)

	var b strings.Builder
	b.Grow(len(runes) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && boundaryBefore(runes, i) {
			b.WriteRune('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

// boundaryBefore reports whether a word break belongs in front of runes[i].
// That is the case when the previous rune ends a word (lower case or digit),
// or when an acronym run ends and a new word starts (upper followed by lower).
func boundaryBefore(runes []rune, i int) bool {
	prev := runes[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return true
	}
	return false
}
