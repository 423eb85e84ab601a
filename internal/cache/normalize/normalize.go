// Package normalize implements the Stage B query-text normalization rule:
// lowercase, collapse whitespace, strip leading/trailing whitespace,
// drop punctuation except '?', and strip leading articles. It is
// split out from internal/cache so idempotence gets its own direct unit
// test surface: Normalize(Normalize(s)) == Normalize(s) for any s.
package normalize

import (
	"strings"
	"unicode"
)

var leadingArticles = map[string]bool{
	"the": true,
	"a":   true,
	"an":  true,
}

// Normalize reduces a query string to a canonical form so two queries that
// differ only in case, spacing, punctuation, or leading articles hash to
// the same Stage B cache key.
func Normalize(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r == '?':
			b.WriteRune(r)
		case unicode.IsPunct(r):
			// drop
		default:
			b.WriteRune(r)
		}
	}

	fields := strings.Fields(b.String())
	for len(fields) > 0 && leadingArticles[fields[0]] {
		fields = fields[1:]
	}

	return strings.Join(fields, " ")
}
