// Package similarity implements the title normalization and fuzzy matching
// used when reconciling catalog search results against a requested title.
package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Normalize flattens a title for comparison: transliterates to ASCII,
// lowercases, and strips whitespace and punctuation so "Spider-Man" and
// "spider man" compare equal.
func Normalize(s string) string {
	s = unidecode.Unidecode(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TitlesMatch reports whether two titles refer to the same work. After
// normalization a candidate is accepted when either string contains the
// other, which tolerates subtitle suffixes like "Title: The Series".
func TitlesMatch(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// YearMatches applies the exact-or-absent rule: a missing year on either
// side matches anything, otherwise the years must be equal.
func YearMatches(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return true
	}
	return a == b
}
