// Package normalize canonicalizes transaction descriptions. The normalized
// key is the sole identity used by classification memory, recurring rules
// and duplicate fingerprints, so descriptions arriving from different
// exports must converge to the same key whenever their text agrees modulo
// formatting.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritics via NFD decomposition followed by
// combining-mark removal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Key uppercases, trims, strips diacritics, turns merchant-code separators
// and punctuation into spaces, and collapses internal whitespace. It is
// idempotent: Key(Key(x)) == Key(x).
func Key(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	upper := strings.ToUpper(stripped)

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			// '*' merchant-code separators, punctuation and whitespace all
			// become a single collapsing space.
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
