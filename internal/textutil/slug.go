package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes characters and strips combining marks so that
// names like "Séraphine" slug to "seraphine".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug derives the stable champion identifier from a display name: the name
// is lowercased and everything that is not a letter or digit is dropped, so
// "Kai'Sa" becomes "kaisa" and "Aurelion Sol" becomes "aurelionsol". The same
// display name always produces the same slug; an empty input produces "".
func Slug(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if folded, _, err := transform.String(foldDiacritics, name); err == nil {
		name = folded
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
