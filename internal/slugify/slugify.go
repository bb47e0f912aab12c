// Package slugify turns episode titles into URL path segments.
package slugify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generate maps title to a lowercase ASCII slug: accents are folded
// ("Épisode" -> "episode"), whitespace, '-', '_' and '.' become single
// hyphens, everything else is dropped. Leading/trailing hyphens are trimmed.
// The result may be empty when title has no letters or digits.
func Generate(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_', r == '.':
			pendingHyphen = true
		}
	}
	return b.String()
}
