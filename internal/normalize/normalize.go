// Package normalize canonicalizes titles and author strings for comparison
// and identifier derivation.
//
// Text is used both by the fuzzy matcher and by the virtual-ASIN generator,
// so it must stay deterministic: changing its algorithm invalidates every
// previously derived provisional identifier.
package normalize

import (
	"strings"
	"unicode"
)

// primaryDelimiters are the characters that introduce subtitles or release
// metadata in noisy indexer titles ("Title: A Novel", "Title (Unabridged)",
// "Title [MP3]", "Title — Book 2").
const primaryDelimiters = ":([—"

// Text canonicalizes a string: lower-case, punctuation stripped, whitespace
// runs collapsed to single spaces. When primaryOnly is set, the string is
// first truncated at the first subtitle/metadata delimiter.
// Empty input yields the empty string.
func Text(s string, primaryOnly bool) string {
	if s == "" {
		return ""
	}

	if primaryOnly {
		if idx := strings.IndexAny(s, primaryDelimiters); idx >= 0 {
			s = s[:idx]
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			// Punctuation and whitespace both become separators.
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// PrimaryTitle returns the subtitle-truncated normalized form of a title.
func PrimaryTitle(s string) string {
	return Text(s, true)
}

// Key builds the dedup key for an indexer hit: normalized title and author
// joined with a colon. Two hits with the same key describe the same book.
func Key(title, author string) string {
	return Text(title, false) + ":" + Text(author, false)
}
