package prowlarr

import (
	"regexp"
	"strings"
)

// unknownField is the placeholder for components the release title does
// not carry.
const unknownField = "Unknown"

var (
	bracketTags = regexp.MustCompile(`\[.*?\]`)
	parenTags   = regexp.MustCompile(`\(.*?\)`)
	byAuthor    = regexp.MustCompile(`(?i) by `)
)

// ParseReleaseTitle splits an indexer release title into book title, author
// and narrator. Release titles commonly follow one of:
//
//	"Book Title - Author Name - Narrator Name"
//	"Author Name - Book Title"
//	"Book Title by Author Name [Tags]"
//
// Tags in brackets or parentheses are stripped first. Components that
// cannot be determined come back as "Unknown".
func ParseReleaseTitle(release string) (title, author, narrator string) {
	clean := bracketTags.ReplaceAllString(release, "")
	clean = strings.TrimSpace(parenTags.ReplaceAllString(clean, ""))

	title = clean
	author = unknownField
	narrator = unknownField

	switch {
	case strings.Contains(clean, " - "):
		parts := strings.Split(clean, " - ")
		if len(parts) >= 3 {
			title = strings.TrimSpace(parts[0])
			author = strings.TrimSpace(parts[1])
			narrator = strings.TrimSpace(parts[2])
		} else {
			first := strings.TrimSpace(parts[0])
			second := strings.TrimSpace(parts[1])
			// A multi-word first half against a single-word second half
			// usually means "Author - Title".
			if strings.Contains(first, " ") && len(strings.Fields(second)) <= 1 {
				author = first
				title = second
			} else {
				title = first
				author = second
			}
		}
	case byAuthor.MatchString(clean):
		parts := byAuthor.Split(clean, 2)
		title = strings.TrimSpace(parts[0])
		author = strings.TrimSpace(parts[1])
	}

	return title, author, narrator
}
