// Package match decides whether an indexer hit and a catalog book describe
// the same audiobook.
//
// Matching is tiered: an exact comparison of normalized text short-circuits,
// otherwise fuzzy title and author scores are checked against thresholds.
// Strict thresholds are used on the first pass over search results; the
// relaxed tier exists as a fallback so near-miss releases (abbreviated
// author names, subtitle noise) are not lost entirely.
package match

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/audiobookrequest/abr-server/internal/normalize"
)

// Source is the indexer side of a comparison. Hits expose a single free-text
// author field.
type Source interface {
	GetTitle() string
	GetAuthor() string
}

// Candidate is the catalog side of a comparison.
type Candidate interface {
	GetTitle() string
	GetAuthors() []string
}

// shortTitleLen is the normalized-title length below which a title is
// considered too short for token-set matching to be reliable, so the
// required score is raised.
const shortTitleLen = 10

type thresholds struct {
	titleRetry   int // below this, the full title gets a second pass
	titleLong    int
	titleShort   int
	authorMulti  int // fuzzy ratio for "First Last" style authors
	authorSingle int // token-set ratio for single-token authors
	unknownTitle int // title score treated as confirmation when author is unusable
}

var (
	strict  = thresholds{titleRetry: 85, titleLong: 85, titleShort: 95, authorMulti: 85, authorSingle: 80, unknownTitle: 95}
	relaxed = thresholds{titleRetry: 75, titleLong: 75, titleShort: 90, authorMulti: 75, authorSingle: 70, unknownTitle: 90}
)

// Verify reports whether src plausibly is the book. When useStrict is false
// the relaxed thresholds apply.
func Verify(src Source, book Candidate, useStrict bool) bool {
	ok, _ := Score(src, book, useStrict)
	return ok
}

// Score is Verify with the title and author scores exposed for logging.
func Score(src Source, book Candidate, useStrict bool) (bool, Scores) {
	th := relaxed
	if useStrict {
		th = strict
	}

	srcTitle := normalize.Text(src.GetTitle(), false)
	srcAuthor := normalize.Text(src.GetAuthor(), false)
	bookTitle := normalize.Text(book.GetTitle(), false)
	bookAuthors := normalize.Text(strings.Join(book.GetAuthors(), " "), false)

	// Fast path: identical after normalization.
	if srcTitle == bookTitle && srcAuthor == bookAuthors {
		return true, Scores{Title: 100, Author: 100}
	}

	// Primary titles first so subtitles and series tags don't drag the
	// score down; fall back to the full titles when that isn't enough.
	titleScore := fuzzy.TokenSetRatio(
		normalize.Text(src.GetTitle(), true),
		normalize.Text(book.GetTitle(), true),
	)
	if titleScore < th.titleRetry {
		if full := fuzzy.TokenSetRatio(srcTitle, bookTitle); full > titleScore {
			titleScore = full
		}
	}

	var titleOK bool
	if len(srcTitle) < shortTitleLen {
		titleOK = titleScore >= th.titleShort
	} else {
		titleOK = titleScore >= th.titleLong
	}

	// Author: indexer metadata is often missing or a literal "unknown".
	// In that case the title carries the whole decision.
	var authorOK bool
	authorScore := 0
	if srcAuthor == "" || len(srcAuthor) < 3 || srcAuthor == "unknown" {
		authorOK = true
		if titleScore >= th.unknownTitle {
			authorScore = 100
		}
	} else if tokens := strings.Fields(srcAuthor); len(tokens) >= 2 {
		authorScore = fuzzy.Ratio(srcAuthor, bookAuthors)
		authorOK = authorScore >= th.authorMulti
	} else {
		// Single token ("sanderson"): token-set lets it match any one
		// name part, so a stricter plain ratio would reject too much.
		authorScore = fuzzy.TokenSetRatio(srcAuthor, bookAuthors)
		authorOK = authorScore >= th.authorSingle
	}

	return titleOK && authorOK, Scores{Title: titleScore, Author: authorScore}
}

// Scores carries the fuzzy scores behind a match decision.
type Scores struct {
	Title  int
	Author int
}
