// Package rank orders catalog books by how well they answer a search query.
//
// The primary signal is semantic author matching: an exact first+last name
// match dominates, a shared surname counts for little, and mere word overlap
// for almost nothing. A secondary signal blends title similarity with
// release recency. The two combine 70/30.
package rank

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/audiobookrequest/abr-server/internal/domain"
)

// MatchType classifies how a book's authors relate to the query.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchSurnameOnly MatchType = "surname_only"
	MatchWeak        MatchType = "weak"
	MatchNone        MatchType = "none"
)

// Author-score tiers. Only an exact name match is worth anything close to
// the best-match gate.
const (
	scoreExact           = 100.0
	scoreSurnameConflict = 30.0 // same surname, conflicting first names
	scoreSurnameLoose    = 35.0 // same surname, a first name missing
	scoreWeak            = 10.0
)

const (
	authorWeight    = 0.7
	secondaryWeight = 0.3

	titleWeight   = 0.6
	recencyWeight = 0.4

	// is-best-match gate
	bestAuthorScore   = 95.0
	bestCombinedScore = 75.0
)

// Entry is one ranked book with its scoring breakdown.
type Entry struct {
	Book           domain.Book
	Score          float64
	AuthorScore    float64
	SecondaryScore float64
	MatchType      MatchType
	Explanation    string
	IsBestMatch    bool
}

// Options controls ranking behavior.
type Options struct {
	// SecondaryScoring blends title similarity and recency into the final
	// score. When false the author score stands alone.
	SecondaryScoring bool
	// Now anchors recency scoring; zero means time.Now.
	Now time.Time
}

// Rank scores books against query and returns them ordered best-first.
// The sort is stable so equally scored books keep their input order.
func Rank(books []domain.Book, query string, opts Options) []Entry {
	if len(books) == 0 || query == "" {
		return nil
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entries := make([]Entry, 0, len(books))
	for _, book := range books {
		authorScore, matchType, explanation := AuthorScore(book.Authors, query)

		var secondary float64
		if opts.SecondaryScoring {
			secondary = secondaryScore(&book, query, now)
		}

		combined := authorScore
		if opts.SecondaryScoring {
			combined = authorScore*authorWeight + secondary*secondaryWeight
		}

		entries = append(entries, Entry{
			Book:           book,
			Score:          combined,
			AuthorScore:    authorScore,
			SecondaryScore: secondary,
			MatchType:      matchType,
			Explanation:    explanation,
			IsBestMatch: authorScore >= bestAuthorScore &&
				matchType == MatchExact &&
				combined >= bestCombinedScore,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

// Partition splits ranked entries into confident author matches and the
// rest, preserving order within each group.
func Partition(entries []Entry, authorThreshold float64) (best, other []Entry) {
	for _, e := range entries {
		if e.AuthorScore >= authorThreshold && e.MatchType == MatchExact {
			best = append(best, e)
		} else {
			other = append(other, e)
		}
	}
	return best, other
}

// AuthorScore scores how well any of the book's authors matches the query,
// returning the best score with its classification and a human-readable
// explanation for diagnostics.
func AuthorScore(authors []string, query string) (float64, MatchType, string) {
	if len(authors) == 0 || query == "" {
		return 0, MatchNone, "no authors or query"
	}

	queryFirst, queryLast := queryNameComponents(query)
	if queryLast == "" {
		return 0, MatchNone, "no surname found in query"
	}

	bestScore := 0.0
	bestType := MatchNone
	bestExplanation := "no match found"

	record := func(score float64, t MatchType, explanation string) {
		if score > bestScore {
			bestScore = score
			bestType = t
			bestExplanation = explanation
		}
	}

	for _, author := range authors {
		first := firstName(author)
		last := surname(author)
		if last == "" {
			continue
		}

		switch {
		case queryFirst != "" && first != "" && queryFirst == first && queryLast == last:
			record(scoreExact, MatchExact, fmt.Sprintf("exact match: %q", author))

		case queryLast == last:
			if queryFirst != "" && first != "" && queryFirst != first {
				record(scoreSurnameConflict, MatchSurnameOnly,
					fmt.Sprintf("surname match: %q (different first name)", last))
			} else if queryFirst == "" || first == "" {
				record(scoreSurnameLoose, MatchSurnameOnly, fmt.Sprintf("surname match: %q", last))
			}

		default:
			if overlap := wordOverlap(query, author); len(overlap) > 0 {
				record(scoreWeak, MatchWeak,
					fmt.Sprintf("weak match: common words %v", overlap))
			}
		}
	}

	return bestScore, bestType, bestExplanation
}

// secondaryScore blends title similarity against the query with release
// recency. Books without a release date get no recency component.
func secondaryScore(book *domain.Book, query string, now time.Time) float64 {
	score := float64(fuzzy.PartialRatio(
		strings.ToLower(book.Title),
		strings.ToLower(query),
	)) * titleWeight

	if book.ReleaseDate != nil {
		yearsOld := now.Sub(book.ReleaseDate.UTC()).Hours() / 24 / 365.25
		var recency float64
		switch {
		case yearsOld < 1:
			recency = 100
		case yearsOld < 5:
			recency = 80
		case yearsOld < 10:
			recency = 60
		default:
			recency = 40
		}
		score += recency * recencyWeight
	}

	return min(score, 100)
}

var (
	namePrefixes = []string{"dr ", "prof ", "mr ", "mrs ", "ms ", "sir ", "lord "}
	nameSuffixes = []string{" md", " phd", " jr", " sr", " ii", " iii", " iv"}

	nonWord = regexp.MustCompile(`[^\w\s]`)
	spaces  = regexp.MustCompile(`\s+`)
)

// normalizeName lowercases an author name, strips honorifics and
// generational suffixes, and collapses punctuation.
func normalizeName(name string) string {
	n := strings.TrimSpace(strings.ToLower(name))

	for _, p := range namePrefixes {
		if strings.HasPrefix(n, p) {
			n = strings.TrimSpace(n[len(p):])
		}
	}
	for _, s := range nameSuffixes {
		if strings.HasSuffix(n, s) {
			n = strings.TrimSpace(n[:len(n)-len(s)])
		}
	}

	n = nonWord.ReplaceAllString(n, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(n, " "))
}

// surname returns the last word of a normalized name.
func surname(name string) string {
	parts := strings.Fields(normalizeName(name))
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// firstName returns everything except the surname, or "" for single-word names.
func firstName(name string) string {
	parts := strings.Fields(normalizeName(name))
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], " ")
}

// queryNameComponents splits a search query into (first, last) name parts.
// A single-word query is treated as a surname.
func queryNameComponents(query string) (first, last string) {
	parts := strings.Fields(normalizeName(query))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "with": {}, "by": {},
}

// wordOverlap returns the significant words shared between the raw query
// and an author name, in sorted order.
func wordOverlap(query, author string) []string {
	significant := func(words []string) map[string]struct{} {
		out := make(map[string]struct{})
		for _, w := range words {
			if _, stop := stopWords[w]; stop || len(w) <= 2 {
				continue
			}
			out[w] = struct{}{}
		}
		return out
	}

	queryWords := significant(strings.Fields(strings.ToLower(query)))
	authorWords := significant(strings.Fields(normalizeName(author)))

	var overlap []string
	for w := range queryWords {
		if _, ok := authorWords[w]; ok {
			overlap = append(overlap, w)
		}
	}
	sort.Strings(overlap)
	return overlap
}
