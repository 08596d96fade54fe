package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/audiobookrequest/abr-server/internal/cache"
	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/match"
	"github.com/audiobookrequest/abr-server/internal/normalize"
)

// Verifier caches fuzzy match verdicts. Fuzzy scoring is pure but not
// cheap, and fan-out searches compare the same hit/candidate pairs over
// and over across strategies.
type Verifier struct {
	verdicts *cache.Cache[string, bool]
	ttl      time.Duration
}

// NewVerifier creates a verdict cache with the given TTL.
func NewVerifier(ttl time.Duration) *Verifier {
	return &Verifier{
		verdicts: cache.New[string, bool](),
		ttl:      ttl,
	}
}

// verify runs the tiered matcher with a cache in front. Cancelled work
// never writes the cache.
func (v *Verifier) verify(ctx context.Context, hit *domain.Hit, book *domain.Book, strict bool) bool {
	key := fmt.Sprintf("%s|%s|%s|%s|%t",
		hit.Title, hit.Author, book.Title, strings.Join(book.Authors, ","), strict)

	if verdict, ok := v.verdicts.Get(v.ttl, key); ok {
		return verdict
	}

	verdict := match.Verify(hit, book, strict)
	if ctx.Err() == nil {
		v.verdicts.Set(verdict, key)
	}
	return verdict
}

// hitStrategies builds the catalog query strategies for an indexer hit, in
// the order they should be preferred:
//
//  1. full title plus author
//  2. primary title only, normalization noise stripped
//  3. quoted title plus author
func hitStrategies(hit *domain.Hit) []string {
	return []string{
		hit.Title + " " + hit.Author,
		normalize.Text(hit.Title, true),
		`"` + hit.Title + `" ` + hit.Author,
	}
}
