package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiobookrequest/abr-server/internal/asin"
	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/domain"
	apperrors "github.com/audiobookrequest/abr-server/internal/errors"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
)

func TestSearch_Passthrough(t *testing.T) {
	svc := newTestServices(t)
	svc.catalog.results["way of kings"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
		catalogResult("B002UZMLXM", "Mistborn", "Brandon Sanderson"),
	}
	// Indexer misconfiguration must not matter in passthrough mode.
	svc.indexer.err = apperrors.Misconfigured("no indexer")

	resp, err := svc.search.Search(context.Background(), SearchParams{Query: "way of kings"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "B08G9PRS1K", resp.Results[0].Book.ASIN)
	assert.Empty(t, resp.Ranked)
}

func TestSearch_PassthroughAttachesRequests(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	svc.catalog.results["*"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}
	svc.catalog.books["B08G9PRS1K"] = catalogBook("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson")

	_, err := svc.requests.Create(ctx, "B08G9PRS1K", "alice")
	require.NoError(t, err)

	resp, err := svc.search.Search(ctx, SearchParams{Query: "way of kings"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Len(t, resp.Results[0].Requests, 1)
	assert.Equal(t, "alice", resp.Results[0].Requests[0].Username)
}

func TestSearch_InvalidRegion(t *testing.T) {
	svc := newTestServices(t)

	_, err := svc.search.Search(context.Background(), SearchParams{
		Query:  "anything",
		Region: audible.Region("mars"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestSearch_AvailabilityVerifiedMatch(t *testing.T) {
	svc := newTestServices(t)
	svc.indexer.hits = []domain.Hit{testHit("The Way of Kings", "Brandon Sanderson", 42)}
	svc.catalog.results["*"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}

	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "way of kings",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	book := resp.Results[0].Book
	assert.Equal(t, "B08G9PRS1K", book.ASIN)
	assert.Equal(t, 42, book.SeedCount)
	require.NotNil(t, book.LastIndexerQuery)
	assert.Equal(t, 2024, book.LastIndexerQuery.Year())
}

func TestSearch_AvailabilityDedupByIdentity(t *testing.T) {
	svc := newTestServices(t)
	// Same identity sighted twice, differing only in case.
	svc.indexer.hits = []domain.Hit{
		testHit("The Way of Kings", "Brandon Sanderson", 10),
		testHit("the way of kings", "brandon sanderson", 99),
	}
	svc.catalog.results["*"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}

	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "way of kings",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	// First sighting wins the dedup, but the later sighting's higher seed
	// count still reaches the kept record.
	assert.Equal(t, 99, resp.Results[0].Book.SeedCount)
}

func TestSearch_DedupMergesAvailabilityIntoKeptHit(t *testing.T) {
	svc := newTestServices(t)
	// Two releases of the same identity from different indexers; the
	// second carries better availability.
	svc.indexer.hits = []domain.Hit{
		testHit("The Way of Kings", "Brandon Sanderson", 5),
		testHit("The Way of Kings", "Brandon Sanderson", 12),
	}
	svc.indexer.hits[1].GUID = "guid-other-release"
	svc.indexer.hits[1].Freeleech = true
	svc.catalog.results["*"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}

	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "way of kings",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	book := resp.Results[0].Book
	assert.Equal(t, "B08G9PRS1K", book.ASIN)
	assert.Equal(t, 12, book.SeedCount)
	assert.True(t, book.Freeleech)
}

func TestSearch_AvailabilityMergesByASIN(t *testing.T) {
	svc := newTestServices(t)
	// Two releases with different identities resolving to the same book.
	svc.indexer.hits = []domain.Hit{
		testHit("The Way of Kings", "Brandon Sanderson", 10),
		testHit("The Way of Kings: The Stormlight Archive", "Brandon Sanderson", 42),
	}
	svc.indexer.hits[1].Freeleech = true
	svc.catalog.results["*"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}

	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "way of kings",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	// Max seeders and sticky freeleech across sightings.
	book := resp.Results[0].Book
	assert.Equal(t, "B08G9PRS1K", book.ASIN)
	assert.Equal(t, 42, book.SeedCount)
	assert.True(t, book.Freeleech)
}

func TestSearch_VirtualFallback(t *testing.T) {
	svc := newTestServices(t)
	svc.indexer.hits = []domain.Hit{testHit("Obscure Homebrew Book", "Nobody Famous", 3)}
	// Catalog knows nothing.

	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "obscure homebrew book",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	book := resp.Results[0].Book
	wantASIN := asin.Virtual("Obscure Homebrew Book", "Nobody Famous")
	assert.Equal(t, wantASIN, book.ASIN)
	assert.True(t, book.IsVirtual())
	assert.Equal(t, 0, book.RuntimeMinutes)
	require.NotNil(t, book.ReleaseDate, "hit publish date stands in for release date")

	// Provisional record is persisted for future upgrade checks.
	stored, err := svc.store.GetBook(context.Background(), wantASIN)
	require.NoError(t, err)
	assert.Equal(t, "Obscure Homebrew Book", stored.Title)
}

func TestSearch_VirtualFallbackDeterministic(t *testing.T) {
	svc := newTestServices(t)
	svc.indexer.hits = []domain.Hit{testHit("Some Book", "Some Author", 1)}

	ctx := context.Background()
	params := SearchParams{Query: "some book", AvailableOnly: true}

	first, err := svc.search.Search(ctx, params)
	require.NoError(t, err)
	second, err := svc.search.Search(ctx, params)
	require.NoError(t, err)

	require.Len(t, first.Results, 1)
	require.Len(t, second.Results, 1)
	assert.Equal(t, first.Results[0].Book.ASIN, second.Results[0].Book.ASIN)
}

func TestSearch_TimeoutFallsBackToVirtual(t *testing.T) {
	svc := newTestServices(t, func(cfg *config.SearchConfig) {
		cfg.HitTimeout = 50 * time.Millisecond
	})
	svc.indexer.hits = []domain.Hit{testHit("Slow Book", "Slow Author", 5)}
	svc.catalog.delay = 500 * time.Millisecond
	svc.catalog.results["*"] = []audible.SearchResult{
		catalogResult("B000000001", "Slow Book", "Slow Author"),
	}

	start := time.Now()
	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "slow book",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Book.IsVirtual(), "timeout must degrade to a provisional record")
}

func TestSearch_DirectASINExtraction(t *testing.T) {
	svc := newTestServices(t)
	hit := testHit("The Way of Kings", "Brandon Sanderson", 7)
	hit.GUID = "release-B08G9PRS1K-remux"
	svc.indexer.hits = []domain.Hit{hit}
	svc.catalog.books["B08G9PRS1K"] = catalogBook("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson")

	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "way of kings",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "B08G9PRS1K", resp.Results[0].Book.ASIN)
	// Embedded identifier resolves without any strategy searches.
	assert.Zero(t, svc.catalog.searchCallCount())
}

func TestSearch_IndexerMisconfiguredSurfaces(t *testing.T) {
	svc := newTestServices(t)
	svc.indexer.err = apperrors.Misconfigured("indexer aggregator is not configured")

	_, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "anything",
		AvailableOnly: true,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMisconfigured))
}

func TestSearch_RankingOrdersByAuthorRelevance(t *testing.T) {
	svc := newTestServices(t, func(cfg *config.SearchConfig) {
		cfg.RankingEnabled = true
	})
	svc.indexer.hits = []domain.Hit{
		testHit("Elantris", "Brian Sanderson", 5),
		testHit("The Way of Kings", "Brandon Sanderson", 42),
	}
	svc.catalog.results["*"] = []audible.SearchResult{
		catalogResult("B000ELANTR", "Elantris", "Brian Sanderson"),
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}

	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "Brandon Sanderson",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Ranked)
	assert.Empty(t, resp.Results)

	top := resp.Ranked[0]
	assert.Equal(t, "B08G9PRS1K", top.Book.ASIN)
	assert.Equal(t, "exact", top.MatchType)
	assert.GreaterOrEqual(t, top.AuthorScore, 95.0)
}

func TestSearch_EnrichmentAppliesToVirtualBooks(t *testing.T) {
	svc := newTestServices(t)
	svc.indexer.hits = []domain.Hit{testHit("Obscure Book", "Jane Doe", 2)}
	svc.metadata.meta["Obscure Book|Jane Doe"] = &fakeEnrichment

	resp, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "obscure book",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	book := resp.Results[0].Book
	assert.Equal(t, "https://img.example/enriched.jpg", book.CoverURL)
	assert.Equal(t, []string{"Jane A. Doe"}, book.Authors)
}

func TestSearch_PassthroughCachesResultPages(t *testing.T) {
	svc := newTestServices(t)
	svc.catalog.results["way of kings"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}
	ctx := context.Background()

	for range 2 {
		resp, err := svc.search.Search(ctx, SearchParams{Query: "way of kings"})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
	}
	assert.Equal(t, 1, svc.catalog.searchCallCount(), "repeat query must be served from cache")

	// A different page is a different cache entry.
	_, err := svc.search.Search(ctx, SearchParams{Query: "way of kings", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.catalog.searchCallCount())
}

func TestSearch_PassthroughErrorNotCached(t *testing.T) {
	svc := newTestServices(t)
	svc.catalog.searchErr = apperrors.Unavailable("catalog down")

	ctx := context.Background()
	_, err := svc.search.Search(ctx, SearchParams{Query: "way of kings"})
	require.Error(t, err)

	// The catalog recovers; the next call must go through.
	svc.catalog.searchErr = nil
	svc.catalog.results["way of kings"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}
	resp, err := svc.search.Search(ctx, SearchParams{Query: "way of kings"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
}

func TestSearch_LookupConcurrencyBounded(t *testing.T) {
	svc := newTestServices(t, func(cfg *config.SearchConfig) {
		cfg.MaxConcurrent = 2
	})
	// Distinct identities the catalog cannot match, so every hit sweeps
	// all racing strategies plus the relaxed tier.
	svc.indexer.hits = []domain.Hit{
		testHit("Alpha Book", "Author One", 1),
		testHit("Beta Book", "Author Two", 2),
		testHit("Gamma Book", "Author Three", 3),
		testHit("Delta Book", "Author Four", 4),
		testHit("Epsilon Book", "Author Five", 5),
		testHit("Zeta Book", "Author Six", 6),
	}
	svc.catalog.delay = 20 * time.Millisecond

	_, err := svc.search.Search(context.Background(), SearchParams{
		Query:         "anything",
		AvailableOnly: true,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, svc.catalog.maxConcurrentCalls(), 2,
		"in-flight catalog lookups must stay within the configured bound")
}

func TestSearch_Suggest(t *testing.T) {
	svc := newTestServices(t)
	svc.catalog.suggestions = []string{"The Way of Kings", "Words of Radiance"}

	got, err := svc.search.Suggest(context.Background(), "", "way")
	require.NoError(t, err)
	assert.Equal(t, []string{"The Way of Kings", "Words of Radiance"}, got)

	_, err = svc.search.Suggest(context.Background(), audible.Region("mars"), "way")
	require.Error(t, err)
}

func TestSearch_SuggestCachesPerPrefix(t *testing.T) {
	svc := newTestServices(t)
	svc.catalog.suggestions = []string{"The Way of Kings"}
	ctx := context.Background()

	for range 2 {
		_, err := svc.search.Suggest(ctx, "", "way")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, svc.catalog.suggestCallCount(), "repeat prefix must be served from cache")

	_, err := svc.search.Suggest(ctx, "", "wor")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.catalog.suggestCallCount())
}

func TestSearch_FlushCaches(t *testing.T) {
	svc := newTestServices(t)
	svc.catalog.results["way of kings"] = []audible.SearchResult{
		catalogResult("B08G9PRS1K", "The Way of Kings", "Brandon Sanderson"),
	}
	ctx := context.Background()

	_, err := svc.search.Search(ctx, SearchParams{Query: "way of kings"})
	require.NoError(t, err)

	svc.search.FlushCaches()
	assert.True(t, svc.indexer.flushed)

	_, err = svc.search.Search(ctx, SearchParams{Query: "way of kings"})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.catalog.searchCallCount(), "flush must drop the catalog result cache")
}
