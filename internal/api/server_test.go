package api

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/indexer/prowlarr"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/metadata/googlebooks"
	"github.com/audiobookrequest/abr-server/internal/service"
	"github.com/audiobookrequest/abr-server/internal/store/sqlite"
)

// stubCatalog answers any search with fixed results and serves books by ASIN.
type stubCatalog struct {
	books   map[string]*audible.Book
	results []audible.SearchResult
}

func (c *stubCatalog) Search(_ context.Context, _ audible.Region, _ audible.SearchParams) ([]audible.SearchResult, error) {
	return c.results, nil
}

func (c *stubCatalog) GetBook(_ context.Context, _ audible.Region, asin string) (*audible.Book, error) {
	if b, ok := c.books[asin]; ok {
		return b, nil
	}
	return nil, audible.ErrNotFound
}

func (c *stubCatalog) Suggest(_ context.Context, _ audible.Region, _ string) ([]string, error) {
	return []string{"The Way of Kings", "Words of Radiance"}, nil
}

// stubIndexer serves fixed hits, or an error when set.
type stubIndexer struct {
	hits       []domain.Hit
	err        error
	configured bool
}

func (i *stubIndexer) Search(_ context.Context, _ string, _ prowlarr.SearchOptions) ([]domain.Hit, error) {
	if i.err != nil {
		return nil, i.err
	}
	return i.hits, nil
}

func (i *stubIndexer) Configured() bool { return i.configured }
func (i *stubIndexer) FlushCache()      {}

// stubMetadata never finds anything.
type stubMetadata struct{}

func (stubMetadata) Lookup(_ context.Context, _, _ string) (*googlebooks.Metadata, error) {
	return nil, googlebooks.ErrNoResults
}

type testServer struct {
	*Server
	api     humatest.TestAPI
	store   *sqlite.Store
	catalog *stubCatalog
	indexer *stubIndexer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	catalog := &stubCatalog{books: make(map[string]*audible.Book)}
	indexer := &stubIndexer{configured: true}

	cfg := config.SearchConfig{
		MaxConcurrent:     4,
		HitTimeout:        2 * time.Second,
		SecondaryScoring:  true,
		AuthorThreshold:   70,
		FuzzyMatchTTL:     time.Hour,
		RankingTTL:        30 * time.Minute,
		UpgradeAttemptTTL: 24 * time.Hour,
		CatalogResultTTL:  30 * time.Minute,
		SuggestionTTL:     time.Hour,
	}

	v := service.NewVerifier(cfg.FuzzyMatchTTL)
	upgrades := service.NewUpgradeService(st, catalog, v, cfg, audible.RegionUS, logger)
	enricher := service.NewEnrichmentService(st, stubMetadata{}, config.EnrichmentConfig{Enabled: true, CacheExpiryDays: 30}, logger)
	search := service.NewSearchService(st, catalog, indexer, enricher, upgrades, v, cfg, audible.RegionUS, logger)
	requests := service.NewRequestService(st, catalog, audible.RegionUS, logger)

	s := NewServer(st, &Services{
		Search:     search,
		Request:    requests,
		Enrichment: enricher,
	}, logger)

	return &testServer{
		Server:  s,
		api:     humatest.Wrap(t, s.api),
		store:   st,
		catalog: catalog,
		indexer: indexer,
	}
}

// listing builds a catalog search result for stubs.
func listing(asin, title, author string) audible.SearchResult {
	return audible.SearchResult{
		ASIN:    asin,
		Title:   title,
		Authors: []audible.Contributor{{Name: author, Role: "author"}},
	}
}

// record builds a full catalog record for stubs.
func record(asin, title, author string) *audible.Book {
	return &audible.Book{
		ASIN:    asin,
		Title:   title,
		Authors: []audible.Contributor{{Name: author, Role: "author"}},
	}
}
