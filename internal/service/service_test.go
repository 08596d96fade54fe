package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/indexer/prowlarr"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/metadata/googlebooks"
	"github.com/audiobookrequest/abr-server/internal/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlite.Open(dbPath, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		MaxConcurrent:     4,
		HitTimeout:        2 * time.Second,
		RankingEnabled:    false,
		SecondaryScoring:  true,
		AuthorThreshold:   70,
		FuzzyMatchTTL:     time.Hour,
		RankingTTL:        30 * time.Minute,
		UpgradeAttemptTTL: 24 * time.Hour,
		CatalogResultTTL:  30 * time.Minute,
		SuggestionTTL:     time.Hour,
	}
}

// fakeCatalog is an in-memory CatalogClient. Search results are keyed by
// the keywords string; the "*" key answers any query.
type fakeCatalog struct {
	mu          sync.Mutex
	books       map[string]*audible.Book
	results     map[string][]audible.SearchResult
	suggestions []string
	searchErr   error
	delay       time.Duration

	searchCalls  []string
	getCalls     []string
	suggestCalls int

	inFlight    int
	maxInFlight int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		books:   make(map[string]*audible.Book),
		results: make(map[string][]audible.SearchResult),
	}
}

// begin and end bracket one in-flight call, tracking the high-water mark.
func (f *fakeCatalog) begin() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
}

func (f *fakeCatalog) end() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeCatalog) Search(ctx context.Context, region audible.Region, params audible.SearchParams) ([]audible.SearchResult, error) {
	f.begin()
	defer f.end()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, params.Keywords)
	err := f.searchErr
	var results []audible.SearchResult
	if r, ok := f.results[params.Keywords]; ok {
		results = r
	} else {
		results = f.results["*"]
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return results, nil
}

func (f *fakeCatalog) GetBook(ctx context.Context, region audible.Region, bookASIN string) (*audible.Book, error) {
	f.begin()
	defer f.end()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.getCalls = append(f.getCalls, bookASIN)
	book := f.books[bookASIN]
	f.mu.Unlock()

	if book == nil {
		return nil, audible.ErrNotFound
	}
	return book, nil
}

func (f *fakeCatalog) Suggest(ctx context.Context, region audible.Region, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestCalls++
	return f.suggestions, nil
}

func (f *fakeCatalog) searchCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchCalls)
}

func (f *fakeCatalog) suggestCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suggestCalls
}

func (f *fakeCatalog) maxConcurrentCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// fakeIndexer is an in-memory IndexerClient.
type fakeIndexer struct {
	hits       []domain.Hit
	err        error
	configured bool
	flushed    bool
}

func (f *fakeIndexer) Search(ctx context.Context, query string, opts prowlarr.SearchOptions) ([]domain.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndexer) Configured() bool { return f.configured }
func (f *fakeIndexer) FlushCache()      { f.flushed = true }

// fakeMetadata is an in-memory MetadataClient keyed by "title|author".
type fakeMetadata struct {
	mu      sync.Mutex
	meta    map[string]*googlebooks.Metadata
	err     error
	lookups int
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{meta: make(map[string]*googlebooks.Metadata)}
}

func (f *fakeMetadata) Lookup(ctx context.Context, title, author string) (*googlebooks.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.meta[title+"|"+author]; ok {
		return m, nil
	}
	return nil, googlebooks.ErrNoResults
}

func (f *fakeMetadata) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

// catalogResult builds a minimal catalog listing for fakes.
func catalogResult(bookASIN, title string, authors ...string) audible.SearchResult {
	r := audible.SearchResult{
		ASIN:  bookASIN,
		Title: title,
	}
	for _, a := range authors {
		r.Authors = append(r.Authors, audible.Contributor{Name: a, Role: "author"})
	}
	return r
}

// catalogBook builds a minimal full catalog record for fakes.
func catalogBook(bookASIN, title string, authors ...string) *audible.Book {
	b := &audible.Book{
		ASIN:  bookASIN,
		Title: title,
	}
	for _, a := range authors {
		b.Authors = append(b.Authors, audible.Contributor{Name: a, Role: "author"})
	}
	return b
}

// testHit builds an indexer hit.
func testHit(title, author string, seeders int) domain.Hit {
	return domain.Hit{
		Title:       title,
		Author:      author,
		Narrator:    "Unknown",
		Seeders:     seeders,
		GUID:        "guid-" + title,
		Indexer:     "MAM",
		IndexerID:   1,
		PublishDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

// services bundles everything a search test needs.
type services struct {
	store    *sqlite.Store
	catalog  *fakeCatalog
	indexer  *fakeIndexer
	metadata *fakeMetadata
	search   *SearchService
	upgrades *UpgradeService
	enricher *EnrichmentService
	requests *RequestService
}

func newTestServices(t *testing.T, mutate ...func(*config.SearchConfig)) *services {
	t.Helper()

	st := newTestStore(t)
	catalog := newFakeCatalog()
	indexer := &fakeIndexer{configured: true}
	metadata := newFakeMetadata()
	logger := testLogger()

	cfg := testSearchConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	v := NewVerifier(cfg.FuzzyMatchTTL)
	upgrades := NewUpgradeService(st, catalog, v, cfg, audible.RegionUS, logger)
	enricher := NewEnrichmentService(st, metadata, config.EnrichmentConfig{Enabled: true, CacheExpiryDays: 30}, logger)
	search := NewSearchService(st, catalog, indexer, enricher, upgrades, v, cfg, audible.RegionUS, logger)
	requests := NewRequestService(st, catalog, audible.RegionUS, logger)

	return &services{
		store:    st,
		catalog:  catalog,
		indexer:  indexer,
		metadata: metadata,
		search:   search,
		upgrades: upgrades,
		enricher: enricher,
		requests: requests,
	}
}
