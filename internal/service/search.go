package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/audiobookrequest/abr-server/internal/asin"
	"github.com/audiobookrequest/abr-server/internal/cache"
	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/domain"
	apperrors "github.com/audiobookrequest/abr-server/internal/errors"
	"github.com/audiobookrequest/abr-server/internal/indexer/prowlarr"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/normalize"
	"github.com/audiobookrequest/abr-server/internal/rank"
	"github.com/audiobookrequest/abr-server/internal/store"
)

// staleBookRetention is how long an unrequested provisional book survives
// after its last indexer sighting before cleanup removes it.
const staleBookRetention = 7 * 24 * time.Hour

// defaultResultLimit applies when a search request does not specify one.
const defaultResultLimit = 20

// SearchParams describes one search request.
type SearchParams struct {
	Query         string
	Limit         int
	Page          int
	Region        audible.Region
	AvailableOnly bool
}

// SearchResponse carries either plain or relevance-ranked results. Ranked
// is populated instead of Results when ranking applies.
type SearchResponse struct {
	Results []domain.SearchResult       `json:"results,omitempty"`
	Ranked  []domain.RankedSearchResult `json:"ranked,omitempty"`
}

// SearchService orchestrates availability-aware search: indexer fan-out,
// per-hit catalog resolution, provisional synthesis, enrichment and
// ranking.
type SearchService struct {
	store    store.Store
	catalog  CatalogClient
	indexer  IndexerClient
	enricher *EnrichmentService
	upgrades *UpgradeService
	verifier *Verifier
	logger   *slog.Logger

	cfg    config.SearchConfig
	region audible.Region

	// sem bounds simultaneous canonical-catalog lookups across all
	// in-flight hits; a permit is acquired per lookup, not per hit.
	sem *semaphore.Weighted

	catalogResults *cache.Cache[string, []audible.SearchResult]
	suggestions    *cache.Cache[string, []string]
	rankings       *cache.Cache[string, []rank.Entry]
}

// NewSearchService creates the search orchestrator.
func NewSearchService(
	st store.Store,
	catalog CatalogClient,
	indexer IndexerClient,
	enricher *EnrichmentService,
	upgrades *UpgradeService,
	v *Verifier,
	cfg config.SearchConfig,
	region audible.Region,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		store:    st,
		catalog:  catalog,
		indexer:  indexer,
		enricher: enricher,
		upgrades: upgrades,
		verifier: v,
		logger:   logger,
		cfg:      cfg,
		region:   region,

		sem:            semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		catalogResults: cache.New[string, []audible.SearchResult](),
		suggestions:    cache.New[string, []string](),
		rankings:       cache.New[string, []rank.Entry](),
	}
}

// Search runs a catalog or availability-aware search depending on params.
func (s *SearchService) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	region := params.Region
	if region == "" {
		region = s.region
	}
	if !region.Valid() {
		return nil, apperrors.Validationf("invalid region %q", params.Region)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultResultLimit
	}

	if params.Query == "" || !params.AvailableOnly {
		return s.catalogSearch(ctx, region, params.Query, limit, params.Page)
	}

	books, err := s.availabilitySearch(ctx, region, params.Query, limit)
	if err != nil {
		return nil, err
	}

	if s.cfg.RankingEnabled {
		return s.rankedResponse(ctx, books, params.Query)
	}
	return s.plainResponse(ctx, books), nil
}

// Suggest returns catalog title suggestions for a partial query.
func (s *SearchService) Suggest(ctx context.Context, region audible.Region, prefix string) ([]string, error) {
	if region == "" {
		region = s.region
	}
	if !region.Valid() {
		return nil, apperrors.Validationf("invalid region %q", region)
	}

	key := string(region) + "|" + prefix
	if cached, ok := s.suggestions.Get(s.cfg.SuggestionTTL, key); ok {
		return cached, nil
	}
	got, err := s.catalog.Suggest(ctx, region, prefix)
	if err != nil {
		return nil, err
	}
	if ctx.Err() == nil {
		s.suggestions.Set(got, key)
	}
	return got, nil
}

// IndexerConfigured reports whether the availability source has the
// settings it needs for availability-aware search.
func (s *SearchService) IndexerConfigured() bool {
	return s.indexer.Configured()
}

// FlushCaches drops the volatile search caches: indexer results, catalog
// results, suggestions, fuzzy verdicts and rankings.
func (s *SearchService) FlushCaches() {
	s.indexer.FlushCache()
	s.catalogResults.Flush()
	s.suggestions.Flush()
	s.verifier.verdicts.Flush()
	s.rankings.Flush()
}

// catalogSearch is the passthrough mode: results come from the canonical
// catalog, cached per query page, with stored requests attached.
func (s *SearchService) catalogSearch(ctx context.Context, region audible.Region, query string, limit, page int) (*SearchResponse, error) {
	key := fmt.Sprintf("%s|%s|%d|%d", region, query, limit, page)
	results, ok := s.catalogResults.Get(s.cfg.CatalogResultTTL, key)
	if !ok {
		var err error
		results, err = s.catalog.Search(ctx, region, audible.SearchParams{
			Keywords: query,
			Limit:    limit,
			Page:     page,
		})
		if err != nil {
			return nil, fmt.Errorf("catalog search: %w", err)
		}
		if ctx.Err() == nil {
			s.catalogResults.Set(results, key)
		}
	}

	books := make([]domain.Book, 0, len(results))
	for i := range results {
		books = append(books, *fromCatalogResult(&results[i]))
	}
	return s.plainResponse(ctx, books), nil
}

// availabilitySearch is the availability-first mode: fan out over indexer
// hits, resolve each to a canonical or provisional book, merge duplicate
// sightings and enrich what is provisional.
func (s *SearchService) availabilitySearch(ctx context.Context, region audible.Region, query string, limit int) ([]domain.Book, error) {
	if removed, err := s.store.CleanupStaleBooks(ctx, time.Now().Add(-staleBookRetention)); err != nil {
		s.logger.Warn("stale book cleanup failed", "error", err)
	} else if removed > 0 {
		s.logger.Debug("removed stale provisional books", "count", removed)
	}

	hits, err := s.indexer.Search(ctx, query, prowlarr.SearchOptions{Limit: limit})
	if err != nil {
		return nil, err
	}

	unique := dedupeHits(hits)
	s.logger.Info("availability search fan-out",
		"query", query,
		"hits", len(hits),
		"unique", len(unique),
	)

	resolved := make([]*domain.Book, len(unique))
	var wg sync.WaitGroup
	for i := range unique {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resolved[i] = s.resolveHitWithTimeout(ctx, region, &unique[i], query)
		}()
	}
	wg.Wait()

	books := mergeResolved(resolved, unique)

	if s.enricher != nil {
		s.enricher.EnrichBooks(ctx, books)
	}
	s.persistProvisional(ctx, books)

	return books, nil
}

// dedupeHits collapses hits with the same normalized (title, author)
// identity, keeping the first sighting of each. Later sightings still
// contribute their availability signals to the kept hit: maximum seed
// count and sticky freeleech.
func dedupeHits(hits []domain.Hit) []domain.Hit {
	index := make(map[string]int, len(hits))
	unique := make([]domain.Hit, 0, len(hits))
	for i := range hits {
		key := normalize.Key(hits[i].Title, hits[i].Author)
		if at, ok := index[key]; ok {
			kept := &unique[at]
			if hits[i].Seeders > kept.Seeders {
				kept.Seeders = hits[i].Seeders
			}
			kept.Freeleech = kept.Freeleech || hits[i].Freeleech
			continue
		}
		index[key] = len(unique)
		unique = append(unique, hits[i])
	}
	return unique
}

// resolveHitWithTimeout resolves one hit under the per-hit deadline. Any
// failure mode, including the deadline, degrades to a provisional record
// so one slow hit never sinks the search.
func (s *SearchService) resolveHitWithTimeout(ctx context.Context, region audible.Region, hit *domain.Hit, query string) *domain.Book {
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HitTimeout)
	defer cancel()

	if book := s.resolveHit(hctx, region, hit); book != nil {
		return book
	}

	if hctx.Err() != nil && ctx.Err() == nil {
		s.logger.Warn("hit resolution timed out, synthesizing provisional record",
			"title", hit.Title,
			"author", hit.Author,
		)
	}
	return virtualBook(hit, asin.Virtual(hit.Title, hit.Author))
}

// resolveHit maps an indexer hit to a book: stored provisional upgrade,
// embedded ASIN, racing query strategies on the strict tier, then the
// relaxed tier on the primary strategy. Returns nil when nothing matched.
// Every catalog call goes through the shared lookup gate so simultaneous
// lookups never exceed the configured bound, no matter how many
// strategies are in flight.
func (s *SearchService) resolveHit(ctx context.Context, region audible.Region, hit *domain.Hit) *domain.Book {
	if book, ok := s.checkUpgrade(ctx, hit); ok {
		return book
	}

	if extracted := asin.Extract(hit); extracted != "" {
		if book, err := s.gatedGetBook(ctx, region, extracted); err == nil {
			s.logger.Debug("resolved hit by embedded identifier",
				"title", hit.Title,
				"asin", extracted,
			)
			return fromCatalogBook(book)
		}
	}

	if book := s.raceStrategies(ctx, region, hit); book != nil {
		return book
	}

	// Relaxed tier, primary strategy only.
	results, err := s.gatedSearch(ctx, region, audible.SearchParams{
		Keywords: hitStrategies(hit)[0],
		Limit:    strategyResultLimit,
	})
	if err != nil {
		return nil
	}
	for i := range results {
		candidate := fromCatalogResult(&results[i])
		if s.verifier.verify(ctx, hit, candidate, false) {
			s.logger.Warn("hit matched on relaxed tier",
				"hit_title", hit.Title,
				"candidate", candidate.Title,
			)
			return candidate
		}
	}
	return nil
}

// raceStrategies runs all query strategies concurrently on the strict
// tier and returns the first verified candidate, cancelling the rest.
func (s *SearchService) raceStrategies(ctx context.Context, region audible.Region, hit *domain.Hit) *domain.Book {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	strategies := hitStrategies(hit)
	found := make(chan *domain.Book, len(strategies))

	var wg sync.WaitGroup
	for _, query := range strategies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := s.gatedSearch(rctx, region, audible.SearchParams{
				Keywords: query,
				Limit:    strategyResultLimit,
			})
			if err != nil {
				return
			}
			for i := range results {
				candidate := fromCatalogResult(&results[i])
				if s.verifier.verify(rctx, hit, candidate, true) {
					select {
					case found <- candidate:
						cancel()
					default:
					}
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(found)
	}()

	if book, ok := <-found; ok {
		return book
	}
	return nil
}

// gatedSearch runs one catalog search under the shared lookup gate. The
// permit is held only for the duration of the call, so queued lookups
// proceed as soon as one finishes.
func (s *SearchService) gatedSearch(ctx context.Context, region audible.Region, params audible.SearchParams) ([]audible.SearchResult, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.catalog.Search(ctx, region, params)
}

// gatedGetBook fetches one catalog record under the shared lookup gate.
func (s *SearchService) gatedGetBook(ctx context.Context, region audible.Region, bookASIN string) (*audible.Book, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.catalog.GetBook(ctx, region, bookASIN)
}

// checkUpgrade runs the upgrade engine under one gate permit. Its
// strategy sweep issues catalog lookups sequentially, so a single permit
// keeps the sweep inside the shared bound.
func (s *SearchService) checkUpgrade(ctx context.Context, hit *domain.Hit) (*domain.Book, bool) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	defer s.sem.Release(1)
	return s.upgrades.CheckAndUpgrade(ctx, hit)
}

// mergeResolved collapses resolved books by ASIN, folding availability
// signals from every sighting: maximum seed count, sticky freeleech, and
// the hit's publish date as the last indexer sighting.
func mergeResolved(resolved []*domain.Book, hits []domain.Hit) []domain.Book {
	byASIN := make(map[string]*domain.Book, len(resolved))
	order := make([]string, 0, len(resolved))

	for i, book := range resolved {
		if book == nil {
			continue
		}
		hit := &hits[i]

		if existing, ok := byASIN[book.ASIN]; ok {
			existing.MergeAvailability(hit.Seeders, hit.Freeleech)
			continue
		}

		book.SeedCount = hit.Seeders
		book.Freeleech = hit.Freeleech
		if !hit.PublishDate.IsZero() {
			seen := hit.PublishDate
			book.LastIndexerQuery = &seen
		}
		byASIN[book.ASIN] = book
		order = append(order, book.ASIN)
	}

	books := make([]domain.Book, 0, len(order))
	for _, a := range order {
		books = append(books, *byASIN[a])
	}
	return books
}

// persistProvisional stores provisional records so later searches can
// find and upgrade them. Persistence failures degrade to in-memory
// results rather than failing the search.
func (s *SearchService) persistProvisional(ctx context.Context, books []domain.Book) {
	for i := range books {
		if !books[i].IsVirtual() {
			continue
		}
		if err := s.store.UpsertBook(ctx, &books[i]); err != nil {
			s.logger.Error("persist provisional book failed, keeping in-memory result",
				"asin", books[i].ASIN,
				"error", err,
			)
		}
	}
}

// plainResponse attaches stored requests to each book.
func (s *SearchService) plainResponse(ctx context.Context, books []domain.Book) *SearchResponse {
	results := make([]domain.SearchResult, 0, len(books))
	for i := range books {
		results = append(results, domain.SearchResult{
			Book:     &books[i],
			Requests: s.requestsFor(ctx, books[i].ASIN),
		})
	}
	return &SearchResponse{Results: results}
}

// rankedResponse orders results by author relevance to the query.
func (s *SearchService) rankedResponse(ctx context.Context, books []domain.Book, query string) (*SearchResponse, error) {
	key := s.rankingKey(books, query)

	entries, ok := s.rankings.Get(s.cfg.RankingTTL, key)
	if !ok {
		entries = rank.Rank(books, query, rank.Options{
			SecondaryScoring: s.cfg.SecondaryScoring,
			Now:              time.Now(),
		})
		if ctx.Err() == nil {
			s.rankings.Set(entries, key)
		}
	}

	ranked := make([]domain.RankedSearchResult, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		ranked = append(ranked, domain.RankedSearchResult{
			SearchResult: domain.SearchResult{
				Book:     &e.Book,
				Requests: s.requestsFor(ctx, e.Book.ASIN),
			},
			RelevanceScore:   e.Score,
			AuthorScore:      e.AuthorScore,
			SecondaryScore:   e.SecondaryScore,
			MatchType:        string(e.MatchType),
			MatchExplanation: e.Explanation,
			IsBestMatch:      e.IsBestMatch,
		})
	}
	return &SearchResponse{Ranked: ranked}, nil
}

// rankingKey fingerprints a result set plus the knobs that influence its
// ordering, so a config change never serves a stale ranking.
func (s *SearchService) rankingKey(books []domain.Book, query string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%t|%g|", query, s.cfg.SecondaryScoring, s.cfg.AuthorThreshold)
	for i := range books {
		h.Write([]byte(books[i].ASIN))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (s *SearchService) requestsFor(ctx context.Context, bookASIN string) []domain.Request {
	requests, err := s.store.ListRequestsForBook(ctx, bookASIN)
	if err != nil {
		s.logger.Warn("list requests for book", "asin", bookASIN, "error", err)
		return nil
	}
	return requests
}
