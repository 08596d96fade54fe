package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/audiobookrequest/abr-server/internal/asin"
	"github.com/audiobookrequest/abr-server/internal/cache"
	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/store"
)

// strategyResultLimit is how many catalog candidates each query strategy
// considers during an upgrade check.
const strategyResultLimit = 10

// upgradeOutcome records the result of a completed upgrade attempt. An
// empty ASIN means the catalog was checked and had no acceptable match.
type upgradeOutcome struct {
	ASIN string
}

// UpgradeService promotes provisional books to canonical catalog records
// when a real match surfaces. Attempts against the same identity are
// serialized by an exclusive lease and their outcomes cached, so repeated
// sightings of an unmatchable book do not re-run the full strategy sweep.
type UpgradeService struct {
	store    store.Store
	leases   *store.Leaser
	catalog  CatalogClient
	verifier *Verifier
	logger   *slog.Logger

	region     audible.Region
	attempts   *cache.Cache[string, upgradeOutcome]
	attemptTTL time.Duration
}

// NewUpgradeService creates an upgrade service.
func NewUpgradeService(st store.Store, catalog CatalogClient, v *Verifier, cfg config.SearchConfig, region audible.Region, logger *slog.Logger) *UpgradeService {
	return &UpgradeService{
		store:      st,
		leases:     store.NewLeaser(),
		catalog:    catalog,
		verifier:   v,
		logger:     logger,
		region:     region,
		attempts:   cache.New[string, upgradeOutcome](),
		attemptTTL: cfg.UpgradeAttemptTTL,
	}
}

// CheckAndUpgrade looks for a stored provisional book matching the hit's
// identity and, if present, tries to upgrade it to a canonical record.
// Returns (book, true) when a stored record exists for this identity,
// upgraded or not; (nil, false) when the hit is unknown.
func (s *UpgradeService) CheckAndUpgrade(ctx context.Context, hit *domain.Hit) (*domain.Book, bool) {
	virtualID := asin.Virtual(hit.Title, hit.Author)

	release := s.leases.Lease(virtualID)
	defer release()

	existing, err := s.store.GetBook(ctx, virtualID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("lookup provisional book", "asin", virtualID, "error", err)
		}
		return nil, false
	}

	// A recent attempt already settled this identity.
	if outcome, ok := s.attempts.Get(s.attemptTTL, virtualID); ok {
		if outcome.ASIN == "" {
			return existing, true
		}
		if canonical, err := s.store.GetBook(ctx, outcome.ASIN); err == nil {
			return canonical, true
		}
		// The resolved record is gone; fall through and re-resolve.
	}

	canonical, err := s.findCanonical(ctx, hit)
	if err != nil {
		// Transient failure: keep the provisional record, cache nothing.
		s.logger.Warn("upgrade check failed",
			"asin", virtualID,
			"title", hit.Title,
			"error", err,
		)
		return existing, true
	}
	if canonical == nil {
		s.attempts.Set(upgradeOutcome{}, virtualID)
		return existing, true
	}

	return s.commitUpgrade(ctx, existing, canonical), true
}

// commitUpgrade swaps the provisional record for the canonical one,
// handling the race where another worker already created the canonical
// record.
func (s *UpgradeService) commitUpgrade(ctx context.Context, existing, canonical *domain.Book) *domain.Book {
	err := s.store.ReplaceBook(ctx, existing.ASIN, canonical)
	switch {
	case err == nil:
		s.logger.Info("upgraded provisional book",
			"virtual_asin", existing.ASIN,
			"asin", canonical.ASIN,
			"title", canonical.Title,
		)
	case errors.Is(err, store.ErrAlreadyExists):
		// Lost the race: the canonical record is already there and our
		// requests were migrated onto it. Converge on the stored copy.
		if stored, getErr := s.store.GetBook(ctx, canonical.ASIN); getErr == nil {
			canonical = stored
		}
	default:
		s.logger.Error("provisional upgrade rolled back",
			"virtual_asin", existing.ASIN,
			"asin", canonical.ASIN,
			"error", err,
		)
		// Make sure the provisional record survives a partial failure.
		if upsertErr := s.store.UpsertBook(ctx, existing); upsertErr != nil {
			s.logger.Error("recreate provisional book", "asin", existing.ASIN, "error", upsertErr)
		}
		return existing
	}

	s.attempts.Set(upgradeOutcome{ASIN: canonical.ASIN}, existing.ASIN)
	return canonical
}

// findCanonical resolves an indexer hit to a canonical catalog record, or
// nil when nothing acceptable exists. Resolution order: embedded ASIN,
// then each query strategy with the strict tier, falling back to the
// relaxed tier per candidate.
func (s *UpgradeService) findCanonical(ctx context.Context, hit *domain.Hit) (*domain.Book, error) {
	if extracted := asin.Extract(hit); extracted != "" {
		book, err := s.catalog.GetBook(ctx, s.region, extracted)
		if err == nil {
			return fromCatalogBook(book), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// An unknown or malformed embedded ASIN is not fatal; the query
		// strategies may still find the book.
	}

	for _, query := range hitStrategies(hit) {
		results, err := s.catalog.Search(ctx, s.region, audible.SearchParams{
			Keywords: query,
			Limit:    strategyResultLimit,
		})
		if err != nil {
			return nil, err
		}

		for i := range results {
			candidate := fromCatalogResult(&results[i])
			if s.verifier.verify(ctx, hit, candidate, true) {
				return candidate, nil
			}
			if s.verifier.verify(ctx, hit, candidate, false) {
				s.logger.Warn("provisional upgrade matched on relaxed tier",
					"hit_title", hit.Title,
					"candidate", candidate.Title,
				)
				return candidate, nil
			}
		}
	}

	return nil, nil
}
