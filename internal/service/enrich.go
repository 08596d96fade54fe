package service

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/metadata/googlebooks"
	"github.com/audiobookrequest/abr-server/internal/store"
)

// maxEnrichmentConcurrency bounds parallel metadata lookups per search.
const maxEnrichmentConcurrency = 4

// descriptionLimit is the longest description stored in the subtitle field.
const descriptionLimit = 200

// EnrichmentService fills in metadata for provisional books using an
// external provider, with a persistent cache in front of it.
type EnrichmentService struct {
	store  store.MetadataCacheStore
	client MetadataClient
	logger *slog.Logger
	cfg    config.EnrichmentConfig
}

// NewEnrichmentService creates an enrichment service.
func NewEnrichmentService(store store.MetadataCacheStore, client MetadataClient, cfg config.EnrichmentConfig, logger *slog.Logger) *EnrichmentService {
	return &EnrichmentService{
		store:  store,
		client: client,
		logger: logger,
		cfg:    cfg,
	}
}

// Enabled reports whether enrichment should run at all.
func (s *EnrichmentService) Enabled() bool {
	return s.cfg.Enabled
}

func (s *EnrichmentService) cacheMaxAge() time.Duration {
	return time.Duration(s.cfg.CacheExpiryDays) * 24 * time.Hour
}

// EnrichBooks enriches every provisional book in the slice in place, with
// bounded parallelism. Canonical books and failures are left untouched;
// enrichment is strictly best-effort.
func (s *EnrichmentService) EnrichBooks(ctx context.Context, books []domain.Book) {
	if !s.cfg.Enabled {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxEnrichmentConcurrency)

	for i := range books {
		if !books[i].IsVirtual() {
			continue
		}
		g.Go(func() error {
			if err := s.enrichBook(gctx, &books[i]); err != nil {
				s.logger.Error("enrichment failed",
					"asin", books[i].ASIN,
					"title", books[i].Title,
					"error", err,
				)
			}
			return nil
		})
	}
	g.Wait()
}

// enrichBook resolves metadata for one provisional book, consulting the
// persistent cache before the provider, and applies it in place.
func (s *EnrichmentService) enrichBook(ctx context.Context, book *domain.Book) error {
	if len(book.Authors) == 0 {
		return nil
	}

	searchKey := googlebooks.SearchKey(book.Title, book.Authors[0])

	cached, err := s.store.GetMetadata(ctx, searchKey, googlebooks.Provider, s.cacheMaxAge())
	if err != nil {
		return fmt.Errorf("read metadata cache: %w", err)
	}
	if cached != nil {
		var meta googlebooks.Metadata
		if err := json.Unmarshal(cached, &meta); err != nil {
			return fmt.Errorf("decode cached metadata: %w", err)
		}
		applyMetadata(book, &meta)
		return nil
	}

	meta, err := s.client.Lookup(ctx, book.Title, book.Authors[0])
	if err != nil {
		if errors.Is(err, googlebooks.ErrNoResults) {
			// Cache the miss so the provider is not hammered for books
			// it does not know.
			s.cacheMetadata(ctx, searchKey, &googlebooks.Metadata{Provider: googlebooks.Provider})
			return nil
		}
		return fmt.Errorf("provider lookup: %w", err)
	}

	s.cacheMetadata(ctx, searchKey, meta)
	applyMetadata(book, meta)
	return nil
}

func (s *EnrichmentService) cacheMetadata(ctx context.Context, searchKey string, meta *googlebooks.Metadata) {
	data, err := json.Marshal(meta)
	if err != nil {
		s.logger.Error("marshal metadata", "error", err)
		return
	}
	if err := s.store.SetMetadata(ctx, searchKey, googlebooks.Provider, data); err != nil {
		s.logger.Error("write metadata cache", "search_key", searchKey, "error", err)
	}
}

// ClearCache drops cached provider metadata. An empty provider clears all
// providers.
func (s *EnrichmentService) ClearCache(ctx context.Context, provider string) (int, error) {
	return s.store.ClearMetadata(ctx, provider)
}

// applyMetadata folds provider metadata into a book. The cover is only
// filled in when missing, the description lands in the subtitle field, and
// provider author names replace the parsed ones.
func applyMetadata(book *domain.Book, meta *googlebooks.Metadata) {
	if meta.CoverURL != "" && book.CoverURL == "" {
		book.CoverURL = meta.CoverURL
	}
	if meta.Description != "" && book.Subtitle == "" {
		desc := meta.Description
		if len(desc) > descriptionLimit {
			desc = desc[:descriptionLimit-3] + "..."
		}
		book.Subtitle = desc
	}
	if len(meta.Authors) > 0 {
		book.Authors = meta.Authors
	}
}
