// Package service provides the business logic layer: search orchestration,
// provisional-record upgrades, enrichment, and request management.
package service

import (
	"context"

	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/indexer/prowlarr"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/metadata/googlebooks"
)

// CatalogClient is the canonical catalog surface the services depend on.
// *audible.Client satisfies it.
type CatalogClient interface {
	Search(ctx context.Context, region audible.Region, params audible.SearchParams) ([]audible.SearchResult, error)
	GetBook(ctx context.Context, region audible.Region, asin string) (*audible.Book, error)
	Suggest(ctx context.Context, region audible.Region, prefix string) ([]string, error)
}

// IndexerClient is the availability source. *prowlarr.Client satisfies it.
type IndexerClient interface {
	Search(ctx context.Context, query string, opts prowlarr.SearchOptions) ([]domain.Hit, error)
	Configured() bool
	FlushCache()
}

// MetadataClient is the enrichment lookup surface. *googlebooks.Client
// satisfies it.
type MetadataClient interface {
	Lookup(ctx context.Context, title, author string) (*googlebooks.Metadata, error)
}

// fromCatalogBook converts a full catalog record into the domain model.
func fromCatalogBook(b *audible.Book) *domain.Book {
	book := &domain.Book{
		ASIN:           b.ASIN,
		Title:          b.Title,
		Subtitle:       b.Subtitle,
		Authors:        contributorNames(b.Authors),
		Narrators:      contributorNames(b.Narrators),
		CoverURL:       b.CoverURL,
		RuntimeMinutes: b.RuntimeMinutes,
	}
	if !b.ReleaseDate.IsZero() {
		release := b.ReleaseDate
		book.ReleaseDate = &release
	}
	return book
}

// fromCatalogResult converts a catalog search listing into the domain model.
func fromCatalogResult(r *audible.SearchResult) *domain.Book {
	book := &domain.Book{
		ASIN:           r.ASIN,
		Title:          r.Title,
		Subtitle:       r.Subtitle,
		Authors:        contributorNames(r.Authors),
		Narrators:      contributorNames(r.Narrators),
		CoverURL:       r.CoverURL,
		RuntimeMinutes: r.RuntimeMinutes,
	}
	if !r.ReleaseDate.IsZero() {
		release := r.ReleaseDate
		book.ReleaseDate = &release
	}
	return book
}

func contributorNames(contributors []audible.Contributor) []string {
	names := make([]string, 0, len(contributors))
	for _, c := range contributors {
		names = append(names, c.Name)
	}
	return names
}

// virtualBook synthesizes a provisional record from an indexer hit. The
// hit's publish date stands in for the release date; runtime is unknown.
func virtualBook(hit *domain.Hit, id string) *domain.Book {
	book := &domain.Book{
		ASIN:    id,
		Title:   hit.Title,
		Authors: []string{hit.Author},
	}
	if !hit.PublishDate.IsZero() {
		release := hit.PublishDate
		book.ReleaseDate = &release
	}
	return book
}
