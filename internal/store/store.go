// Package store defines the persistence interfaces for the audiobook
// request server. The sqlite subpackage provides the implementation.
package store

import (
	"context"
	"time"

	"github.com/audiobookrequest/abr-server/internal/domain"
)

// BookStore persists book records, both canonical and provisional.
type BookStore interface {
	// GetBook returns the book with the given ASIN, or ErrNotFound.
	GetBook(ctx context.Context, asin string) (*domain.Book, error)

	// UpsertBook inserts the book or updates an existing record in place.
	UpsertBook(ctx context.Context, book *domain.Book) error

	// ListBooks returns all stored books.
	ListBooks(ctx context.Context) ([]domain.Book, error)

	// DeleteBook removes a book; requests against it cascade.
	DeleteBook(ctx context.Context, asin string) error

	// ReplaceBook atomically replaces oldASIN with the canonical record,
	// migrating any requests to the new ASIN. Returns ErrAlreadyExists
	// when the canonical ASIN is already present, in which case requests
	// are migrated to the existing record and the provisional one removed.
	ReplaceBook(ctx context.Context, oldASIN string, book *domain.Book) error

	// MergeAvailability folds an availability sighting into the stored
	// record: maximum seed count, sticky freeleech, and the most recent
	// indexer query time.
	MergeAvailability(ctx context.Context, asin string, seeders int, freeleech bool, queriedAt time.Time) error

	// CleanupStaleBooks deletes provisional books that have no requests
	// and were last seen on an indexer before the cutoff. Returns the
	// number of rows removed.
	CleanupStaleBooks(ctx context.Context, cutoff time.Time) (int, error)
}

// RequestStore persists user requests against books.
type RequestStore interface {
	// CreateRequest records a user's interest in a book. Returns
	// ErrAlreadyExists when the same user already requested the ASIN.
	CreateRequest(ctx context.Context, req *domain.Request) error

	// DeleteRequest removes a request by ID, or ErrNotFound.
	DeleteRequest(ctx context.Context, id string) error

	// ListRequestsForBook returns all requests against one ASIN.
	ListRequestsForBook(ctx context.Context, asin string) ([]domain.Request, error)

	// ListRequestsByUser returns all requests made by one user.
	ListRequestsByUser(ctx context.Context, username string) ([]domain.Request, error)

	// Wishlist returns every requested book with its requesters, most
	// recently requested first.
	Wishlist(ctx context.Context) ([]domain.WishlistEntry, error)

	// WishlistCounts summarizes requested books by download state.
	WishlistCounts(ctx context.Context) (*domain.WishlistCounts, error)
}

// MetadataCacheStore persists enrichment lookups from external metadata
// providers. Entries carry raw JSON payloads so providers can evolve
// their schemas independently.
type MetadataCacheStore interface {
	// GetMetadata returns the cached payload for a search key and
	// provider, or nil when absent or older than maxAge.
	GetMetadata(ctx context.Context, searchKey, provider string, maxAge time.Duration) ([]byte, error)

	// SetMetadata stores a payload, replacing any previous entry.
	SetMetadata(ctx context.Context, searchKey, provider string, data []byte) error

	// ClearMetadata drops all cached entries for a provider. An empty
	// provider clears everything. Returns the number of rows removed.
	ClearMetadata(ctx context.Context, provider string) (int, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	BookStore
	RequestStore
	MetadataCacheStore

	// Ping verifies the underlying storage is reachable.
	Ping(ctx context.Context) error
}
