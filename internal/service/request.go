package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/audiobookrequest/abr-server/internal/asin"
	"github.com/audiobookrequest/abr-server/internal/domain"
	apperrors "github.com/audiobookrequest/abr-server/internal/errors"
	"github.com/audiobookrequest/abr-server/internal/id"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/store"
)

// RequestService manages user requests against books.
type RequestService struct {
	store   store.Store
	catalog CatalogClient
	logger  *slog.Logger
	region  audible.Region
}

// NewRequestService creates a request service.
func NewRequestService(st store.Store, catalog CatalogClient, region audible.Region, logger *slog.Logger) *RequestService {
	return &RequestService{
		store:   st,
		catalog: catalog,
		logger:  logger,
		region:  region,
	}
}

// Create records a user's request for a book. When the book is not yet
// stored and carries a real ASIN, the catalog record is fetched and
// persisted first. Returns a conflict error when the user already
// requested this book.
func (s *RequestService) Create(ctx context.Context, bookASIN, username string) (*domain.Request, error) {
	if bookASIN == "" || username == "" {
		return nil, apperrors.Validation("asin and username are required")
	}

	if _, err := s.store.GetBook(ctx, bookASIN); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup book: %w", err)
		}
		if asin.IsVirtual(bookASIN) {
			// Provisional records are only created by searches; a request
			// against an unknown one cannot be satisfied.
			return nil, apperrors.NotFoundf("book %s not found", bookASIN)
		}
		book, err := s.catalog.GetBook(ctx, s.region, bookASIN)
		if err != nil {
			if errors.Is(err, audible.ErrNotFound) || errors.Is(err, audible.ErrInvalidASIN) {
				return nil, apperrors.NotFoundf("book %s not found", bookASIN)
			}
			return nil, fmt.Errorf("fetch catalog record: %w", err)
		}
		if err := s.store.UpsertBook(ctx, fromCatalogBook(book)); err != nil {
			return nil, fmt.Errorf("store book: %w", err)
		}
	}

	req := &domain.Request{
		ID:        id.MustGenerate("req"),
		ASIN:      bookASIN,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.Conflictf("%s already requested %s", username, bookASIN)
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.logger.Info("request created",
		"id", req.ID,
		"asin", bookASIN,
		"username", username,
	)
	return req, nil
}

// Delete removes a request by ID.
func (s *RequestService) Delete(ctx context.Context, requestID string) error {
	if err := s.store.DeleteRequest(ctx, requestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFoundf("request %s not found", requestID)
		}
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// DeleteForUser removes one user's request against a book.
func (s *RequestService) DeleteForUser(ctx context.Context, bookASIN, username string) error {
	if bookASIN == "" || username == "" {
		return apperrors.Validation("asin and username are required")
	}

	requests, err := s.store.ListRequestsForBook(ctx, bookASIN)
	if err != nil {
		return fmt.Errorf("list requests: %w", err)
	}
	for _, req := range requests {
		if req.Username == username {
			return s.Delete(ctx, req.ID)
		}
	}
	return apperrors.NotFoundf("%s has no request for %s", username, bookASIN)
}

// ListByUser returns one user's requests, newest first.
func (s *RequestService) ListByUser(ctx context.Context, username string) ([]domain.Request, error) {
	return s.store.ListRequestsByUser(ctx, username)
}

// Wishlist returns every requested book with its requesters.
func (s *RequestService) Wishlist(ctx context.Context) ([]domain.WishlistEntry, error) {
	return s.store.Wishlist(ctx)
}

// WishlistCounts summarizes requested books by download state.
func (s *RequestService) WishlistCounts(ctx context.Context) (*domain.WishlistCounts, error) {
	return s.store.WishlistCounts(ctx)
}
