package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/store"
)

// CreateRequest records a user's interest in a book.
// Returns store.ErrAlreadyExists if the user already requested this ASIN.
func (s *Store) CreateRequest(ctx context.Context, req *domain.Request) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, asin, username, created_at) VALUES (?, ?, ?, ?)`,
		req.ID, req.ASIN, req.Username, formatTime(req.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// DeleteRequest removes a request by ID.
func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListRequestsForBook returns all requests against one ASIN, oldest first.
func (s *Store) ListRequestsForBook(ctx context.Context, asin string) ([]domain.Request, error) {
	return s.listRequests(ctx,
		`SELECT id, asin, username, created_at FROM requests WHERE asin = ? ORDER BY created_at`, asin)
}

// ListRequestsByUser returns all requests made by one user, newest first.
func (s *Store) ListRequestsByUser(ctx context.Context, username string) ([]domain.Request, error) {
	return s.listRequests(ctx,
		`SELECT id, asin, username, created_at FROM requests WHERE username = ? ORDER BY created_at DESC`, username)
}

func (s *Store) listRequests(ctx context.Context, query string, args ...any) ([]domain.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanRequest(scanner interface{ Scan(dest ...any) error }) (*domain.Request, error) {
	var r domain.Request
	var createdAt string

	if err := scanner.Scan(&r.ID, &r.ASIN, &r.Username, &createdAt); err != nil {
		return nil, err
	}

	var err error
	r.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Wishlist returns every requested book with its requesters, most recently
// requested first.
func (s *Store) Wishlist(ctx context.Context) ([]domain.WishlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE asin IN (SELECT asin FROM requests)
		ORDER BY (SELECT MAX(created_at) FROM requests WHERE requests.asin = books.asin) DESC`)
	if err != nil {
		return nil, fmt.Errorf("wishlist books: %w", err)
	}
	defer rows.Close()

	var entries []domain.WishlistEntry
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wishlist book: %w", err)
		}
		entries = append(entries, domain.WishlistEntry{Book: book})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		requests, err := s.ListRequestsForBook(ctx, entries[i].Book.ASIN)
		if err != nil {
			return nil, err
		}
		entries[i].Requests = requests
	}
	return entries, nil
}

// WishlistCounts summarizes requested books by download state.
func (s *Store) WishlistCounts(ctx context.Context) (*domain.WishlistCounts, error) {
	var counts domain.WishlistCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN downloaded = 0 THEN 1 END),
			COUNT(CASE WHEN downloaded = 1 THEN 1 END)
		FROM books WHERE asin IN (SELECT asin FROM requests)`).
		Scan(&counts.Requested, &counts.Downloaded)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("wishlist counts: %w", err)
	}
	return &counts, nil
}
