package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetMetadata retrieves a cached enrichment payload.
// Returns nil, nil if not found or older than maxAge.
func (s *Store) GetMetadata(ctx context.Context, searchKey, provider string, maxAge time.Duration) ([]byte, error) {
	var (
		data      string
		fetchedAt string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT data, fetched_at FROM metadata_cache WHERE search_key = ? AND provider = ?`,
		searchKey, provider).Scan(&data, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}

	fetchedTime, err := parseTime(fetchedAt)
	if err != nil {
		return nil, err
	}

	// Treat expired entries as a miss.
	if time.Since(fetchedTime) > maxAge {
		return nil, nil
	}

	return []byte(data), nil
}

// SetMetadata stores an enrichment payload, replacing any previous entry.
func (s *Store) SetMetadata(ctx context.Context, searchKey, provider string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO metadata_cache (search_key, provider, data, fetched_at) VALUES (?, ?, ?, ?)`,
		searchKey, provider, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set metadata: %w", err)
	}
	return nil
}

// ClearMetadata drops all cached entries for a provider. An empty provider
// clears everything.
func (s *Store) ClearMetadata(ctx context.Context, provider string) (int, error) {
	var (
		res sql.Result
		err error
	)
	if provider == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM metadata_cache`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM metadata_cache WHERE provider = ?`, provider)
	}
	if err != nil {
		return 0, fmt.Errorf("clear metadata: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
