package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `asin, title, subtitle, authors, narrators, cover_url,
	release_date, runtime_minutes, downloaded, seed_count, freeleech,
	last_indexer_query`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		subtitle     sql.NullString
		authors      string
		narrators    string
		coverURL     sql.NullString
		releaseDate  sql.NullString
		downloaded   int
		freeleech    int
		indexerQuery sql.NullString
	)

	err := scanner.Scan(
		&b.ASIN,
		&b.Title,
		&subtitle,
		&authors,
		&narrators,
		&coverURL,
		&releaseDate,
		&b.RuntimeMinutes,
		&downloaded,
		&b.SeedCount,
		&freeleech,
		&indexerQuery,
	)
	if err != nil {
		return nil, err
	}

	if subtitle.Valid {
		b.Subtitle = subtitle.String
	}
	if coverURL.Valid {
		b.CoverURL = coverURL.String
	}
	b.Downloaded = downloaded != 0
	b.Freeleech = freeleech != 0

	if err := json.Unmarshal([]byte(authors), &b.Authors); err != nil {
		return nil, fmt.Errorf("parse authors: %w", err)
	}
	if err := json.Unmarshal([]byte(narrators), &b.Narrators); err != nil {
		return nil, fmt.Errorf("parse narrators: %w", err)
	}

	b.ReleaseDate, err = parseNullableTime(releaseDate)
	if err != nil {
		return nil, err
	}
	b.LastIndexerQuery, err = parseNullableTime(indexerQuery)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// GetBook returns the book with the given ASIN.
func (s *Store) GetBook(ctx context.Context, asin string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE asin = ?`, asin)

	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// UpsertBook inserts the book or updates an existing record in place.
func (s *Store) UpsertBook(ctx context.Context, book *domain.Book) error {
	return s.upsertBook(ctx, s.db, book)
}

// execer abstracts *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertBook(ctx context.Context, db execer, book *domain.Book) error {
	authors, err := json.Marshal(book.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	narrators, err := json.Marshal(book.Narrators)
	if err != nil {
		return fmt.Errorf("marshal narrators: %w", err)
	}

	now := formatTime(time.Now())
	_, err = db.ExecContext(ctx, `
		INSERT INTO books (asin, title, subtitle, authors, narrators, cover_url,
			release_date, runtime_minutes, downloaded, seed_count, freeleech,
			last_indexer_query, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asin) DO UPDATE SET
			title = excluded.title,
			subtitle = excluded.subtitle,
			authors = excluded.authors,
			narrators = excluded.narrators,
			cover_url = excluded.cover_url,
			release_date = excluded.release_date,
			runtime_minutes = excluded.runtime_minutes,
			downloaded = excluded.downloaded,
			seed_count = excluded.seed_count,
			freeleech = excluded.freeleech,
			last_indexer_query = excluded.last_indexer_query,
			updated_at = excluded.updated_at`,
		book.ASIN,
		book.Title,
		nullString(book.Subtitle),
		string(authors),
		string(narrators),
		nullString(book.CoverURL),
		nullTimeString(book.ReleaseDate),
		book.RuntimeMinutes,
		boolInt(book.Downloaded),
		book.SeedCount,
		boolInt(book.Freeleech),
		nullTimeString(book.LastIndexerQuery),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}
	return nil
}

// ListBooks returns all stored books.
func (s *Store) ListBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

// DeleteBook removes a book; requests against it cascade.
func (s *Store) DeleteBook(ctx context.Context, asin string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE asin = ?`, asin)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ReplaceBook atomically replaces oldASIN with the canonical record and
// migrates requests to the new ASIN. Requests whose user already requested
// the canonical record are dropped rather than duplicated.
func (s *Store) ReplaceBook(ctx context.Context, oldASIN string, book *domain.Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE asin = ?`, book.ASIN).Scan(&exists); err != nil {
		return fmt.Errorf("check canonical book: %w", err)
	}

	if exists == 0 {
		if err := s.upsertBook(ctx, tx, book); err != nil {
			return err
		}
	}

	// Drop requests that would collide with existing ones on the
	// canonical record, then migrate the rest.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM requests WHERE asin = ? AND username IN
			(SELECT username FROM requests WHERE asin = ?)`,
		oldASIN, book.ASIN); err != nil {
		return fmt.Errorf("drop duplicate requests: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE requests SET asin = ? WHERE asin = ?`,
		book.ASIN, oldASIN); err != nil {
		return fmt.Errorf("migrate requests: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM books WHERE asin = ?`, oldASIN); err != nil {
		return fmt.Errorf("delete provisional book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	if exists > 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

// MergeAvailability folds an availability sighting into the stored record.
func (s *Store) MergeAvailability(ctx context.Context, asin string, seeders int, freeleech bool, queriedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			seed_count = MAX(seed_count, ?),
			freeleech = MAX(freeleech, ?),
			last_indexer_query = MAX(COALESCE(last_indexer_query, ''), ?),
			updated_at = ?
		WHERE asin = ?`,
		seeders,
		boolInt(freeleech),
		formatTime(queriedAt),
		formatTime(time.Now()),
		asin,
	)
	if err != nil {
		return fmt.Errorf("merge availability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CleanupStaleBooks deletes provisional books with no requests that were
// never downloaded and whose last indexer sighting predates the cutoff.
func (s *Store) CleanupStaleBooks(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM books
		WHERE asin LIKE ?
		  AND downloaded = 0
		  AND asin NOT IN (SELECT asin FROM requests)
		  AND (last_indexer_query IS NULL OR last_indexer_query < ?)`,
		domain.VirtualPrefix+"%",
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale books: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
