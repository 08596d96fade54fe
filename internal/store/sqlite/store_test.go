package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiobookrequest/abr-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBook(asin, title string, authors ...string) *domain.Book {
	return &domain.Book{
		ASIN:    asin,
		Title:   title,
		Authors: authors,
	}
}

func mustUpsert(t *testing.T, s *Store, book *domain.Book) {
	t.Helper()
	if err := s.UpsertBook(context.Background(), book); err != nil {
		t.Fatalf("upsert book %s: %v", book.ASIN, err)
	}
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	err = s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	// Verify tables exist.
	tables := []string{"books", "requests", "metadata_cache"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	mustUpsert(t, s, testBook("B000000001", "Persisted", "Author"))
	s.Close()

	// Schema application must be idempotent across reopens.
	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s2.Close()

	book, err := s2.GetBook(context.Background(), "B000000001")
	if err != nil {
		t.Fatalf("get book after reopen: %v", err)
	}
	if book.Title != "Persisted" {
		t.Errorf("expected persisted book, got %+v", book)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 30, 0, 123456789, time.UTC)
	formatted := formatTime(now)
	parsed, err := parseTime(formatted)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("round trip mismatch: %v != %v", parsed, now)
	}
}
