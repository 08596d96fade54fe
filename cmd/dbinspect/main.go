// Command dbinspect prints a summary of an ABR database: book counts by
// kind, outstanding requests, and wishlist state. Read-only.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/audiobookrequest/abr-server/internal/store/sqlite"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/abr/abr.db")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	st, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	books, err := st.ListBooks(ctx)
	if err != nil {
		log.Fatalf("Failed to list books: %v", err)
	}

	canonical := 0
	provisional := 0
	withAvailability := 0
	for i := range books {
		if books[i].IsVirtual() {
			provisional++
		} else {
			canonical++
		}
		if books[i].SeedCount > 0 {
			withAvailability++
		}
	}

	fmt.Printf("Books: %d total (%d canonical, %d provisional)\n", len(books), canonical, provisional)
	fmt.Printf("  with indexer availability: %d\n", withAvailability)
	fmt.Println()

	entries, err := st.Wishlist(ctx)
	if err != nil {
		log.Fatalf("Failed to load wishlist: %v", err)
	}
	counts, err := st.WishlistCounts(ctx)
	if err != nil {
		log.Fatalf("Failed to load wishlist counts: %v", err)
	}

	fmt.Printf("Requested books: %d (%d awaiting download, %d downloaded)\n",
		len(entries), counts.Requested, counts.Downloaded)
	for _, entry := range entries {
		fmt.Printf("  %-14s %-40s %d request(s)\n",
			entry.Book.ASIN, truncate(entry.Book.Title, 40), len(entry.Requests))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
