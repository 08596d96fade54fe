// Package domain contains the core business entities for the audiobook request server.
package domain

import (
	"strings"
	"time"
)

// VirtualPrefix marks provisional book identifiers that were synthesized
// locally because no canonical catalog match was found.
const VirtualPrefix = "VIRTUAL-"

// Book represents an audiobook, either canonical (a verified catalog record
// with a real ASIN) or provisional (a locally synthesized "virtual" record
// whose ASIN is derived from normalized title+author).
type Book struct {
	ASIN             string     `json:"asin"`
	Title            string     `json:"title"`
	Subtitle         string     `json:"subtitle,omitempty"`
	Authors          []string   `json:"authors"`
	Narrators        []string   `json:"narrators,omitempty"`
	CoverURL         string     `json:"cover_url,omitempty"`
	ReleaseDate      *time.Time `json:"release_date,omitempty"`
	RuntimeMinutes   int        `json:"runtime_minutes"`
	Downloaded       bool       `json:"downloaded"`
	SeedCount        int        `json:"seed_count"`
	Freeleech        bool       `json:"freeleech"`
	LastIndexerQuery *time.Time `json:"last_indexer_query,omitempty"`
}

// GetTitle implements the catalog side of the matcher interfaces.
func (b *Book) GetTitle() string {
	return b.Title
}

// GetAuthors implements the catalog side of the matcher interfaces.
func (b *Book) GetAuthors() []string {
	return b.Authors
}

// IsVirtual reports whether the book is a provisional record.
func (b *Book) IsVirtual() bool {
	return strings.HasPrefix(b.ASIN, VirtualPrefix)
}

// AuthorString joins the book's authors with spaces for fuzzy comparison.
func (b *Book) AuthorString() string {
	return strings.Join(b.Authors, " ")
}

// MergeAvailability folds availability signals from another sighting of the
// same book into this record, keeping the maximum seed count and a sticky
// freeleech flag.
func (b *Book) MergeAvailability(seeders int, freeleech bool) {
	if seeders > b.SeedCount {
		b.SeedCount = seeders
	}
	if freeleech {
		b.Freeleech = true
	}
}
