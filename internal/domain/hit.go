package domain

import "time"

// Hit is a single result from the indexer aggregator: a potentially
// downloadable source for a book. Hits are ephemeral and never persisted.
type Hit struct {
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Narrator    string    `json:"narrator"`
	Size        int64     `json:"size"`
	Seeders     int       `json:"seeders"`
	Freeleech   bool      `json:"freeleech"`
	GUID        string    `json:"guid"`
	Description string    `json:"description,omitempty"`
	InfoURL     string    `json:"info_url,omitempty"`
	IndexerID   int       `json:"indexer_id"`
	Indexer     string    `json:"indexer"`
	PublishDate time.Time `json:"publish_date"`
}

// GetTitle implements the match.Source interface.
func (h *Hit) GetTitle() string { return h.Title }

// GetAuthor implements the match.Source interface.
func (h *Hit) GetAuthor() string { return h.Author }

// SearchResult is a book paired with the requests against it, as returned
// to API callers.
type SearchResult struct {
	Book     *Book     `json:"book"`
	Requests []Request `json:"requests"`
}

// RankedSearchResult extends SearchResult with relevance-ranking fields,
// returned when author relevance ranking is enabled.
type RankedSearchResult struct {
	SearchResult
	RelevanceScore   float64 `json:"relevance_score"`
	AuthorScore      float64 `json:"author_score"`
	SecondaryScore   float64 `json:"secondary_score"`
	MatchType        string  `json:"match_type"`
	MatchExplanation string  `json:"match_explanation"`
	IsBestMatch      bool    `json:"is_best_match"`
}
