package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/audiobookrequest/abr-server/internal/domain"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/service"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search audiobooks",
		Description: "Searches the catalog, optionally reconciled against indexer availability",
		Tags:        []string{"Search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchSuggestions",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/suggestions",
		Summary:     "Search suggestions",
		Description: "Returns typeahead suggestions for a query prefix",
		Tags:        []string{"Search"},
	}, s.handleSearchSuggestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearMetadataCache",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/metadata-cache/clear",
		Summary:     "Clear metadata cache",
		Description: "Drops cached enrichment lookups and volatile search caches",
		Tags:        []string{"Search"},
	}, s.handleClearMetadataCache)
}

// === DTOs ===

// SearchInput contains parameters for searching audiobooks.
type SearchInput struct {
	Query         string `query:"q" required:"true" minLength:"1" maxLength:"200" doc:"Search query"`
	Region        string `query:"region" doc:"Audible marketplace (us, uk, de, fr, au, ca, jp, it, in, es)"`
	AvailableOnly bool   `query:"available_only" doc:"Only return books with indexer availability"`
	Limit         int    `query:"limit" minimum:"0" maximum:"100" doc:"Max results (default 20)"`
	Page          int    `query:"page" minimum:"0" doc:"Page number for catalog paging"`
}

// SearchResponseBody contains search results.
type SearchResponseBody struct {
	Query   string                      `json:"query" doc:"Original search query"`
	Count   int                         `json:"count" doc:"Number of results"`
	Results []domain.SearchResult       `json:"results,omitempty" doc:"Unranked results"`
	Ranked  []domain.RankedSearchResult `json:"ranked,omitempty" doc:"Relevance-ranked results"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponseBody
}

// SuggestionsInput contains parameters for typeahead suggestions.
type SuggestionsInput struct {
	Query  string `query:"q" required:"true" minLength:"1" maxLength:"200" doc:"Query prefix"`
	Region string `query:"region" doc:"Audible marketplace"`
}

// SuggestionsOutput wraps suggestion strings for Huma.
type SuggestionsOutput struct {
	Body struct {
		Suggestions []string `json:"suggestions" doc:"Suggested queries"`
	}
}

// ClearMetadataCacheInput selects which provider's cache to clear.
type ClearMetadataCacheInput struct {
	Provider string `query:"provider" doc:"Provider to clear; empty clears all"`
}

// ClearMetadataCacheOutput reports how many entries were removed.
type ClearMetadataCacheOutput struct {
	Body struct {
		Cleared int `json:"cleared" doc:"Number of cache entries removed"`
	}
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	resp, err := s.services.Search.Search(ctx, service.SearchParams{
		Query:         input.Query,
		Limit:         input.Limit,
		Page:          input.Page,
		Region:        audible.Region(input.Region),
		AvailableOnly: input.AvailableOnly,
	})
	if err != nil {
		return nil, err
	}

	count := len(resp.Results)
	if len(resp.Ranked) > 0 {
		count = len(resp.Ranked)
	}
	return &SearchOutput{
		Body: SearchResponseBody{
			Query:   input.Query,
			Count:   count,
			Results: resp.Results,
			Ranked:  resp.Ranked,
		},
	}, nil
}

func (s *Server) handleSearchSuggestions(ctx context.Context, input *SuggestionsInput) (*SuggestionsOutput, error) {
	suggestions, err := s.services.Search.Suggest(ctx, audible.Region(input.Region), input.Query)
	if err != nil {
		return nil, err
	}

	out := &SuggestionsOutput{}
	out.Body.Suggestions = suggestions
	return out, nil
}

func (s *Server) handleClearMetadataCache(ctx context.Context, input *ClearMetadataCacheInput) (*ClearMetadataCacheOutput, error) {
	cleared, err := s.services.Enrichment.ClearCache(ctx, input.Provider)
	if err != nil {
		return nil, err
	}

	// Ranked and fuzzy decisions may reference the dropped metadata.
	s.services.Search.FlushCaches()

	s.logger.Info("metadata cache cleared", "provider", input.Provider, "entries", cleared)

	out := &ClearMetadataCacheOutput{}
	out.Body.Cleared = cleared
	return out, nil
}
