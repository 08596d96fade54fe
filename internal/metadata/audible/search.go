package audible

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Search searches the Audible catalog.
func (c *Client) Search(ctx context.Context, region Region, params SearchParams) ([]SearchResult, error) {
	if !region.Valid() {
		return nil, wrapError("search", region, "", ErrBadRequest)
	}

	query := url.Values{}

	if params.Keywords != "" {
		query.Set("keywords", params.Keywords)
	}
	if params.Title != "" {
		query.Set("title", params.Title)
	}
	if params.Author != "" {
		query.Set("author", params.Author)
	}
	if params.Narrator != "" {
		query.Set("narrator", params.Narrator)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultNumResults
	}
	if limit > maxNumResults {
		limit = maxNumResults
	}
	query.Set("num_results", strconv.Itoa(limit))
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}

	query.Set("response_groups", responseGroups())
	query.Set("image_sizes", imageSizes())
	query.Set("products_sort_by", "Relevance")

	body, err := c.doRequest(ctx, region, "/1.0/catalog/products", query)
	if err != nil {
		return nil, wrapError("search", region, "", err)
	}

	var resp struct {
		Products []rawProduct `json:"products"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError("search", region, "", fmt.Errorf("parse response: %w", err))
	}

	results := make([]SearchResult, 0, len(resp.Products))
	for i := range resp.Products {
		p := &resp.Products[i]

		var releaseDate time.Time
		if p.ReleaseDate != "" {
			releaseDate, _ = time.Parse("2006-01-02", p.ReleaseDate)
		}

		results = append(results, SearchResult{
			ASIN:           p.ASIN,
			Title:          p.Title,
			Subtitle:       p.Subtitle,
			Authors:        contributors(p.Authors, "author"),
			Narrators:      contributors(p.Narrators, "narrator"),
			CoverURL:       selectCoverURL(p.ProductImages),
			RuntimeMinutes: p.RuntimeLengthMin,
			ReleaseDate:    releaseDate,
		})
	}

	return results, nil
}

// Suggest returns catalog title suggestions for a partial query. Duplicate
// titles are collapsed, preserving relevance order.
func (c *Client) Suggest(ctx context.Context, region Region, prefix string) ([]string, error) {
	results, err := c.Search(ctx, region, SearchParams{Keywords: prefix, Limit: 10})
	if err != nil {
		return nil, wrapError("suggest", region, "", err)
	}

	seen := make(map[string]bool, len(results))
	suggestions := make([]string, 0, len(results))
	for _, r := range results {
		if r.Title == "" || seen[r.Title] {
			continue
		}
		seen[r.Title] = true
		suggestions = append(suggestions, r.Title)
	}
	return suggestions, nil
}
