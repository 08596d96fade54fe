package googlebooks

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Metadata is the enrichment payload extracted from a volume match. It is
// serialized as-is into the metadata cache, so field changes are additive.
type Metadata struct {
	CoverURL      string   `json:"cover_image,omitempty"`
	Description   string   `json:"description,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	RatingCount   int      `json:"rating_count,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Provider      string   `json:"provider"`
}

// Empty reports whether the lookup produced no usable metadata. Empty
// results are still cached to suppress repeated lookups.
func (m *Metadata) Empty() bool {
	return m.CoverURL == "" && m.Description == "" && len(m.Authors) == 0 &&
		len(m.Categories) == 0 && m.ISBN == ""
}

// leadingArticle matches "The ", "A ", "An " at the start of a title.
var leadingArticle = regexp.MustCompile(`(?i)^(The|A|An)\s+`)

// Lookup finds the best volume match for a title/author pair, trying
// progressively broader query strategies:
//
//  1. intitle:"title" inauthor:"author"
//  2. the same with the leading article stripped from the title
//  3. intitle:"title" with no author constraint
//  4. unquoted "title author" keyword search
//
// Returns ErrNoResults when every strategy comes back empty. Transient
// failures of one strategy fall through to the next.
func (c *Client) Lookup(ctx context.Context, title, author string) (*Metadata, error) {
	queries := []string{
		fmt.Sprintf(`intitle:%q inauthor:%q`, title, author),
	}
	if stripped := leadingArticle.ReplaceAllString(title, ""); stripped != title {
		queries = append(queries, fmt.Sprintf(`intitle:%q inauthor:%q`, stripped, author))
	}
	queries = append(queries,
		fmt.Sprintf(`intitle:%q`, title),
		strings.TrimSpace(title+" "+author),
	)

	for i, q := range queries {
		items, err := c.search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Debug("google books strategy failed",
				"strategy", i+1,
				"error", err,
			)
			continue
		}
		if len(items) > 0 {
			return extractMetadata(&items[0].VolumeInfo), nil
		}
	}

	return nil, ErrNoResults
}

// search runs one volumes query and returns the raw items.
func (c *Client) search(ctx context.Context, query string) ([]volumeItem, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", "5")
	params.Set("printType", "books")
	params.Set("orderBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed: status %d", resp.StatusCode)
	}

	var volumes volumesResponse
	if err := json.UnmarshalRead(resp.Body, &volumes); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return volumes.Items, nil
}

// extractMetadata converts a raw volume into the enrichment payload.
func extractMetadata(v *volumeInfo) *Metadata {
	return &Metadata{
		CoverURL:      bestCover(v.ImageLinks),
		Description:   v.Description,
		Authors:       v.Authors,
		Categories:    v.Categories,
		ISBN:          extractISBN(v.IndustryIdentifiers),
		Rating:        v.AverageRating,
		RatingCount:   v.RatingsCount,
		PageCount:     v.PageCount,
		PublishedDate: v.PublishedDate,
		Provider:      Provider,
	}
}

// coverSizes in order of preference.
var coverSizes = []string{"extraLarge", "large", "medium", "small", "thumbnail", "smallThumbnail"}

// bestCover picks the largest available cover, upgrading plain-http links.
func bestCover(links map[string]string) string {
	if len(links) == 0 {
		return ""
	}
	for _, size := range coverSizes {
		if u, ok := links[size]; ok && u != "" {
			return httpsURL(u)
		}
	}
	for _, u := range links {
		if u != "" {
			return httpsURL(u)
		}
	}
	return ""
}

func httpsURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// extractISBN prefers ISBN_13 over ISBN_10.
func extractISBN(ids []industryIdentifier) string {
	for _, wanted := range []string{"ISBN_13", "ISBN_10"} {
		for _, id := range ids {
			if id.Type == wanted && id.Identifier != "" {
				return id.Identifier
			}
		}
	}
	return ""
}

// Raw API response types (internal)

type volumesResponse struct {
	TotalItems int          `json:"totalItems"`
	Items      []volumeItem `json:"items"`
}

type volumeItem struct {
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Subtitle            string               `json:"subtitle"`
	Authors             []string             `json:"authors"`
	Description         string               `json:"description"`
	Categories          []string             `json:"categories"`
	ImageLinks          map[string]string    `json:"imageLinks"`
	PublishedDate       string               `json:"publishedDate"`
	PageCount           int                  `json:"pageCount"`
	AverageRating       float64              `json:"averageRating"`
	RatingsCount        int                  `json:"ratingsCount"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}
