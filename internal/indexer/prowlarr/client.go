// Package prowlarr provides a client for the Prowlarr indexer aggregator,
// the source of availability signals for audiobook searches.
package prowlarr

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/audiobookrequest/abr-server/internal/cache"
	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/domain"
	apperrors "github.com/audiobookrequest/abr-server/internal/errors"
)

const defaultLimit = 100

// Client queries the Prowlarr search endpoint and normalizes the raw
// releases into domain hits. Results are cached per query for the
// configured source TTL.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	cfg     config.ProwlarrConfig
	results *cache.Cache[string, []domain.Hit]
}

// SearchOptions narrows a single search. Zero values fall back to the
// client's configured defaults.
type SearchOptions struct {
	Categories []int
	Indexers   []int
	Limit      int
}

// New creates a Prowlarr client from configuration. The configuration may
// be incomplete; Search reports a misconfiguration error at call time so
// the server can start without an aggregator.
func New(cfg config.ProwlarrConfig, logger *slog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		cfg:     cfg,
		results: cache.New[string, []domain.Hit](),
	}
}

// Configured reports whether the aggregator connection details are present.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

// FlushCache drops all cached search results.
func (c *Client) FlushCache() {
	c.results.Flush()
}

// rawRelease is a single release as returned by the Prowlarr API.
type rawRelease struct {
	Title        string   `json:"title"`
	GUID         string   `json:"guid"`
	Size         int64    `json:"size"`
	Seeders      int      `json:"seeders"`
	IndexerID    int      `json:"indexerId"`
	Indexer      string   `json:"indexer"`
	Protocol     string   `json:"protocol"`
	PublishDate  string   `json:"publishDate"`
	InfoURL      string   `json:"infoUrl"`
	IndexerFlags []string `json:"indexerFlags"`
}

// Search queries the aggregator for releases matching the query. Upstream
// failures after a successful configuration check degrade to an empty
// result set rather than an error, so one flaky indexer never fails the
// whole search pipeline.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]domain.Hit, error) {
	if !c.Configured() {
		return nil, apperrors.Misconfigured("indexer aggregator is not configured")
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = c.cfg.Categories
	}
	indexers := opts.Indexers
	if len(indexers) == 0 {
		indexers = c.cfg.Indexers
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	cacheKey := fmt.Sprintf("%s:%v:%v:%d", query, categories, indexers, limit)
	if hits, ok := c.results.Get(c.cfg.SourceTTL, cacheKey); ok {
		c.logger.Debug("using cached indexer results", "query", query)
		return hits, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "search")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", "0")
	for _, cat := range categories {
		params.Add("categories", strconv.Itoa(cat))
	}
	for _, id := range indexers {
		params.Add("indexerIds", strconv.Itoa(id))
	}

	searchURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/v1/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("indexer search failed", "query", query, "error", err)
		return []domain.Hit{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("indexer search failed",
			"query", query,
			"status", resp.StatusCode,
		)
		return []domain.Hit{}, nil
	}

	var releases []rawRelease
	if err := json.UnmarshalRead(resp.Body, &releases); err != nil {
		c.logger.Error("failed to parse indexer response", "query", query, "error", err)
		return []domain.Hit{}, nil
	}

	hits := c.processReleases(releases)
	c.results.Set(hits, cacheKey)

	c.logger.Info("indexer search completed",
		"query", query,
		"results", len(hits),
	)
	return hits, nil
}

// processReleases filters torrent releases and parses their titles into
// structured hits. Malformed releases are skipped, not fatal.
func (c *Client) processReleases(releases []rawRelease) []domain.Hit {
	hits := make([]domain.Hit, 0, len(releases))
	for i := range releases {
		r := &releases[i]

		if r.Protocol != "torrent" {
			continue
		}

		publishDate, err := time.Parse(time.RFC3339, r.PublishDate)
		if err != nil {
			c.logger.Warn("skipping release with bad publish date",
				"title", r.Title,
				"publish_date", r.PublishDate,
			)
			continue
		}

		title, author, narrator := ParseReleaseTitle(r.Title)

		freeleech := false
		for _, flag := range r.IndexerFlags {
			if strings.EqualFold(flag, "freeleech") {
				freeleech = true
				break
			}
		}

		hits = append(hits, domain.Hit{
			Title:       title,
			Author:      author,
			Narrator:    narrator,
			Size:        r.Size,
			Seeders:     r.Seeders,
			Freeleech:   freeleech,
			GUID:        r.GUID,
			InfoURL:     r.InfoURL,
			IndexerID:   r.IndexerID,
			Indexer:     r.Indexer,
			PublishDate: publishDate,
		})
	}
	return hits
}
