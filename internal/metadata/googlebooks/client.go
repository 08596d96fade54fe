// Package googlebooks provides a client for the Google Books volumes API,
// used to enrich provisional book records that have no catalog metadata.
package googlebooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.googleapis.com/books/v1/volumes"

	// Provider tag stored alongside cached metadata.
	Provider = "google_books"

	searchKeyTitleWindow  = 50
	searchKeyAuthorWindow = 30
)

// ErrNoResults is returned when every query strategy came back empty.
var ErrNoResults = errors.New("googlebooks: no results")

// Client provides rate-limited access to the Google Books API.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	baseURL     string
}

// NewClient creates a new Google Books client.
// Rate limited to roughly one request per second with small bursts, well
// under the API's free quota.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logger:      logger,
		baseURL:     defaultBaseURL,
	}
}

// wait blocks until the rate limiter allows a request.
func (c *Client) wait(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// SearchKey derives the cache key for a (title, author) lookup. Keys are
// stable across case and surrounding whitespace so repeated enrichment of
// the same provisional book hits the cache.
func SearchKey(title, author string) string {
	cleanTitle := truncate(strings.ToLower(strings.TrimSpace(title)), searchKeyTitleWindow)
	cleanAuthor := truncate(strings.ToLower(strings.TrimSpace(author)), searchKeyAuthorWindow)

	sum := sha256.Sum256([]byte(cleanTitle + ":" + cleanAuthor))
	return hex.EncodeToString(sum[:])[:16]
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
