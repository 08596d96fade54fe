package audible

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/audiobookrequest/abr-server/internal/ratelimit"
)

const (
	// Rate limit: 1 request per second per region, burst of 3
	defaultRPS   = 1.0
	defaultBurst = 3

	// HTTP client settings
	defaultTimeout = 30 * time.Second

	// API settings
	defaultNumResults = 25
	maxNumResults     = 50
)

// Client is a rate-limited Audible catalog client.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	// baseURL overrides the region host when set. Test hook.
	baseURL string
}

// New creates a new Audible client.
func New(logger *slog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: ratelimit.New(defaultRPS, defaultBurst),
		logger:  logger,
	}
}

// doRequest executes a rate-limited GET against the region's API host.
func (c *Client) doRequest(ctx context.Context, region Region, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx, string(region)); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	target := c.baseURL
	if target == "" {
		u := url.URL{Scheme: "https", Host: region.Host()}
		target = u.String()
	}
	target += path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ABR/1.0")

	c.logger.Debug("audible request",
		"region", region,
		"path", path,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// responseGroups returns the standard response_groups parameter value.
func responseGroups() string {
	return "contributors,product_desc,product_attrs,product_extended_attrs,media,rating,series,category_ladders"
}

// imageSizes returns the standard image_sizes parameter value.
func imageSizes() string {
	return "500,1024"
}

// contributors converts raw API contributors, tagging them with role.
func contributors(raw []rawContributor, role string) []Contributor {
	out := make([]Contributor, 0, len(raw))
	for _, c := range raw {
		out = append(out, Contributor{
			ASIN: c.ASIN,
			Name: c.Name,
			Role: role,
		})
	}
	return out
}

// parseSeries extracts series information from the API response.
func parseSeries(raw []rawSeries) []SeriesEntry {
	var series []SeriesEntry
	for _, s := range raw {
		series = append(series, SeriesEntry{
			ASIN:     s.ASIN,
			Name:     s.Title,
			Position: s.Sequence,
		})
	}
	return series
}

// selectCoverURL picks the best available cover URL (prefer 1024px).
func selectCoverURL(images map[string]string) string {
	for _, size := range []string{"1024", "500", "image_url"} {
		if url, ok := images[size]; ok && url != "" {
			return url
		}
	}
	return ""
}

// Raw API response types (internal)

type rawProduct struct {
	ASIN                 string              `json:"asin"`
	Title                string              `json:"title"`
	Subtitle             string              `json:"subtitle"`
	PublisherName        string              `json:"publisher_name"`
	ReleaseDate          string              `json:"release_date"`
	RuntimeLengthMin     int                 `json:"runtime_length_min"`
	MerchandisingSummary string              `json:"merchandising_summary"`
	ProductImages        map[string]string   `json:"product_images"`
	Authors              []rawContributor    `json:"authors"`
	Narrators            []rawContributor    `json:"narrators"`
	SeriesPrimary        []rawSeries         `json:"series"`
	CategoryLadders      []rawCategoryLadder `json:"category_ladders"`
	Language             string              `json:"language"`
	Rating               *rawRating          `json:"rating"`
}

type rawContributor struct {
	ASIN string `json:"asin"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type rawSeries struct {
	ASIN     string `json:"asin"`
	Title    string `json:"title"`
	Sequence string `json:"sequence"`
}

type rawCategoryLadder struct {
	Ladder []rawCategory `json:"ladder"`
}

type rawCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rawRating struct {
	OverallDistribution struct {
		DisplayAverageRating float32 `json:"display_average_rating"`
		NumReviews           int     `json:"num_reviews"`
	} `json:"overall_distribution"`
}
