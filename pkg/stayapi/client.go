// Package stayapi is the boundary to the listing platform's search API: one
// discovery query per tile and one paginated review fetch per listing.
package stayapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/stayscope/stayscope-cli/internal/model"
)

// Filters narrows a tile query to the search context.
type Filters struct {
	CheckIn   string
	CheckOut  string
	Currency  string
	MinPrice  float64
	MaxPrice  float64
	Occupants int

	// ResultCap is the platform's per-query cap; the response is saturated
	// when it returns at least this many listings.
	ResultCap int
}

// TileResult is one tile query's outcome. Saturated means the count met or
// exceeded the cap and the platform may have silently truncated.
type TileResult struct {
	Listings  []model.ListingRecord
	Saturated bool
}

// Client issues discovery queries and review fetches against the platform.
type Client interface {
	QueryTile(ctx context.Context, tile model.GeoTile, filters Filters) (*TileResult, error)
	FetchReviews(ctx context.Context, listingID string) ([]model.ReviewRecord, error)
}

// reviewPageSize is the platform's review pagination window.
const reviewPageSize = 50

// Option configures the HTTP client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second ceiling for platform calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a platform client for the given base URL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(2, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse mirrors the platform's tile search payload.
type searchResponse struct {
	Listings []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Coordinates struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
		Price struct {
			Nightly  float64 `json:"nightly"`
			Currency string  `json:"currency"`
		} `json:"price"`
		Occupancy   int      `json:"occupancy"`
		Rating      *float64 `json:"rating"`
		ReviewCount int      `json:"review_count"`
		Description string   `json:"description"`
		Highlights  string   `json:"highlights"`
		Available   bool     `json:"available"`
	} `json:"listings"`
}

func (c *httpClient) QueryTile(ctx context.Context, tile model.GeoTile, filters Filters) (*TileResult, error) {
	q := url.Values{}
	q.Set("ne_lat", strconv.FormatFloat(tile.NorthLat, 'f', -1, 64))
	q.Set("ne_lng", strconv.FormatFloat(tile.EastLng, 'f', -1, 64))
	q.Set("sw_lat", strconv.FormatFloat(tile.SouthLat, 'f', -1, 64))
	q.Set("sw_lng", strconv.FormatFloat(tile.WestLng, 'f', -1, 64))
	q.Set("check_in", filters.CheckIn)
	q.Set("check_out", filters.CheckOut)
	q.Set("currency", filters.Currency)
	q.Set("price_min", strconv.FormatFloat(filters.MinPrice, 'f', 2, 64))
	q.Set("price_max", strconv.FormatFloat(filters.MaxPrice, 'f', 2, 64))
	q.Set("adults", strconv.Itoa(filters.Occupants))

	body, err := c.get(ctx, "/v1/search?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedError{Op: "search", Err: err}
	}

	now := time.Now().UTC()
	listings := make([]model.ListingRecord, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		listings = append(listings, model.ListingRecord{
			ID:           l.ID,
			Name:         l.Name,
			Latitude:     l.Coordinates.Latitude,
			Longitude:    l.Coordinates.Longitude,
			NightlyPrice: l.Price.Nightly,
			Currency:     l.Price.Currency,
			Occupancy:    l.Occupancy,
			UserRating:   l.Rating,
			ReviewCount:  l.ReviewCount,
			Description:  l.Description,
			Highlights:   l.Highlights,
			Available:    l.Available,
			LastSeen:     now,
		})
	}

	return &TileResult{
		Listings:  listings,
		Saturated: filters.ResultCap > 0 && len(listings) >= filters.ResultCap,
	}, nil
}

// reviewsResponse mirrors the platform's review page payload.
type reviewsResponse struct {
	Reviews []struct {
		ID        string `json:"id"`
		Comments  string `json:"comments"`
		Rating    int    `json:"rating"`
		CreatedAt string `json:"created_at"`
	} `json:"reviews"`
}

func (c *httpClient) FetchReviews(ctx context.Context, listingID string) ([]model.ReviewRecord, error) {
	var all []model.ReviewRecord
	for offset := 0; ; offset += reviewPageSize {
		path := fmt.Sprintf("/v1/listings/%s/reviews?offset=%d&limit=%d",
			url.PathEscape(listingID), offset, reviewPageSize)
		body, err := c.get(ctx, path)
		if err != nil {
			return nil, err
		}

		var resp reviewsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &MalformedError{Op: "reviews", Err: err}
		}

		for _, r := range resp.Reviews {
			created, _ := time.Parse(time.RFC3339, r.CreatedAt)
			all = append(all, model.ReviewRecord{
				ID:        r.ID,
				ListingID: listingID,
				Text:      r.Comments,
				Rating:    r.Rating,
				CreatedAt: created,
			})
		}

		if len(resp.Reviews) < reviewPageSize {
			return all, nil
		}
	}
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "stayapi: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "stayapi: build request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeout(err) {
			return nil, &TimeoutError{Op: path, Err: err}
		}
		return nil, eris.Wrapf(err, "stayapi: GET %s", path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= 500:
		return nil, &RateLimitError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("stayapi: GET %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "stayapi: read body for %s", path)
	}
	return body, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok {
		return t.Timeout()
	}
	return false
}
