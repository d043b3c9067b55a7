package flickr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flickrgeo/pkg/config"
	"flickrgeo/pkg/errors"
	"flickrgeo/pkg/logger"
	"flickrgeo/pkg/ratelimit"
	"flickrgeo/pkg/retry"
)

const (
	searchMethod = "flickr.photos.search"
	timeLayout   = "2006-01-02 15:04:05"

	// MaxPerPage is the largest page size the API accepts
	MaxPerPage = 250
)

// Known API-level failure codes
const (
	codeInvalidAPIKey      = 100
	codeServiceUnavailable = 105
	codeSearchUnavailable  = 106
)

// Query describes one bounded photos.search call
type Query struct {
	// BBox is the search area as "minlon,minlat,maxlon,maxlat"
	BBox string
	// MinTaken and MaxTaken bound the capture time, half-open
	MinTaken time.Time
	MaxTaken time.Time
	// Page and PerPage select the result page; PerPage of zero means
	// MaxPerPage
	Page    int
	PerPage int
	// HasGeo restricts results to geotagged records
	HasGeo bool
	// Sort is the API sort order, e.g. "date-taken-asc"
	Sort string
	// Extras lists additional record fields to request
	Extras string
	// Params holds extra query parameters passed through verbatim
	Params map[string]string
}

// Client calls the photo search API with rate limiting and retries
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	limiter    ratelimit.Limiter
	retrier    *retry.Retrier
	logger     logger.Logger
}

// NewClient creates a search API client from the configuration
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Extract.QueryTimeout,
		},
		endpoint: cfg.Flickr.Endpoint,
		apiKey:   cfg.Flickr.APIKey,
		limiter:  ratelimit.NewHourlyBudget(cfg.RateLimit.QueriesPerHour),
		retrier:  retry.NewAPIRetrier(cfg.RateLimit.MaxRetries, log),
		logger:   log,
	}
}

// Search executes one photos.search call. It blocks on the hourly query
// budget and retries transient failures.
func (c *Client) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp *SearchResponse
	err := c.retrier.Do(ctx, func() error {
		var opErr error
		resp, opErr = c.doSearch(ctx, q)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Count probes how many records a query matches without fetching them.
// One record is requested because the API reports the full total on every
// page.
func (c *Client) Count(ctx context.Context, q Query) (int, error) {
	q.PerPage = 1
	q.Page = 1
	resp, err := c.Search(ctx, q)
	if err != nil {
		return 0, err
	}
	return int(resp.Photos.Total), nil
}

// Pages returns the number of pages needed to fetch total records at the
// given page size
func Pages(total, perPage int) int {
	if perPage <= 0 {
		perPage = MaxPerPage
	}
	if total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

func (c *Client) doSearch(ctx context.Context, q Query) (*SearchResponse, error) {
	reqURL := c.endpoint + "?" + c.buildValues(q).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.NetworkError("failed to create request", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NetworkError("request failed", err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("search request completed", map[string]interface{}{
		"bbox":        q.BBox,
		"page":        q.Page,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NetworkError("failed to read response body", err)
	}

	parsed, err := decodeSearchResponse(body)
	if err != nil {
		return nil, errors.ParsingError("failed to decode search response", err)
	}

	if parsed.Stat != "ok" {
		return nil, c.apiError(parsed.Code, parsed.Message)
	}

	return parsed, nil
}

// buildValues assembles the query string for a search call
func (c *Client) buildValues(q Query) url.Values {
	v := url.Values{}
	v.Set("method", searchMethod)
	v.Set("api_key", c.apiKey)
	v.Set("format", "json")
	v.Set("nojsoncallback", "1")

	if q.BBox != "" {
		v.Set("bbox", q.BBox)
	}
	if !q.MinTaken.IsZero() {
		v.Set("min_taken_date", q.MinTaken.Format(timeLayout))
	}
	if !q.MaxTaken.IsZero() {
		v.Set("max_taken_date", q.MaxTaken.Format(timeLayout))
	}
	if q.HasGeo {
		v.Set("has_geo", "1")
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Extras != "" {
		v.Set("extras", q.Extras)
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = MaxPerPage
	}
	v.Set("per_page", fmt.Sprintf("%d", perPage))

	page := q.Page
	if page <= 0 {
		page = 1
	}
	v.Set("page", fmt.Sprintf("%d", page))

	for k, val := range q.Params {
		v.Set(k, val)
	}

	return v
}

// checkResponseStatus maps HTTP status codes to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		logger.LogRateLimit(c.endpoint, retryAfter)
		return errors.RateLimitError("rate limit exceeded")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.AuthenticationError(fmt.Sprintf("authentication failed with status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFoundError("endpoint not found")
	case resp.StatusCode >= 500:
		return errors.ServerError(fmt.Sprintf("server returned status %d", resp.StatusCode), resp.StatusCode)
	default:
		return &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

// apiError maps API-level failure codes (stat=fail) to typed errors
func (c *Client) apiError(code int, message string) error {
	switch code {
	case codeInvalidAPIKey:
		return errors.AuthenticationError(fmt.Sprintf("invalid API key: %s", message))
	case codeServiceUnavailable, codeSearchUnavailable:
		return errors.ServerError(fmt.Sprintf("service unavailable: %s", message), code)
	default:
		return &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("API error %d: %s", code, message),
			Code:    code,
		}
	}
}
