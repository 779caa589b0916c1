// Package scopus provides a client for the Elsevier Scopus Search API.
package scopus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Scopus Search API endpoint.
	DefaultBaseURL = "https://api.elsevier.com/content/search/scopus"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit stays well under the Elsevier per-second quota.
	RateLimit = 5.0

	// DefaultPageSize is the number of entries requested per search.
	DefaultPageSize = 25
)

// Errors.
var (
	ErrNotFound        = errors.New("not found in Scopus")
	ErrAuthError       = errors.New("Scopus authentication error")
	ErrRateLimited     = errors.New("Scopus rate limit exceeded")
	ErrAPIError        = errors.New("Scopus API error")
	ErrNetworkError    = errors.New("network error communicating with Scopus")
	ErrInvalidResponse = errors.New("invalid response from Scopus")
)

// Client is a rate-limited HTTP client for the Scopus Search API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     hclog.Logger
	apiKey     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the Elsevier developer key.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom API URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.Named("scopus")
	}
}

// NewClient creates a new Scopus Search API client. The SCOPUS_API_KEY
// environment variable is used when no key is configured explicitly.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		logger:     hclog.NewNullLogger(),
		baseURL:    DefaultBaseURL,
	}

	if key := os.Getenv("SCOPUS_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchByAuthor returns the publications of one Scopus author profile,
// newest first.
func (c *Client) SearchByAuthor(ctx context.Context, authorID string) ([]Entry, error) {
	if authorID == "" {
		return nil, fmt.Errorf("%w: empty author id", ErrAPIError)
	}
	return c.search(ctx, fmt.Sprintf("AU-ID(%s)", authorID))
}

// LookupDOI returns the Scopus entry for one DOI, or ErrNotFound.
func (c *Client) LookupDOI(ctx context.Context, doi string) (*Entry, error) {
	if doi == "" {
		return nil, fmt.Errorf("%w: empty doi", ErrAPIError)
	}
	entries, err := c.search(ctx, fmt.Sprintf("DOI(%s)", doi))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: doi %s", ErrNotFound, doi)
	}
	return &entries[0], nil
}

// search runs one Scopus Search API query and returns its entries.
func (c *Client) search(ctx context.Context, query string) ([]Entry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("view", "COMPLETE")
	params.Set("count", strconv.Itoa(DefaultPageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-ELS-APIKey", c.apiKey)
	}

	c.logger.Debug("querying Scopus", "query", query)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Success
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	var envelope SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	// An empty result set arrives as a single pseudo entry carrying only an
	// error message. Strip those, they are not records.
	entries := make([]Entry, 0, len(envelope.Results.Entries))
	for _, entry := range envelope.Results.Entries {
		if entry.Error != "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
