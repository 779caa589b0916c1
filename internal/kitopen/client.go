// Package kitopen provides a client for the KITOpen publication list export
// service of the KIT library.
package kitopen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the KITOpen publication list export service.
	DefaultBaseURL = "https://publikationen.bibliothek.kit.edu/publikationslisten"

	// DefaultTimeout is the default HTTP request timeout. Large author
	// queries can take the service a while to answer.
	DefaultTimeout = 120 * time.Second

	// RateLimit is kept low; the export service is not built for bursts.
	RateLimit = 2.0
)

// Errors.
var (
	ErrUnavailable     = errors.New("KITOpen service unavailable")
	ErrAPIError        = errors.New("KITOpen API error")
	ErrNetworkError    = errors.New("network error connecting to KITOpen")
	ErrInvalidResponse = errors.New("invalid response from KITOpen")
)

// Query describes one search against the publication list export.
type Query struct {
	// Authors holds author expressions as produced by FormatAuthor. They are
	// combined into a single "or" query.
	Authors []string

	// Start and End bound the publication years, inclusive. An empty string
	// leaves that side open.
	Start string
	End   string
}

// Publication is one record of a KITOpen search result.
type Publication struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	DOI          string   `json:"doi"`
	Year         string   `json:"year"`
	POFStructure string   `json:"pof_structure"`
	Authors      []string `json:"authors"`
}

// Client is a rate-limited HTTP client for the KITOpen export service.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     hclog.Logger
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom service URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.Named("kitopen")
	}
}

// NewClient creates a new KITOpen client. The service is public and needs no
// credentials.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		logger:     hclog.NewNullLogger(),
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one query against the export service and returns all matching
// publication records.
func (c *Client) Search(ctx context.Context, query Query) ([]Publication, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("author", strings.Join(query.Authors, " or "))
	params.Set("format", "json")
	if query.Start != "" {
		params.Set("start", query.Start)
	}
	if query.End != "" {
		params.Set("end", query.End)
	}

	target := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("querying KITOpen", "authors", len(query.Authors), "start", query.Start, "end", query.End)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Success
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	// The export returns a bare list; tolerate an envelope as well.
	var pubs []Publication
	if err := json.Unmarshal(data, &pubs); err == nil {
		return pubs, nil
	}
	var wrapper struct {
		Publications []Publication `json:"publications"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return wrapper.Publications, nil
}
