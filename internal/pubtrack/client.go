package pubtrack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// requiredResources are the collections the typed accessors depend on. New
// rejects a registry that is missing any of them.
var requiredResources = []string{"publications", "authors", "authorings", "meta-authors"}

// Client is the high-level interface to one pubtrack installation. It owns
// the HTTP client, credentials and resource registry, and hands out fresh
// Endpoint values for the individual collections.
type Client struct {
	httpClient *http.Client
	auth       Authenticator
	logger     hclog.Logger
	registry   *Registry
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken installs token authentication with the default scheme.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.auth = NewTokenAuthenticator(token)
	}
}

// WithAuthenticator sets a custom authentication strategy.
func WithAuthenticator(auth Authenticator) ClientOption {
	return func(c *Client) {
		c.auth = auth
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRegistry replaces the default resource registry. The registry is
// resolved during New if it has not been already.
func WithRegistry(registry *Registry) ClientOption {
	return func(c *Client) {
		c.registry = registry
	}
}

// New creates a pubtrack client for the service at baseURL. Without an
// explicit authenticator the PUBTRACK_TOKEN environment variable is used;
// when that is empty too, requests fail with ErrAuthNotConfigured.
func New(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("pubtrack base URL must not be empty")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		auth:       nullAuthenticator{},
		logger:     hclog.NewNullLogger(),
		registry:   DefaultRegistry(),
		baseURL:    baseURL,
	}

	if token := os.Getenv("PUBTRACK_TOKEN"); token != "" {
		c.auth = NewTokenAuthenticator(token)
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("pubtrack")

	if !c.registry.resolved {
		if err := c.registry.Resolve(); err != nil {
			return nil, err
		}
	}
	for _, name := range requiredResources {
		if _, err := c.registry.Lookup(name); err != nil {
			return nil, fmt.Errorf("registry missing required resource: %w", err)
		}
	}
	return c, nil
}

// BaseURL returns the service base URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Resource returns a fresh endpoint for any registered resource name.
func (c *Client) Resource(name string) (*Endpoint, error) {
	res, err := c.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		client:   c.httpClient,
		auth:     c.auth,
		logger:   c.logger,
		registry: c.registry,
		resource: res,
		base:     c.baseURL,
	}, nil
}

// Publications returns the publications endpoint.
func (c *Client) Publications() *Endpoint { return c.resource("publications") }

// Authors returns the authors endpoint.
func (c *Client) Authors() *Endpoint { return c.resource("authors") }

// Authorings returns the authorings endpoint.
func (c *Client) Authorings() *Endpoint { return c.resource("authorings") }

// MetaAuthors returns the meta-authors endpoint.
func (c *Client) MetaAuthors() *Endpoint { return c.resource("meta-authors") }

func (c *Client) resource(name string) *Endpoint {
	ep, err := c.Resource(name)
	if err != nil {
		// New validated all required resources, so this cannot happen.
		panic("pubtrack: resource not registered: " + name)
	}
	return ep
}

// ListPublications fetches one page of publications, optionally filtered.
func (c *Client) ListPublications(ctx context.Context, params url.Values) ([]Publication, error) {
	rec, err := c.Publications().Get(ctx, params)
	if err != nil {
		return nil, err
	}
	results, err := rec.Results()
	if err != nil {
		return nil, err
	}

	pubs := make([]Publication, len(results))
	for i, result := range results {
		if err := result.Decode(&pubs[i]); err != nil {
			return nil, err
		}
	}
	return pubs, nil
}

// ListMetaAuthors fetches the meta-author roster.
func (c *Client) ListMetaAuthors(ctx context.Context) ([]MetaAuthor, error) {
	rec, err := c.MetaAuthors().Get(ctx, nil)
	if err != nil {
		return nil, err
	}
	results, err := rec.Results()
	if err != nil {
		return nil, err
	}

	metaAuthors := make([]MetaAuthor, len(results))
	for i, result := range results {
		if err := result.Decode(&metaAuthors[i]); err != nil {
			return nil, err
		}
	}
	return metaAuthors, nil
}

// PublicationByDOI returns the publication carrying the given DOI, or
// ErrNoResult when it is not tracked.
func (c *Client) PublicationByDOI(ctx context.Context, doi string) (Publication, error) {
	filters := url.Values{}
	filters.Set("doi", doi)

	rec, err := c.Publications().GetBy(ctx, filters)
	if err != nil {
		return Publication{}, err
	}
	var pub Publication
	if err := rec.Decode(&pub); err != nil {
		return Publication{}, err
	}
	return pub, nil
}

// ImportPublication pushes one publication into pubtrack: the record itself,
// every author on it, and the authorings linking the two. Authors that the
// service already knows are recognized through PostOrGet on their external
// author id. Failed steps are collected and the remaining steps still run,
// so one rejected record never stops the rest; the combined error is returned
// at the end. The returned publication carries the service-assigned uuid when
// its POST succeeded.
func (c *Client) ImportPublication(ctx context.Context, pub Publication) (Publication, error) {
	var merr *multierror.Error

	authors := pub.Authors
	pub.Authors = nil

	created, err := c.Publications().Post(ctx, pub)
	if err != nil {
		c.logger.Warn("publication rejected", "title", pub.Title, "error", err)
		merr = multierror.Append(merr, fmt.Errorf("publication %q: %w", pub.Title, err))
	} else {
		pub.UUID = created.String("uuid")
		c.logger.Info("publication created", "title", pub.Title, "uuid", pub.UUID)
	}

	for _, author := range authors {
		filters := url.Values{}
		filters.Set("external_author_id", author.ExternalAuthorID)

		rec, err := c.Authors().PostOrGet(ctx, author, filters)
		if err != nil {
			c.logger.Warn("author not ensured", "author", author.FullName(), "error", err)
			merr = multierror.Append(merr, fmt.Errorf("author %q: %w", author.FullName(), err))
			continue
		}

		authoring := Authoring{Author: rec.String("slug"), Publication: pub.UUID}
		if _, err := c.Authorings().Post(ctx, authoring); err != nil {
			c.logger.Warn("authoring rejected",
				"author", authoring.Author, "publication", authoring.Publication, "error", err)
			merr = multierror.Append(merr, fmt.Errorf("authoring %q: %w", authoring.Author, err))
		}
	}

	pub.Authors = authors
	return pub, merr.ErrorOrNil()
}
