// Package pubtrack provides a client for the pubtrack publication tracking
// service. The API is addressed through Endpoint values that can be narrowed
// to a single record and composed into nested resources; the Client facade
// wires the standard resource set and the import workflow on top.
package pubtrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Endpoint addresses one resource of the pubtrack API and performs the HTTP
// verbs against it. Endpoints are immutable values: Key and Child always
// construct fresh instances instead of caching derived endpoints, so a child
// obtained from a keyed endpoint sees the narrowed URL of that key.
type Endpoint struct {
	client   *http.Client
	auth     Authenticator
	logger   hclog.Logger
	registry *Registry

	resource Resource
	base     string
	keys     []string
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithEndpointHTTPClient sets a custom HTTP client.
func WithEndpointHTTPClient(hc *http.Client) EndpointOption {
	return func(e *Endpoint) {
		e.client = hc
	}
}

// WithEndpointAuthenticator sets the authentication strategy.
func WithEndpointAuthenticator(auth Authenticator) EndpointOption {
	return func(e *Endpoint) {
		e.auth = auth
	}
}

// WithEndpointLogger sets the logger.
func WithEndpointLogger(logger hclog.Logger) EndpointOption {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

// NewEndpoint builds the root endpoint for one registered resource under the
// given base URL. The registry must already be resolved and is shared
// read-only by all endpoints derived from this one.
func NewEndpoint(base string, registry *Registry, name string, opts ...EndpointOption) (*Endpoint, error) {
	res, err := registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	e := &Endpoint{
		client:   &http.Client{Timeout: DefaultTimeout},
		auth:     nullAuthenticator{},
		logger:   hclog.NewNullLogger(),
		registry: registry,
		resource: res,
		base:     base,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// joinURL assembles base/s1/.../sn/ with exactly one trailing slash, no
// matter how the inputs are slashed.
func joinURL(base string, segments ...string) string {
	u := strings.TrimRight(base, "/")
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		u += "/" + s
	}
	return u + "/"
}

// URL returns the full resource URL of this endpoint.
func (e *Endpoint) URL() string {
	segments := append([]string{e.resource.Name}, e.keys...)
	return joinURL(e.base, segments...)
}

// Name returns the resource name this endpoint addresses.
func (e *Endpoint) Name() string {
	return e.resource.Name
}

// Key returns a fresh endpoint narrowed to the record addressed by the given
// key segments. Calling it with no arguments returns an identical copy.
func (e *Endpoint) Key(pk ...string) *Endpoint {
	clone := *e
	clone.keys = append(append([]string(nil), e.keys...), pk...)
	return &clone
}

// Child returns a fresh endpoint for a nested resource, rooted at this
// endpoint's current URL. The child must be declared in the parent's resource
// descriptor; combined with Key this yields URLs like
// publications/<uuid>/authors/.
func (e *Endpoint) Child(name string) (*Endpoint, error) {
	if !e.registry.hasChild(e.resource, name) {
		return nil, fmt.Errorf("%w: %q has no child %q", ErrUnknownResource, e.resource.Name, name)
	}
	res, err := e.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	clone := *e
	clone.resource = res
	clone.base = e.URL()
	clone.keys = nil
	return &clone, nil
}

// Get retrieves a single record, or the collection when no key is given.
// A bare JSON array response is normalized to a Record holding the list under
// "results", the same shape the service uses for paginated envelopes.
func (e *Endpoint) Get(ctx context.Context, params url.Values, pk ...string) (Record, error) {
	target := e.Key(pk...).URL()
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return e.do(ctx, http.MethodGet, target, nil)
}

// Post creates a new record from the given body.
func (e *Endpoint) Post(ctx context.Context, body any) (Record, error) {
	return e.do(ctx, http.MethodPost, e.URL(), body)
}

// Put replaces the record addressed by the accumulated and given keys.
func (e *Endpoint) Put(ctx context.Context, body any, pk ...string) (Record, error) {
	keyed := e.Key(pk...)
	if len(keyed.keys) == 0 {
		return nil, fmt.Errorf("%w: PUT %s", ErrMissingKey, keyed.URL())
	}
	return e.do(ctx, http.MethodPut, keyed.URL(), body)
}

// Patch partially updates the record addressed by the accumulated and given
// keys.
func (e *Endpoint) Patch(ctx context.Context, body any, pk ...string) (Record, error) {
	keyed := e.Key(pk...)
	if len(keyed.keys) == 0 {
		return nil, fmt.Errorf("%w: PATCH %s", ErrMissingKey, keyed.URL())
	}
	return e.do(ctx, http.MethodPatch, keyed.URL(), body)
}

// Delete removes the record addressed by the accumulated and given keys.
func (e *Endpoint) Delete(ctx context.Context, pk ...string) error {
	keyed := e.Key(pk...)
	if len(keyed.keys) == 0 {
		return fmt.Errorf("%w: DELETE %s", ErrMissingKey, keyed.URL())
	}
	_, err := e.do(ctx, http.MethodDelete, keyed.URL(), nil)
	return err
}

// GetBy fetches the collection filtered by the given parameters and returns
// the first matching record. ErrNoResult is returned when nothing matches.
func (e *Endpoint) GetBy(ctx context.Context, filters url.Values) (Record, error) {
	rec, err := e.Get(ctx, filters)
	if err != nil {
		return nil, err
	}
	results, err := rec.Results()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s with %s", ErrNoResult, e.URL(), filters.Encode())
	}
	return results[0], nil
}

// PostOrGet creates a record and, when the service rejects the payload as
// invalid or already present (HTTP 400), falls back to fetching the existing
// record by the given filters. Authorization failures (403) are returned
// unchanged so a bad token does not masquerade as a duplicate.
func (e *Endpoint) PostOrGet(ctx context.Context, body any, filters url.Values) (Record, error) {
	rec, err := e.Post(ctx, body)
	if err == nil {
		return rec, nil
	}
	if !IsStatus(err, 400) {
		return nil, err
	}

	e.logger.Debug("post rejected, fetching existing record",
		"resource", e.resource.Name, "filters", filters.Encode())
	return e.GetBy(ctx, filters)
}

// do performs one HTTP exchange and decodes the JSON response.
func (e *Endpoint) do(ctx context.Context, method, target string, body any) (Record, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := e.auth.Apply(req); err != nil {
		return nil, err
	}

	e.logger.Debug("pubtrack request", "method", method, "url", target)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if len(data) == 0 {
		return nil, nil
	}
	return decodeRecord(data)
}

// decodeRecord parses a response body into a Record. Top-level arrays are
// wrapped under "results" so list and envelope responses look alike.
func decodeRecord(data []byte) (Record, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	switch v := value.(type) {
	case map[string]any:
		return Record(v), nil
	case []any:
		return Record{"results": v}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected payload of type %T", ErrInvalidResponse, value)
	}
}
