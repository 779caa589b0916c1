// Package sync implements the update workflows that reconcile the pubtrack
// service with the external publication sources.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/the16thpythonist/gopubtrack/internal/cache"
	"github.com/the16thpythonist/gopubtrack/internal/config"
	"github.com/the16thpythonist/gopubtrack/internal/kitopen"
	"github.com/the16thpythonist/gopubtrack/internal/pubtrack"
	"github.com/the16thpythonist/gopubtrack/internal/scopus"
)

// DefaultStartYear bounds KITOpen queries when no explicit start is given.
const DefaultStartYear = "2015"

// Cache source names.
const (
	sourceKitOpen = "kitopen"
	sourceScopus  = "scopus"
)

// Errors.
var (
	// ErrEmptyRoster is returned when pubtrack tracks no meta authors, so
	// there is nothing to query the sources for.
	ErrEmptyRoster = errors.New("no meta authors tracked on pubtrack")

	// ErrAlreadyTracked is returned by ImportDOI when pubtrack already
	// carries a publication with that DOI.
	ErrAlreadyTracked = errors.New("publication already tracked")
)

// Report summarizes one sync run.
type Report struct {
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *Report) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err.Error())
}

// Engine drives the update workflows. It combines the pubtrack client with
// the clients for the external sources and an optional response cache.
type Engine struct {
	pubtrack *pubtrack.Client
	kitopen  *kitopen.Client
	scopus   *scopus.Client
	store    *cache.Store
	cfg      *config.Config
	logger   hclog.Logger
	refresh  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithKitOpen sets the KITOpen client. Without this option a default client
// is built from the configuration.
func WithKitOpen(c *kitopen.Client) Option {
	return func(e *Engine) {
		e.kitopen = c
	}
}

// WithScopus sets the Scopus client. Without this option a default client is
// built from the configuration.
func WithScopus(c *scopus.Client) Option {
	return func(e *Engine) {
		e.scopus = c
	}
}

// WithCache enables the response cache. The caller keeps ownership of the
// store and closes it after use.
func WithCache(store *cache.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRefresh makes the engine bypass cached responses and query the sources
// again. Fresh responses still replace the cached ones.
func WithRefresh(refresh bool) Option {
	return func(e *Engine) {
		e.refresh = refresh
	}
}

// New creates an Engine talking to the given pubtrack installation. cfg
// supplies the source settings and the cache TTL and must not be nil.
func New(pt *pubtrack.Client, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		pubtrack: pt,
		cfg:      cfg,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("sync")

	if e.kitopen == nil {
		kitopenOpts := []kitopen.ClientOption{kitopen.WithLogger(e.logger)}
		if cfg.Kitopen.URL != "" {
			kitopenOpts = append(kitopenOpts, kitopen.WithBaseURL(cfg.Kitopen.URL))
		}
		e.kitopen = kitopen.NewClient(kitopenOpts...)
	}
	if e.scopus == nil {
		scopusOpts := []scopus.ClientOption{scopus.WithLogger(e.logger)}
		if cfg.Scopus.APIKey != "" {
			scopusOpts = append(scopusOpts, scopus.WithAPIKey(cfg.Scopus.APIKey))
		}
		if cfg.Scopus.URL != "" {
			scopusOpts = append(scopusOpts, scopus.WithBaseURL(cfg.Scopus.URL))
		}
		e.scopus = scopus.NewClient(scopusOpts...)
	}
	return e
}

// roster fetches the meta author list and flattens it into the individual
// author name variants.
func (e *Engine) roster(ctx context.Context) ([]pubtrack.Author, error) {
	metaAuthors, err := e.pubtrack.ListMetaAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching meta authors: %w", err)
	}

	var authors []pubtrack.Author
	for _, metaAuthor := range metaAuthors {
		authors = append(authors, metaAuthor.Authors...)
	}
	if len(authors) == 0 {
		return nil, ErrEmptyRoster
	}
	return authors, nil
}

// knownKeys indexes the identifiers of publications pubtrack already tracks.
type knownKeys map[string]struct{}

func (k knownKeys) add(keys ...string) {
	for _, key := range keys {
		if key != "" {
			k[key] = struct{}{}
		}
	}
}

func (k knownKeys) has(keys ...string) bool {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := k[key]; ok {
			return true
		}
	}
	return false
}

// knownPublications builds the known key index from the tracked publications.
func (e *Engine) knownPublications(ctx context.Context) (knownKeys, error) {
	pubs, err := e.pubtrack.ListPublications(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching tracked publications: %w", err)
	}

	known := make(knownKeys, len(pubs))
	for _, pub := range pubs {
		known.add(pub.ExternalID, pub.DOI)
	}
	return known, nil
}

// cacheGet returns the cached payload for source and key. Misses when no
// cache is configured, the engine runs with refresh, or the entry expired.
func (e *Engine) cacheGet(source, key string) ([]byte, bool) {
	if e.store == nil || e.refresh {
		return nil, false
	}

	payload, ok, err := e.store.Get(source, key, e.cfg.Cache.TTL())
	if err != nil {
		e.logger.Warn("cache read failed", "source", source, "error", err)
		return nil, false
	}
	return payload, ok
}

// cachePut stores value as the cached response for source and key. Cache
// trouble is logged, never fatal.
func (e *Engine) cachePut(source, key string, value any) {
	if e.store == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := e.store.Put(source, key, payload); err != nil {
		e.logger.Warn("cache write failed", "source", source, "error", err)
	}
}
