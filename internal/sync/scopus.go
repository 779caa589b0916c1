package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/the16thpythonist/gopubtrack/internal/scopus"
)

// UpdateScopus walks the Scopus profiles of every tracked author and imports
// the publications pubtrack does not know yet. Entries are recognized as
// known by their Scopus id or DOI, so a paper shared by several tracked
// authors is only imported once.
func (e *Engine) UpdateScopus(ctx context.Context) (*Report, error) {
	authors, err := e.roster(ctx)
	if err != nil {
		return nil, err
	}

	known, err := e.knownPublications(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, author := range authors {
		if author.ExternalAuthorID == "" {
			e.logger.Debug("author has no scopus profile", "author", author.FullName())
			continue
		}

		e.logger.Info("querying Scopus", "author", author.FullName(), "scopus_id", author.ExternalAuthorID)
		entries, err := e.searchScopus(ctx, author.ExternalAuthorID)
		if err != nil {
			e.logger.Warn("querying Scopus failed", "author", author.FullName(), "error", err)
			report.fail(fmt.Errorf("author %s: %w", author.FullName(), err))
			continue
		}

		for _, entry := range entries {
			report.Total++

			if known.has(entry.ScopusID(), entry.DOI) {
				report.Skipped++
				continue
			}

			pub := scopus.MapEntry(entry)
			if err := pub.Validate(); err != nil {
				e.logger.Warn("scopus record is unusable", "scopus_id", entry.ScopusID(), "error", err)
				report.fail(fmt.Errorf("scopus %s: %w", entry.ScopusID(), err))
				continue
			}

			imported, err := e.pubtrack.ImportPublication(ctx, pub)
			if err != nil {
				report.fail(fmt.Errorf("importing %q: %w", pub.Title, err))
				continue
			}

			known.add(imported.ExternalID, imported.DOI)
			report.Imported++
		}
	}

	e.logger.Info("Scopus update finished",
		"total", report.Total, "imported", report.Imported,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

// searchScopus runs the author query through the response cache.
func (e *Engine) searchScopus(ctx context.Context, authorID string) ([]scopus.Entry, error) {
	if payload, ok := e.cacheGet(sourceScopus, authorID); ok {
		var entries []scopus.Entry
		if err := json.Unmarshal(payload, &entries); err == nil {
			e.logger.Debug("serving Scopus results from cache", "scopus_id", authorID)
			return entries, nil
		}
	}

	entries, err := e.scopus.SearchByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	e.cachePut(sourceScopus, authorID, entries)
	return entries, nil
}
