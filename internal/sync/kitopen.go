package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/the16thpythonist/gopubtrack/internal/kitopen"
	"github.com/the16thpythonist/gopubtrack/internal/pubtrack"
)

// UpdateKitOpen queries KITOpen for the publications of every tracked author
// and marks the matching pubtrack records as listed there, filling in their
// KITOpen id and POF structure. Records are matched by DOI; results without
// one are skipped. start bounds the query years, DefaultStartYear applies
// when it is empty.
func (e *Engine) UpdateKitOpen(ctx context.Context, start string) (*Report, error) {
	if start == "" {
		start = DefaultStartYear
	}

	authors, err := e.roster(ctx)
	if err != nil {
		return nil, err
	}

	expressions := make([]string, len(authors))
	for i, author := range authors {
		expressions[i] = kitopen.FormatAuthor(author.FirstName, author.LastName)
	}

	e.logger.Info("querying KITOpen", "authors", len(expressions), "start", start)
	results, err := e.searchKitOpen(ctx, kitopen.Query{Authors: expressions, Start: start})
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, result := range results {
		report.Total++

		// Without a DOI there is no way to match the record.
		if result.DOI == "" {
			report.Skipped++
			continue
		}

		pub, err := e.pubtrack.PublicationByDOI(ctx, result.DOI)
		if err != nil {
			if errors.Is(err, pubtrack.ErrNoResult) {
				e.logger.Debug("publication not tracked", "doi", result.DOI)
				report.Skipped++
			} else {
				e.logger.Warn("looking up publication", "doi", result.DOI, "error", err)
				report.fail(fmt.Errorf("publication %s: %w", result.DOI, err))
			}
			continue
		}

		patch := pubtrack.Record{
			"on_kitopen":    true,
			"pof_structure": result.POFStructure,
		}
		if pub.KitopenID == "" {
			patch["kitopen_id"] = result.ID
		}

		if _, err := e.pubtrack.Publications().Patch(ctx, patch, pub.UUID); err != nil {
			e.logger.Warn("updating publication", "doi", result.DOI, "error", err)
			report.fail(fmt.Errorf("publication %s: %w", result.DOI, err))
			continue
		}
		e.logger.Debug("publication updated", "doi", result.DOI, "uuid", pub.UUID)
		report.Updated++
	}

	e.logger.Info("KITOpen update finished",
		"total", report.Total, "updated", report.Updated,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

// searchKitOpen runs the query through the response cache.
func (e *Engine) searchKitOpen(ctx context.Context, query kitopen.Query) ([]kitopen.Publication, error) {
	key := kitopenCacheKey(query)
	if payload, ok := e.cacheGet(sourceKitOpen, key); ok {
		var results []kitopen.Publication
		if err := json.Unmarshal(payload, &results); err == nil {
			e.logger.Debug("serving KITOpen results from cache")
			return results, nil
		}
	}

	results, err := e.kitopen.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	e.cachePut(sourceKitOpen, key, results)
	return results, nil
}

func kitopenCacheKey(query kitopen.Query) string {
	return strings.Join(query.Authors, " or ") + "|" + query.Start + "|" + query.End
}
