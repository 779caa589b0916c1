package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/the16thpythonist/gopubtrack/internal/pdf"
	"github.com/the16thpythonist/gopubtrack/internal/pubtrack"
	"github.com/the16thpythonist/gopubtrack/internal/scopus"
)

// ImportPDF extracts the DOI from the PDF at path, resolves the publication
// on Scopus and imports it into pubtrack.
func (e *Engine) ImportPDF(ctx context.Context, path string) (pubtrack.Publication, error) {
	doi, err := pdf.ExtractDOI(path)
	if err != nil {
		return pubtrack.Publication{}, err
	}
	e.logger.Info("found doi in document", "path", path, "doi", doi)

	return e.ImportDOI(ctx, doi)
}

// ImportDOI resolves one DOI on Scopus and imports the publication into
// pubtrack. When the DOI is already tracked, the existing record is returned
// together with ErrAlreadyTracked.
func (e *Engine) ImportDOI(ctx context.Context, doi string) (pubtrack.Publication, error) {
	existing, err := e.pubtrack.PublicationByDOI(ctx, doi)
	switch {
	case err == nil:
		return existing, fmt.Errorf("%w: doi %s is %s", ErrAlreadyTracked, doi, existing.UUID)
	case !errors.Is(err, pubtrack.ErrNoResult):
		return pubtrack.Publication{}, fmt.Errorf("checking doi %s: %w", doi, err)
	}

	entry, err := e.scopus.LookupDOI(ctx, doi)
	if err != nil {
		return pubtrack.Publication{}, fmt.Errorf("resolving doi %s: %w", doi, err)
	}

	pub := scopus.MapEntry(*entry)
	if err := pub.Validate(); err != nil {
		return pubtrack.Publication{}, fmt.Errorf("scopus record for %s: %w", doi, err)
	}

	return e.pubtrack.ImportPublication(ctx, pub)
}
