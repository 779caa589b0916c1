// Package pdf extracts DOIs from publication PDFs.
package pdf

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoDOI is returned when no DOI could be found in the document.
var ErrNoDOI = errors.New("no doi found in document")

// doiPattern matches DOIs of the form 10.XXXX/suffix. The suffix stops at
// whitespace and characters that never occur in registered DOIs.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// maxScanPages limits the DOI search. Publishers put the DOI on the first
// page, so scanning further mostly turns up DOIs of cited works.
const maxScanPages = 3

// ExtractDOI scans the first pages of the PDF at path for a DOI.
// Returns ErrNoDOI when the document contains none.
func ExtractDOI(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := r.NumPage()
	if pages > maxScanPages {
		pages = maxScanPages
	}

	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if doi := FindDOI(text); doi != "" {
			return doi, nil
		}
	}

	return "", ErrNoDOI
}

// FindDOI returns the first plausible DOI in text, or "" when there is none.
// Trailing sentence punctuation is stripped from the match.
func FindDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if validDOI(match) {
			return match
		}
	}
	return ""
}

func validDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}
