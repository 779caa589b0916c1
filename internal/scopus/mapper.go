package scopus

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/the16thpythonist/gopubtrack/internal/pubtrack"
)

// MapEntry converts one Scopus search entry into the canonical publication
// record pushed into pubtrack. The Scopus identifiers become the external
// keys: the document id as external_id, the author profile ids as
// external_author_id.
func MapEntry(entry Entry) pubtrack.Publication {
	return pubtrack.Publication{
		Title:      entry.Title,
		Published:  NormalizeDate(entry.CoverDate),
		DOI:        entry.DOI,
		ExternalID: entry.ScopusID(),
		Authors:    mapAuthors(entry.Authors),
	}
}

func mapAuthors(entryAuthors []EntryAuthor) []pubtrack.Author {
	authors := make([]pubtrack.Author, 0, len(entryAuthors))
	for _, a := range entryAuthors {
		first, last := a.GivenName, a.Surname
		if last == "" {
			first, last = splitIndexedName(a.AuthName)
		}
		if last == "" {
			continue
		}
		authors = append(authors, pubtrack.Author{
			FirstName:        first,
			LastName:         last,
			ExternalAuthorID: a.AuthID,
		})
	}
	return authors
}

// splitIndexedName takes an indexed name ("Mustermann M.") apart. Scopus puts
// the surname first, so the first field is the last name and everything after
// it belongs to the first name.
func splitIndexedName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	if idx := strings.Index(name, ","); idx > 0 {
		return strings.TrimSpace(name[idx+1:]), strings.TrimSpace(name[:idx])
	}

	parts := strings.Fields(name)
	if len(parts) == 1 {
		return "", parts[0]
	}
	return strings.Join(parts[1:], " "), parts[0]
}

// NormalizeDate parses the loosely formatted dates Scopus delivers
// (prism:coverDate is usually "2006-01-02", but not always) and returns the
// RFC3339 form expected by pubtrack. Unparseable input maps to "".
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
