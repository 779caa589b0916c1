package scopus

import "strings"

// SearchResponse is the envelope of the Scopus Search API.
type SearchResponse struct {
	Results SearchResults `json:"search-results"`
}

// SearchResults carries the entries of one result page.
type SearchResults struct {
	TotalResults string  `json:"opensearch:totalResults"`
	Entries      []Entry `json:"entry"`
}

// Entry is one publication record of a search response. Field names follow
// the prism/dc vocabulary the API uses on the wire.
type Entry struct {
	Identifier      string        `json:"dc:identifier"`
	EID             string        `json:"eid"`
	Title           string        `json:"dc:title"`
	Creator         string        `json:"dc:creator"`
	PublicationName string        `json:"prism:publicationName"`
	CoverDate       string        `json:"prism:coverDate"`
	DOI             string        `json:"prism:doi"`
	CitedByCount    string        `json:"citedby-count"`
	AggregationType string        `json:"prism:aggregationType"`
	Authors         []EntryAuthor `json:"author"`

	// Error is set on the pseudo entry Scopus returns for an empty result
	// set ("Result set was empty").
	Error string `json:"error,omitempty"`
}

// EntryAuthor is one author of a search entry (COMPLETE view).
type EntryAuthor struct {
	AuthID    string `json:"authid"`
	AuthName  string `json:"authname"`
	Surname   string `json:"surname"`
	GivenName string `json:"given-name"`
	Initials  string `json:"initials"`
}

// ScopusID returns the bare Scopus identifier, stripping the "SCOPUS_ID:"
// prefix of dc:identifier.
func (e Entry) ScopusID() string {
	return strings.TrimPrefix(e.Identifier, "SCOPUS_ID:")
}
