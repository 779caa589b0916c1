package pubtrack

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/mapstructure"
)

// Record is one decoded JSON object from the pubtrack API. Responses are kept
// in this loose form through the endpoint layer; callers that want structure
// use Decode.
type Record map[string]any

// String returns the value under key when it is a string, or "".
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Results extracts the record list of a collection response, either a
// paginated envelope or a normalized bare array.
func (r Record) Results() ([]Record, error) {
	raw, ok := r["results"]
	if !ok {
		return nil, fmt.Errorf("%w: response carries no result list", ErrInvalidResponse)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: results is %T, not a list", ErrInvalidResponse, raw)
	}

	records := make([]Record, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: result %d is %T, not an object", ErrInvalidResponse, i, item)
		}
		records[i] = Record(obj)
	}
	return records, nil
}

// Decode copies the record into a typed struct, matching fields by their
// json tag names.
func (r Record) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(r)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// Publication is the canonical publication shape exchanged with the pubtrack
// service. Import sources map their own formats onto this before anything is
// pushed upstream.
type Publication struct {
	UUID         string   `json:"uuid,omitempty"`
	Title        string   `json:"title"`
	Published    string   `json:"published,omitempty"`
	DOI          string   `json:"doi,omitempty"`
	ExternalID   string   `json:"external_id,omitempty"`
	KitopenID    string   `json:"kitopen_id,omitempty"`
	OnKitopen    bool     `json:"on_kitopen,omitempty"`
	POFStructure string   `json:"pof_structure,omitempty"`
	Authors      []Author `json:"authors,omitempty"`
}

// Validate checks the fields an import candidate must carry. The service
// applies its own validation as well; this catches broken mappings before a
// request is spent on them.
func (p Publication) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.ExternalID, validation.Required),
		validation.Field(&p.Published, validation.Date(time.RFC3339)),
	)
}

// Author is a single natural person as tracked by pubtrack. ExternalAuthorID
// is the secondary key used to recognize an author that already exists, since
// slugs are assigned by the service.
type Author struct {
	Slug             string `json:"slug,omitempty"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name"`
	ExternalAuthorID string `json:"external_author_id,omitempty"`
}

func (a Author) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.LastName, validation.Required),
	)
}

// FullName returns "First Last", omitting whichever part is missing.
func (a Author) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Authoring links one author to one publication. Author carries the author
// slug and Publication the publication uuid.
type Authoring struct {
	Author      string `json:"author"`
	Publication string `json:"publication"`
}

// MetaAuthor groups the name variants of one observed researcher. The authors
// listed here form the roster the update workflows run over.
type MetaAuthor struct {
	Slug     string   `json:"slug,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	Authors  []Author `json:"authors"`
}
