package kitopen

import (
	"strings"
	"unicode"
)

// FormatAuthor builds the author expression of the KITOpen query syntax:
// upper-cased last name, comma, first-name initial with a trailing wildcard.
//
//	FormatAuthor("Max", "Mustermann")  → "MUSTERMANN, M*"
//	FormatAuthor("", "Mustermann")     → "MUSTERMANN"
//
// The wildcard keeps abbreviated first names ("M.", "Max H.") matching the
// same repository entries.
func FormatAuthor(firstName, lastName string) string {
	last := strings.ToUpper(strings.TrimSpace(lastName))

	first := strings.TrimSpace(firstName)
	if first == "" {
		return last
	}
	initial := unicode.ToUpper([]rune(first)[0])
	return last + ", " + string(initial) + "*"
}
