package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/the16thpythonist/gopubtrack/internal/sync"
)

// ListTitleMaxLen is the title truncation length in list output.
const ListTitleMaxLen = 60

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// ConfigResponse is the response of the config command.
type ConfigResponse struct {
	File         string `json:"file"`
	URL          string `json:"url"`
	Token        string `json:"token"`
	ScopusAPIKey string `json:"scopus_api_key"`
	KitopenURL   string `json:"kitopen_url,omitempty"`
	CachePath    string `json:"cache_path"`
	CacheTTL     int    `json:"cache_ttl_hours"`
}

// UpdateResponse is the response of a config set operation.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// ImportResponse is the response of the import command.
type ImportResponse struct {
	Status string `json:"status"`
	UUID   string `json:"uuid,omitempty"`
	Title  string `json:"title,omitempty"`
	DOI    string `json:"doi,omitempty"`
}

// printReport renders the result of one update run.
func printReport(source string, report *sync.Report) {
	if !humanOutput {
		outputJSON(report)
		return
	}

	fmt.Printf("%s update finished:\n", source)
	fmt.Printf("  Processed: %d\n", report.Total)
	if report.Imported > 0 {
		fmt.Printf("  Imported:  %d new publications\n", report.Imported)
	}
	if report.Updated > 0 {
		fmt.Printf("  Updated:   %d tracked publications\n", report.Updated)
	}
	fmt.Printf("  Skipped:   %d\n", report.Skipped)
	if report.Failed > 0 {
		fmt.Printf("  Failed:    %d\n", report.Failed)
		fmt.Println("\nErrors:")
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
