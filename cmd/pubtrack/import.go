package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/the16thpythonist/gopubtrack/internal/pubtrack"
	"github.com/the16thpythonist/gopubtrack/internal/sync"
)

var importDOI string

func init() {
	importCmd.Flags().StringVar(&importDOI, "doi", "", "Import by DOI instead of reading a PDF")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [pdf]",
	Short: "Import one publication from a PDF or DOI",
	Long: `Import one publication into pubtrack.

The DOI is extracted from the given PDF (or passed with --doi), the full
record is resolved through Scopus and pushed to pubtrack together with
its authors and authorings.

Examples:
  pubtrack import paper.pdf
  pubtrack import --doi 10.1021/acs.jpclett.9b02421`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	if importDOI == "" && len(args) == 0 {
		exitWithError(ExitError, "either a PDF file or --doi is required")
	}

	logger := newLogger()
	cfg := mustLoadConfig()
	client := mustConnect(cfg, logger)

	engine, cleanup := buildEngine(client, cfg, logger, false)
	defer cleanup()

	var (
		pub pubtrack.Publication
		err error
	)
	if importDOI != "" {
		pub, err = engine.ImportDOI(cmd.Context(), importDOI)
	} else {
		pub, err = engine.ImportPDF(cmd.Context(), args[0])
	}

	if errors.Is(err, sync.ErrAlreadyTracked) {
		if humanOutput {
			fmt.Printf("Already tracked as %s: %s\n", pub.UUID, pub.Title)
		} else {
			outputJSON(ImportResponse{Status: "already_tracked", UUID: pub.UUID, Title: pub.Title, DOI: pub.DOI})
		}
		return nil
	}
	if err != nil {
		exitWithError(ExitDataError, "importing publication: %v", err)
	}

	if humanOutput {
		fmt.Printf("Imported %q as %s\n", pub.Title, pub.UUID)
	} else {
		outputJSON(ImportResponse{Status: "imported", UUID: pub.UUID, Title: pub.Title, DOI: pub.DOI})
	}
	return nil
}
