package main

import (
	"github.com/spf13/cobra"
)

var scopusRefresh bool

func init() {
	updateScopusCmd.Flags().BoolVar(&scopusRefresh, "refresh", false, "Ignore cached Scopus responses")
	rootCmd.AddCommand(updateScopusCmd)
}

var updateScopusCmd = &cobra.Command{
	Use:   "update-scopus",
	Short: "Import new publications of tracked authors from Scopus",
	Long: `Import publications from the Scopus profiles of all tracked authors.

Every author variant carrying a Scopus author id is queried, and entries
pubtrack does not know yet are imported together with their authors and
authorings. Known entries are recognized by their Scopus id or DOI.`,
	RunE: runUpdateScopus,
}

func runUpdateScopus(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := mustLoadConfig()
	client := mustConnect(cfg, logger)

	engine, cleanup := buildEngine(client, cfg, logger, scopusRefresh)
	defer cleanup()

	report, err := engine.UpdateScopus(cmd.Context())
	if err != nil {
		exitWithError(ExitError, "updating from Scopus: %v", err)
	}
	printReport("Scopus", report)
	return nil
}
