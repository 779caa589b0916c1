package main

import (
	"github.com/spf13/cobra"

	"github.com/the16thpythonist/gopubtrack/internal/sync"
)

var (
	kitopenStart   string
	kitopenRefresh bool
)

func init() {
	updateKitopenCmd.Flags().StringVarP(&kitopenStart, "start", "s", sync.DefaultStartYear, "The year to start the KITOpen query from")
	updateKitopenCmd.Flags().BoolVar(&kitopenRefresh, "refresh", false, "Ignore cached KITOpen responses")
	rootCmd.AddCommand(updateKitopenCmd)
}

var updateKitopenCmd = &cobra.Command{
	Use:   "update-kitopen",
	Short: "Update tracked publications with KITOpen information",
	Long: `Update the pubtrack records with KITOpen information.

The names of all tracked authors are fetched from pubtrack and used to
query the KITOpen database. Tracked publications found there are marked
as listed and get their KITOpen id and POF structure filled in.`,
	RunE: runUpdateKitopen,
}

func runUpdateKitopen(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := mustLoadConfig()
	client := mustConnect(cfg, logger)

	engine, cleanup := buildEngine(client, cfg, logger, kitopenRefresh)
	defer cleanup()

	report, err := engine.UpdateKitOpen(cmd.Context(), kitopenStart)
	if err != nil {
		exitWithError(ExitError, "updating from KITOpen: %v", err)
	}
	printReport("KITOpen", report)
	return nil
}
