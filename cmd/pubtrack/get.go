package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/the16thpythonist/gopubtrack/internal/pubtrack"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <doi>",
	Short: "Show one tracked publication by DOI",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := mustLoadConfig()
	client := mustConnect(cfg, logger)

	pub, err := client.PublicationByDOI(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, pubtrack.ErrNoResult) {
			exitWithError(ExitDataError, "no tracked publication with doi %s", args[0])
		}
		exitWithError(ExitError, "fetching publication: %v", err)
	}

	if humanOutput {
		fmt.Println(pub.Title)
		fmt.Printf("  uuid:      %s\n", pub.UUID)
		fmt.Printf("  doi:       %s\n", pub.DOI)
		if pub.Published != "" {
			fmt.Printf("  published: %s\n", pub.Published)
		}
		if pub.OnKitopen {
			fmt.Printf("  kitopen:   %s (%s)\n", pub.KitopenID, pub.POFStructure)
		}
	} else {
		outputJSON(pub)
	}
	return nil
}
