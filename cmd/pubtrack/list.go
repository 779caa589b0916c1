package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/the16thpythonist/gopubtrack/internal/pubtrack"
)

var listLimit int

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum results to show (0 = all)")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [publications|meta-authors]",
	Short: "List tracked publications or the meta author roster",
	Long: `List a collection of the pubtrack service. Without an argument the
tracked publications are listed; "meta-authors" lists the author roster
that drives the update commands.

Examples:
  pubtrack list
  pubtrack list --limit 20 --human
  pubtrack list meta-authors`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	collection := "publications"
	if len(args) > 0 {
		collection = args[0]
	}

	logger := newLogger()
	cfg := mustLoadConfig()
	client := mustConnect(cfg, logger)

	switch collection {
	case "publications":
		return listPublications(cmd, client)
	case "meta-authors":
		return listMetaAuthors(cmd, client)
	default:
		exitWithError(ExitError, "unknown collection %q (use publications or meta-authors)", collection)
		return nil
	}
}

func listPublications(cmd *cobra.Command, client *pubtrack.Client) error {
	pubs, err := client.ListPublications(cmd.Context(), nil)
	if err != nil {
		exitWithError(ExitError, "listing publications: %v", err)
	}
	total := len(pubs)
	if listLimit > 0 && len(pubs) > listLimit {
		pubs = pubs[:listLimit]
	}

	if humanOutput {
		if total == 0 {
			fmt.Println("No publications tracked")
			return nil
		}
		if len(pubs) < total {
			fmt.Printf("%d publications (showing first %d):\n\n", total, len(pubs))
		} else {
			fmt.Printf("%d publications tracked:\n\n", total)
		}
		for _, pub := range pubs {
			fmt.Printf("  %-24s %s\n", pub.DOI, truncateString(pub.Title, ListTitleMaxLen))
		}
	} else {
		if pubs == nil {
			pubs = []pubtrack.Publication{}
		}
		outputJSON(pubs)
	}
	return nil
}

func listMetaAuthors(cmd *cobra.Command, client *pubtrack.Client) error {
	metaAuthors, err := client.ListMetaAuthors(cmd.Context())
	if err != nil {
		exitWithError(ExitError, "listing meta authors: %v", err)
	}

	if humanOutput {
		if len(metaAuthors) == 0 {
			fmt.Println("No meta authors tracked")
			return nil
		}
		fmt.Printf("%d meta authors tracked:\n\n", len(metaAuthors))
		for _, ma := range metaAuthors {
			name := ma.FullName
			if name == "" {
				name = ma.Slug
			}
			fmt.Printf("  %-28s %d author ids\n", name, len(ma.Authors))
		}
	} else {
		if metaAuthors == nil {
			metaAuthors = []pubtrack.MetaAuthor{}
		}
		outputJSON(metaAuthors)
	}
	return nil
}
