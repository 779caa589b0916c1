package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/the16thpythonist/gopubtrack/internal/config"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file for this machine",
	Long: `Create the installation directory and an annotated config file.

The file lands in $XDG_CONFIG_HOME/pubtrack/config.yml (~/.config/pubtrack
by default). Fill in the url and token of your pubtrack installation
afterwards. An existing file is only replaced with --force.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := config.WriteTemplate(configPath, initForce)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Created config file at %s\n", path)
		fmt.Println("Fill in the url and token of your pubtrack installation.")
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: path})
	}
	return nil
}
