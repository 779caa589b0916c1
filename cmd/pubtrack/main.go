// Package main provides the pubtrack CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/the16thpythonist/gopubtrack/internal/cache"
	"github.com/the16thpythonist/gopubtrack/internal/config"
	"github.com/the16thpythonist/gopubtrack/internal/pubtrack"
	"github.com/the16thpythonist/gopubtrack/internal/sync"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// verbose enables debug logging on stderr
var verbose bool

// configPath overrides the default config file location
var configPath string

func main() {
	// A .env in the working directory may carry PUBTRACK_TOKEN and
	// SCOPUS_API_KEY; a missing file is fine.
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like unknown flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pubtrack",
	Short: "Command line client for pubtrack publication tracking services",
	Long: `pubtrack is a command line client for a pubtrack web service.

It keeps the service's publication records in sync with external sources:
  - KITOpen listing state, ids and POF structures of tracked records
  - new publications of tracked authors from their Scopus profiles
  - one-off imports from a publication PDF or a DOI

All commands output JSON by default for script integration; pass --human
for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Alternative config file for this run")
	rootCmd.Version = Version
}

// newLogger builds the stderr logger shared by all components. Debug level
// with --verbose, warnings only otherwise.
func newLogger() hclog.Logger {
	level := hclog.Warn
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Level:  level,
		Output: os.Stderr,
	})
}

// mustLoadConfig loads the CLI configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// mustConnect builds the pubtrack client from the configuration, exits on
// error.
func mustConnect(cfg *config.Config, logger hclog.Logger) *pubtrack.Client {
	opts := []pubtrack.ClientOption{
		pubtrack.WithLogger(logger),
		pubtrack.WithToken(cfg.Pubtrack.Token),
	}
	if cfg.Pubtrack.AuthScheme != "" {
		opts = append(opts, pubtrack.WithAuthenticator(&pubtrack.TokenAuthenticator{
			Scheme: cfg.Pubtrack.AuthScheme,
			Token:  cfg.Pubtrack.Token,
		}))
	}

	client, err := pubtrack.New(cfg.Pubtrack.URL, opts...)
	if err != nil {
		exitWithError(ExitConfigError, "connecting to pubtrack: %v", err)
	}
	return client
}

// buildEngine assembles the sync engine, attaching the response cache when it
// can be opened. Cache trouble downgrades to a warning and the workflows run
// uncached. The returned cleanup closes the cache.
func buildEngine(client *pubtrack.Client, cfg *config.Config, logger hclog.Logger, refresh bool) (*sync.Engine, func()) {
	opts := []sync.Option{sync.WithLogger(logger), sync.WithRefresh(refresh)}
	cleanup := func() {}

	if cfg.Cache.Path != "" {
		os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0755)
		store, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			logger.Warn("response cache unavailable", "path", cfg.Cache.Path, "error", err)
		} else {
			opts = append(opts, sync.WithCache(store))
			cleanup = func() { store.Close() }
		}
	}
	return sync.New(client, cfg, opts...), cleanup
}
