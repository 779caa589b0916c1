package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/the16thpythonist/gopubtrack/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set configuration values.

Usage:
  pubtrack config                  # Show the resolved configuration
  pubtrack config url              # Get one value
  pubtrack config token <token>    # Set a value in the config file

Keys:
  url             Base URL of the pubtrack REST API
  token           API token of your pubtrack account
  auth-scheme     Authorization keyword (default TOKEN)
  scopus-api-key  Elsevier developer key for the Scopus API
  scopus-url      Alternate Scopus Search API URL
  kitopen-url     Alternate KITOpen service URL
  cache-ttl       Hours before cached source responses expire

Showing and getting report the resolved values, environment overrides
included. Setting writes to the config file only.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	// No args: show the whole resolved configuration, secrets redacted.
	if len(args) == 0 {
		showConfig()
		return nil
	}

	key := normalizeKey(args[0])

	// One arg: print a single resolved value.
	if len(args) == 1 {
		cfg := mustLoadConfig()
		value, ok := configValue(cfg, key)
		if !ok {
			exitWithError(ExitError, "unknown configuration key: %s", args[0])
		}
		if humanOutput {
			fmt.Println(value)
		} else {
			outputJSON(map[string]string{strings.ReplaceAll(key, "-", "_"): value})
		}
		return nil
	}

	// Two args: set the value in the config file.
	value := args[1]
	file := configPath
	if file == "" {
		file = config.Path()
	}

	cfg, err := config.ReadFile(file)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := setConfigValue(cfg, key, value); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := cfg.Save(file); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	if humanOutput {
		fmt.Printf("Updated %s\n", key)
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
	}
	return nil
}

func showConfig() {
	cfg := mustLoadConfig()

	file := configPath
	if file == "" {
		file = config.Path()
	}

	resp := ConfigResponse{
		File:         file,
		URL:          cfg.Pubtrack.URL,
		Token:        redact(cfg.Pubtrack.Token),
		ScopusAPIKey: redact(cfg.Scopus.APIKey),
		KitopenURL:   cfg.Kitopen.URL,
		CachePath:    cfg.Cache.Path,
		CacheTTL:     cfg.Cache.TTLHours,
	}

	if humanOutput {
		fmt.Printf("config file:    %s\n", resp.File)
		fmt.Printf("pubtrack url:   %s\n", resp.URL)
		fmt.Printf("pubtrack token: %s\n", resp.Token)
		fmt.Printf("scopus api key: %s\n", resp.ScopusAPIKey)
		if resp.KitopenURL != "" {
			fmt.Printf("kitopen url:    %s\n", resp.KitopenURL)
		}
		fmt.Printf("cache:          %s (ttl %dh)\n", resp.CachePath, resp.CacheTTL)
	} else {
		outputJSON(resp)
	}
}

// configValue resolves one configuration key. Unlike the redacted overview,
// an explicit get prints the stored value; this is the scripting interface.
func configValue(cfg *config.Config, key string) (string, bool) {
	switch key {
	case "url":
		return cfg.Pubtrack.URL, true
	case "token":
		return cfg.Pubtrack.Token, true
	case "auth-scheme":
		return cfg.Pubtrack.AuthScheme, true
	case "scopus-api-key":
		return cfg.Scopus.APIKey, true
	case "scopus-url":
		return cfg.Scopus.URL, true
	case "kitopen-url":
		return cfg.Kitopen.URL, true
	case "cache-ttl":
		return strconv.Itoa(cfg.Cache.TTLHours), true
	}
	return "", false
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "url":
		if err := config.ValidateURL(value); err != nil {
			return fmt.Errorf("url %q: %v", value, err)
		}
		cfg.Pubtrack.URL = value
	case "token":
		cfg.Pubtrack.Token = value
	case "auth-scheme":
		cfg.Pubtrack.AuthScheme = value
	case "scopus-api-key":
		cfg.Scopus.APIKey = value
	case "scopus-url":
		if err := config.ValidateURL(value); err != nil {
			return fmt.Errorf("scopus-url %q: %v", value, err)
		}
		cfg.Scopus.URL = value
	case "kitopen-url":
		if err := config.ValidateURL(value); err != nil {
			return fmt.Errorf("kitopen-url %q: %v", value, err)
		}
		cfg.Kitopen.URL = value
	case "cache-ttl":
		hours, err := strconv.Atoi(value)
		if err != nil || hours <= 0 {
			return fmt.Errorf("cache-ttl must be a positive number of hours, got %q", value)
		}
		cfg.Cache.TTLHours = hours
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// normalizeKey converts key formats (auth_scheme, AUTH-SCHEME) to the
// documented dashed lower-case form.
func normalizeKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "_", "-")
	return key
}

// redact keeps only the last characters of a secret visible.
func redact(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
