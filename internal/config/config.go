// Package config handles the pubtrack CLI configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

const (
	// InstallDirName is the directory name under XDG_CONFIG_HOME.
	InstallDirName = "pubtrack"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// CacheFile is the response cache database name.
	CacheFile = "cache.db"
)

// DefaultCacheTTLHours is how long cached source responses stay fresh.
const DefaultCacheTTLHours = 24

// ErrNotConfigured is returned when no config file exists and the environment
// does not provide the connection settings either.
var ErrNotConfigured = errors.New("pubtrack is not configured")

// Config is the complete configuration of the CLI. It is loaded once by the
// command layer and passed by reference into everything that needs it; there
// is no ambient global to reach for.
type Config struct {
	Pubtrack PubtrackConfig `yaml:"pubtrack"`
	Kitopen  KitopenConfig  `yaml:"kitopen,omitempty"`
	Scopus   ScopusConfig   `yaml:"scopus,omitempty"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
}

// PubtrackConfig describes the pubtrack installation to talk to.
type PubtrackConfig struct {
	// URL is the base URL of the REST API, e.g. "https://pubtrack.example.org/api/v1".
	URL string `yaml:"url"`
	// Token is the API token, sent as "Authorization: TOKEN <token>".
	Token string `yaml:"token"`
	// AuthScheme overrides the TOKEN keyword when an installation uses a
	// different one.
	AuthScheme string `yaml:"auth_scheme,omitempty"`
}

// KitopenConfig describes the institutional repository search API.
type KitopenConfig struct {
	// URL overrides the default KITOpen service URL.
	URL string `yaml:"url,omitempty"`
}

// ScopusConfig describes the Scopus citation database access.
type ScopusConfig struct {
	// APIKey is the Elsevier developer key, sent as X-ELS-APIKey.
	APIKey string `yaml:"api_key"`
	// URL overrides the default Scopus search API URL.
	URL string `yaml:"url,omitempty"`
}

// CacheConfig controls the local response cache.
type CacheConfig struct {
	// Path of the sqlite cache file. Defaults to <install dir>/cache.db.
	Path string `yaml:"path,omitempty"`
	// TTLHours is the cache entry lifetime. Defaults to DefaultCacheTTLHours.
	TTLHours int `yaml:"ttl_hours,omitempty"`
}

// TTL returns the configured entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// InstallDir returns the CLI's installation directory.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/pubtrack.
func InstallDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, InstallDirName)
}

// Path returns the path of the config file inside the installation directory.
func Path() string {
	dir := InstallDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ConfigFile)
}

// Default returns a config with all defaults filled in.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{TTLHours: DefaultCacheTTLHours},
	}
}

// Load reads the configuration from path, falling back to Path() when path is
// empty. A missing file is not fatal as long as the environment supplies the
// connection settings; ErrNotConfigured is returned otherwise. The result is
// a fresh value on every call.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to the environment overrides below.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if cfg.Pubtrack.URL == "" || cfg.Pubtrack.Token == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, HelpfulConfigMessage())
	}
	return cfg, nil
}

// ReadFile reads the configuration file as stored, without environment
// overrides and without the configured-check. This is the view the config
// command edits; a missing file yields a default config so values can be
// set before the file exists.
func ReadFile(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv lets environment variables override file values, so tokens can be
// kept out of the config file entirely.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PUBTRACK_URL"); v != "" {
		cfg.Pubtrack.URL = v
	}
	if v := os.Getenv("PUBTRACK_TOKEN"); v != "" {
		cfg.Pubtrack.Token = v
	}
	if v := os.Getenv("SCOPUS_API_KEY"); v != "" {
		cfg.Scopus.APIKey = v
	}
	if v := os.Getenv("KITOPEN_URL"); v != "" {
		cfg.Kitopen.URL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Cache.TTLHours <= 0 {
		cfg.Cache.TTLHours = DefaultCacheTTLHours
	}
	if cfg.Cache.Path == "" {
		if dir := InstallDir(); dir != "" {
			cfg.Cache.Path = filepath.Join(dir, CacheFile)
		}
	}
	cfg.Cache.Path = ExpandPath(cfg.Cache.Path)
}

// Validate checks the loaded configuration for obvious mistakes.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Pubtrack, validation.Required),
	)
}

// Validate checks the pubtrack connection settings.
func (p PubtrackConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.URL, validation.Required, validation.By(checkURL)),
		validation.Field(&p.Token, validation.Required),
	)
}

func checkURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}

// ValidateURL checks a single URL value the way the struct validation does.
// An empty value is allowed; it clears the setting.
func ValidateURL(value string) error {
	return checkURL(value)
}

// Save writes the configuration to path, creating the parent directory as
// needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Template is the annotated config written by the init command.
const Template = `# pubtrack CLI configuration.

pubtrack:
  # Base URL of the pubtrack REST API, including the version prefix.
  url: "http://localhost:8000/api/v1"
  # API token of your pubtrack account. Sent with every request as
  # "Authorization: TOKEN <token>". Can also be set via PUBTRACK_TOKEN.
  token: ""

scopus:
  # Elsevier developer API key for the Scopus search API.
  # Can also be set via SCOPUS_API_KEY.
  api_key: ""

cache:
  # Hours before cached responses from external sources expire.
  ttl_hours: 24
`

// WriteTemplate creates the installation directory and writes the annotated
// config template. An existing file is only replaced when force is set.
func WriteTemplate(path string, force bool) (string, error) {
	if path == "" {
		path = Path()
	}
	if path == "" {
		return "", fmt.Errorf("cannot determine config location (no home directory)")
	}

	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Template), 0600); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}
	return path, nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// HelpfulConfigMessage explains how to set up the CLI when no usable
// configuration was found.
func HelpfulConfigMessage() string {
	path := Path()
	return fmt.Sprintf(`no pubtrack service configured.

Tip: run "pubtrack init" to create %s,
then fill in the url and token of your pubtrack installation.
The PUBTRACK_URL and PUBTRACK_TOKEN environment variables work as well.`, path)
}
