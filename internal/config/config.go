// Package config collects every tunable of a run: defaults, an optional
// YAML file, environment variables and finally command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full run configuration
type Config struct {
	UserAgent      string             `yaml:"user_agent"`
	RequestsPerSec float64            `yaml:"requests_per_sec"`
	HostRates      map[string]float64 `yaml:"host_rates"`

	Catalogue CatalogueConfig `yaml:"catalogue"`
	Match     MatchConfig     `yaml:"match"`
	Covers    CoverConfig     `yaml:"covers"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`

	GeocodeCache string `yaml:"geocode_cache"`
	NominatimURL string `yaml:"nominatim_url"`

	MaxTitles int  `yaml:"max_titles"`
	Workers   int  `yaml:"workers"`
	Debug     bool `yaml:"debug"`
}

// CatalogueConfig holds the catalogue endpoints
type CatalogueConfig struct {
	BaseURL    string `yaml:"base_url"`
	SearchPath string `yaml:"search_path"`
	EpikURL    string `yaml:"epik_url"`
	MaxHits    int    `yaml:"max_hits"`
	MaxPages   int    `yaml:"max_pages"`
}

// MatchConfig holds the comparator thresholds
type MatchConfig struct {
	AcceptThreshold float64 `yaml:"accept_threshold"`
	Margin          float64 `yaml:"margin"`
}

// CoverConfig holds the cover endpoints and size gates
type CoverConfig struct {
	MinBytes             int64  `yaml:"min_bytes"`
	GoogleBooksMinBytes  int64  `yaml:"google_books_min_bytes"`
	GoogleBooksURL       string `yaml:"google_books_url"`
	GoogleBooksAPI       string `yaml:"google_books_api"`
	OpenLibraryCoversURL string `yaml:"openlibrary_covers_url"`
	OpenLibrarySearchURL string `yaml:"openlibrary_search_url"`
	GoogleImagesURL      string `yaml:"google_images_url"`
}

// TimeoutConfig holds per-target timeouts
type TimeoutConfig struct {
	Catalogue time.Duration `yaml:"catalogue"`
	Epik      time.Duration `yaml:"epik"`
	Cover     time.Duration `yaml:"cover"`
	Images    time.Duration `yaml:"images"`
	Geocode   time.Duration `yaml:"geocode"`
}

// Load builds a config from defaults, the optional YAML file at path and the
// environment. Flags are applied by the caller afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOODREADER_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("ESTER_BASE_URL"); v != "" {
		cfg.Catalogue.BaseURL = v
	}
	if v := os.Getenv("EPIK_URL"); v != "" {
		cfg.Catalogue.EpikURL = v
	}
	if v := os.Getenv("GOODREADER_GEOCODE_CACHE"); v != "" {
		cfg.GeocodeCache = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("GOODREADER_RPS"), 64); err == nil {
		cfg.RequestsPerSec = v
	}
	if v, err := strconv.Atoi(os.Getenv("GOODREADER_THREADS")); err == nil {
		cfg.Workers = v
	}
	// ESTER_DEBUG=1 is the historical switch
	if v, err := strconv.Atoi(os.Getenv("ESTER_DEBUG")); err == nil && v != 0 {
		cfg.Debug = true
	}
}

// Validate rejects settings the pipeline cannot honour
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	}
	if c.MaxTitles < 0 {
		return fmt.Errorf("max titles must be positive or 0 for unbounded, got %d", c.MaxTitles)
	}
	if c.Match.AcceptThreshold < 0 || c.Match.AcceptThreshold > 1 {
		return fmt.Errorf("accept threshold must be within [0,1], got %f", c.Match.AcceptThreshold)
	}
	if c.Match.Margin < 0 || c.Match.Margin > 1 {
		return fmt.Errorf("margin must be within [0,1], got %f", c.Match.Margin)
	}
	if c.Catalogue.BaseURL == "" {
		return fmt.Errorf("catalogue base URL is required")
	}
	if c.Covers.MinBytes < 0 || c.Covers.GoogleBooksMinBytes < 0 {
		return fmt.Errorf("cover size gates must not be negative")
	}
	return nil
}

// SearchURL is the catalogue's search endpoint
func (c *Config) SearchURL() string {
	return c.Catalogue.BaseURL + c.Catalogue.SearchPath
}
