package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid: %v", err)
	}
	if cfg.Workers != 1 {
		t.Errorf("Expected default worker count 1, got %d", cfg.Workers)
	}
	if cfg.Covers.MinBytes != 1337 || cfg.Covers.GoogleBooksMinBytes != 11264 {
		t.Errorf("Unexpected size gates: %d / %d", cfg.Covers.MinBytes, cfg.Covers.GoogleBooksMinBytes)
	}
	if cfg.SearchURL() != "https://www.ester.ee/search~S8*est" {
		t.Errorf("Unexpected search URL %s", cfg.SearchURL())
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goodreader.yaml")
	content := `
user_agent: from-file/1.0
match:
  accept_threshold: 0.8
  margin: 0.2
timeouts:
  cover: 3s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ESTER_BASE_URL", "http://localhost:9999")
	t.Setenv("ESTER_DEBUG", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UserAgent != "from-file/1.0" {
		t.Errorf("Expected user agent from file, got %s", cfg.UserAgent)
	}
	if cfg.Match.AcceptThreshold != 0.8 || cfg.Match.Margin != 0.2 {
		t.Errorf("Unexpected match config %+v", cfg.Match)
	}
	if cfg.Timeouts.Cover != 3*time.Second {
		t.Errorf("Expected 3s cover timeout, got %v", cfg.Timeouts.Cover)
	}
	if cfg.Timeouts.Catalogue != 60*time.Second {
		t.Errorf("Expected untouched catalogue timeout, got %v", cfg.Timeouts.Catalogue)
	}
	if cfg.Catalogue.BaseURL != "http://localhost:9999" {
		t.Errorf("Expected env base URL, got %s", cfg.Catalogue.BaseURL)
	}
	if !cfg.Debug {
		t.Error("Expected ESTER_DEBUG to enable debug")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative max titles", func(c *Config) { c.MaxTitles = -1 }},
		{"threshold above one", func(c *Config) { c.Match.AcceptThreshold = 1.5 }},
		{"negative margin", func(c *Config) { c.Match.Margin = -0.1 }},
		{"no base url", func(c *Config) { c.Catalogue.BaseURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
