// Package config loads memflow settings.
//
// Settings come from three layers, later ones winning: built-in
// defaults, the optional memflow.yaml at the project root, and
// MEMFLOW_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FileName is the project-level configuration file.
const FileName = "memflow.yaml"

// Config holds every runtime setting.
type Config struct {
	// DataDir holds the SQLite index.
	DataDir string `yaml:"data_dir" env:"MEMFLOW_DATA_DIR"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"MEMFLOW_LOG_LEVEL"`
	// Index enables the SQLite search index and persisted debug history.
	Index bool `yaml:"index" env:"MEMFLOW_INDEX"`
	// MaxSearchResults caps memflow_search results.
	MaxSearchResults int `yaml:"max_search_results" env:"MEMFLOW_MAX_SEARCH_RESULTS"`
	// Paths overrides memory file locations, keyed by kind.
	Paths map[string]string `yaml:"paths"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".memflow"),
		LogLevel:         "info",
		Index:            true,
		MaxSearchResults: 20,
	}
}

// Load builds the configuration for the project at root.
func Load(root string) (Config, error) {
	cfg := Default()

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks value ranges.
func (c Config) Validate() error {
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log_level %q: must be one of: debug, info, warn, error", c.LogLevel)
	}
	if c.MaxSearchResults <= 0 {
		return fmt.Errorf("max_search_results must be positive, got %d", c.MaxSearchResults)
	}
	if c.Index && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required when the index is enabled")
	}
	return nil
}

// rootMarkers identify a memflow project directory. Path overrides live
// only in memflow.yaml, so a relocated layout is found by FileName.
var rootMarkers = []string{
	FileName,
	filepath.Join("docs", "product_requirement_docs.md"),
	filepath.Join("tasks", "tasks_plan.md"),
}

// FindProjectRoot walks up from start looking for a memflow project.
// If none is found, it returns start.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", start, err)
	}

	current := dir
	for {
		for _, m := range rootMarkers {
			if _, err := os.Stat(filepath.Join(current, m)); err == nil {
				return current, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}
