// Package config provides configuration loading and structs for the kotoba server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Index      IndexConfig      `yaml:"index"`
	Analogy    AnalogyConfig    `yaml:"analogy"`
	Storage    StorageConfig    `yaml:"storage"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RateLimit is the sustained requests per second across all clients. 0 disables limiting.
	RateLimit  float64 `yaml:"rate_limit"`
	RateBurst  int     `yaml:"rate_burst"`
	CORSOrigin string  `yaml:"cors_origin"`
}

// EmbeddingsConfig locates the pre-trained vectors file.
type EmbeddingsConfig struct {
	Path string `yaml:"path"`
	// DuplicatePolicy is "replace" (later line wins) or "reject".
	DuplicatePolicy string `yaml:"duplicate_policy"`
	// MaxWords keeps only the first N words of the file. 0 loads everything.
	MaxWords int `yaml:"max_words"`
}

// IndexConfig holds nearest-neighbor index settings.
type IndexConfig struct {
	Type         string `yaml:"type"`
	NumTrees     int    `yaml:"num_trees"`
	LeafCapacity int    `yaml:"leaf_capacity"`
	// Seed fixes the forest layout. 0 means the default seed 42.
	Seed         uint64 `yaml:"seed"`
	Workers      int    `yaml:"workers"`
	// SnapshotPath caches the built forest between restarts. Empty disables snapshots.
	SnapshotPath string `yaml:"snapshot_path"`
}

// AnalogyConfig holds query settings.
type AnalogyConfig struct {
	TopK               int   `yaml:"top_k"`
	CacheSize          int   `yaml:"cache_size"`
	MaxSuggestions     int   `yaml:"max_suggestions"`
	SuggestionDistance int   `yaml:"suggestion_distance"`
	LogRequests        *bool `yaml:"log_requests"`
}

// LogRequestsOrDefault returns whether analogy requests are logged; defaults to true when unset.
func (a *AnalogyConfig) LogRequestsOrDefault() bool {
	if a.LogRequests != nil {
		return *a.LogRequests
	}
	return true
}

// StorageConfig holds the query log backend and paths.
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	JSONPath     string `yaml:"json_path"`
	DatabasePath string `yaml:"database_path"`
	// LogIndexPath persists the log search index. Empty keeps it in memory.
	LogIndexPath string `yaml:"log_index_path"`
}

// WatchConfig holds embeddings file watch settings.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Embeddings.Path = expandPath(cfg.Embeddings.Path, configDir)
	cfg.Index.SnapshotPath = expandPath(cfg.Index.SnapshotPath, configDir)
	cfg.Storage.JSONPath = expandPath(cfg.Storage.JSONPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.LogIndexPath = expandPath(cfg.Storage.LogIndexPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Index.Type {
	case "forest", "exact":
	default:
		return fmt.Errorf("invalid index.type %q (supported: forest, exact)", c.Index.Type)
	}
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid storage.backend %q (supported: json, sqlite)", c.Storage.Backend)
	}
	switch strings.ToLower(c.Embeddings.DuplicatePolicy) {
	case "replace", "reject":
	default:
		return fmt.Errorf("invalid embeddings.duplicate_policy %q (supported: replace, reject)", c.Embeddings.DuplicatePolicy)
	}
	if c.Index.NumTrees < 0 || c.Index.LeafCapacity < 0 {
		return fmt.Errorf("index.num_trees and index.leaf_capacity must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
