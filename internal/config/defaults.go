package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = int(2 * cfg.Server.RateLimit)
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "*"
	}
	if cfg.Embeddings.Path == "" {
		cfg.Embeddings.Path = "/usr/local/var/kotoba/data/glove/glove.6B.100d.txt"
	}
	if cfg.Embeddings.DuplicatePolicy == "" {
		cfg.Embeddings.DuplicatePolicy = "replace"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "forest"
	}
	if cfg.Index.NumTrees == 0 {
		cfg.Index.NumTrees = 50
	}
	if cfg.Index.LeafCapacity == 0 {
		cfg.Index.LeafCapacity = 32
	}
	if cfg.Index.Seed == 0 {
		cfg.Index.Seed = 42
	}
	if cfg.Analogy.TopK == 0 {
		cfg.Analogy.TopK = 4
	}
	if cfg.Analogy.CacheSize == 0 {
		cfg.Analogy.CacheSize = 1024
	}
	if cfg.Analogy.MaxSuggestions == 0 {
		cfg.Analogy.MaxSuggestions = 3
	}
	if cfg.Analogy.SuggestionDistance == 0 {
		cfg.Analogy.SuggestionDistance = 2
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "json"
	}
	if cfg.Storage.JSONPath == "" {
		cfg.Storage.JSONPath = "/usr/local/var/kotoba/data/db.json"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotoba/data/kotoba.db"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
