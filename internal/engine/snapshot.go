package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyperjump/kotoba/internal/config"
	"github.com/hyperjump/kotoba/internal/vector"
)

// BuildSnapshot loads the configured embeddings, builds the forest and writes it
// to path (the configured snapshot path when empty).
func BuildSnapshot(ctx context.Context, cfg *config.Config, path string, logger *zap.Logger) (*vector.Forest, error) {
	if path == "" {
		path = cfg.Index.SnapshotPath
	}
	if path == "" {
		return nil, errors.New("no snapshot path configured")
	}
	store, err := LoadVocabulary(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("building forest",
		zap.Int("words", store.Len()),
		zap.Int("trees", cfg.Index.NumTrees),
		zap.Int("leaf_capacity", cfg.Index.LeafCapacity),
	)
	f, err := vector.Build(ctx, store, BuildOptions(cfg))
	if err != nil {
		return nil, err
	}
	if err := f.SaveFile(path); err != nil {
		return nil, err
	}
	logger.Info("snapshot written", zap.String("path", path))
	return f, nil
}
