// Package engine owns the loaded vocabulary and index and serves analogy queries.
//
// The vocabulary, index and solver are bundled into an immutable Generation. A
// reload builds a complete new Generation off to the side and swaps it in
// atomically; queries already running keep using the one they started with.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotoba/internal/analogy"
	"github.com/hyperjump/kotoba/internal/config"
	"github.com/hyperjump/kotoba/internal/keyword"
	"github.com/hyperjump/kotoba/internal/models"
	"github.com/hyperjump/kotoba/internal/storage"
	"github.com/hyperjump/kotoba/internal/suggest"
	"github.com/hyperjump/kotoba/internal/vector"
	"github.com/hyperjump/kotoba/internal/vocab"
)

// ErrNotReady is returned before the first successful load.
var ErrNotReady = errors.New("engine has no vocabulary loaded")

// Generation is one loaded vocabulary with its index and solver.
type Generation struct {
	ID           uint64
	Store        *vocab.Store
	Index        vector.Index
	Solver       *analogy.Solver
	Source       string
	LoadedAt     time.Time
	LoadTime     time.Duration
	BuildTime    time.Duration
	FromSnapshot bool
}

// Engine serves analogy and neighbor queries and records them in the query log.
type Engine struct {
	cfg      *config.Config
	logger   *zap.Logger
	logStore storage.LogStore
	logIndex *keyword.BleveIndex

	current  atomic.Pointer[Generation]
	nextID   atomic.Uint64
	reloadMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLogStore records every analogy request in store.
func WithLogStore(store storage.LogStore) Option {
	return func(e *Engine) { e.logStore = store }
}

// WithLogIndex keeps idx in sync with the log store for SearchLogs.
func WithLogIndex(idx *keyword.BleveIndex) Option {
	return func(e *Engine) { e.logIndex = idx }
}

// New creates an engine. Call Reload to load the vocabulary before querying.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Current returns the generation serving queries, or nil before the first load.
func (e *Engine) Current() *Generation {
	return e.current.Load()
}

func (e *Engine) generation() (*Generation, error) {
	g := e.current.Load()
	if g == nil {
		return nil, ErrNotReady
	}
	return g, nil
}

// Reload loads the embeddings file, builds (or restores) the index and swaps the
// new generation in. On failure the previous generation keeps serving.
// Concurrent reloads are serialized.
func (e *Engine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	path := e.cfg.Embeddings.Path
	e.logger.Info("loading embeddings", zap.String("path", path))

	start := time.Now()
	store, err := LoadVocabulary(e.cfg)
	if err != nil {
		e.logger.Error("failed to load embeddings", zap.String("path", path), zap.Error(err))
		return err
	}
	loadTime := time.Since(start)
	e.logger.Info("embeddings loaded",
		zap.Int("words", store.Len()),
		zap.Int("dimensions", store.Dim()),
		zap.Duration("elapsed", loadTime),
	)

	start = time.Now()
	idx, fromSnapshot, err := e.buildIndex(ctx, store)
	if err != nil {
		e.logger.Error("failed to build index", zap.Error(err))
		return err
	}
	buildTime := time.Since(start)

	sg := suggest.New(store,
		suggest.WithMaxDistance(e.cfg.Analogy.SuggestionDistance),
		suggest.WithMaxSuggestions(e.cfg.Analogy.MaxSuggestions),
		suggest.WithCacheSize(e.cfg.Analogy.CacheSize),
	)
	gen := &Generation{
		ID:           e.nextID.Add(1),
		Store:        store,
		Index:        idx,
		Solver:       analogy.NewSolver(store, idx, analogy.WithCache(e.cfg.Analogy.CacheSize), analogy.WithSuggester(sg)),
		Source:       path,
		LoadedAt:     time.Now(),
		LoadTime:     loadTime,
		BuildTime:    buildTime,
		FromSnapshot: fromSnapshot,
	}
	e.current.Store(gen)

	e.logger.Info("index ready",
		zap.Uint64("generation", gen.ID),
		zap.String("type", idx.Type()),
		zap.Bool("from_snapshot", fromSnapshot),
		zap.Duration("elapsed", buildTime),
	)
	return nil
}

// LoadVocabulary reads the embeddings file named by cfg.
func LoadVocabulary(cfg *config.Config) (*vocab.Store, error) {
	policy, err := vocab.ParseDuplicatePolicy(cfg.Embeddings.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	store, err := vocab.LoadFile(cfg.Embeddings.Path,
		vocab.WithDuplicatePolicy(policy),
		vocab.WithMaxWords(cfg.Embeddings.MaxWords),
	)
	if err != nil {
		return nil, fmt.Errorf("load embeddings %s: %w", cfg.Embeddings.Path, err)
	}
	return store, nil
}

// BuildOptions maps the index config onto forest build options.
func BuildOptions(cfg *config.Config) vector.BuildOptions {
	return vector.BuildOptions{
		NumTrees:     cfg.Index.NumTrees,
		LeafCapacity: cfg.Index.LeafCapacity,
		Seed:         cfg.Index.Seed,
		Workers:      cfg.Index.Workers,
	}
}

// buildIndex restores the forest from its snapshot when one matches store, and
// otherwise builds it (saving a new snapshot when configured).
func (e *Engine) buildIndex(ctx context.Context, store *vocab.Store) (vector.Index, bool, error) {
	snapshot := e.cfg.Index.SnapshotPath
	kind := vector.IndexType(e.cfg.Index.Type)
	if (kind != vector.IndexTypeForest && kind != "") || snapshot == "" {
		idx, err := vector.NewIndex(ctx, e.cfg.Index.Type, store, BuildOptions(e.cfg))
		return idx, false, err
	}

	f, err := vector.LoadFile(snapshot, store)
	if err == nil && !f.Options().SameLayout(BuildOptions(e.cfg)) {
		err = fmt.Errorf("%w: built with different options", vector.ErrSnapshotMismatch)
	}
	if err == nil {
		return f, true, nil
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		e.logger.Info("no index snapshot, building", zap.String("path", snapshot))
	case errors.Is(err, vector.ErrSnapshotMismatch):
		e.logger.Info("index snapshot is stale, rebuilding", zap.String("path", snapshot))
	default:
		e.logger.Warn("unreadable index snapshot, rebuilding", zap.String("path", snapshot), zap.Error(err))
	}

	f, err = vector.Build(ctx, store, BuildOptions(e.cfg))
	if err != nil {
		return nil, false, err
	}
	if err := f.SaveFile(snapshot); err != nil {
		e.logger.Warn("failed to save index snapshot", zap.String("path", snapshot), zap.Error(err))
	}
	return f, false, nil
}

// Analogy answers "A is to B as C is to ?". Unknown words are reported in the
// result rather than as an error. The request is recorded in the query log when
// one is configured.
func (e *Engine) Analogy(ctx context.Context, q *models.AnalogyQuery) (*models.AnalogyResult, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	gen, err := e.generation()
	if err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK == 0 {
		topK = e.cfg.Analogy.TopK
	}

	result := &models.AnalogyResult{Candidates: []string{}}
	words, err := gen.Solver.Solve(ctx, q.A, q.B, q.C, topK)
	var unknown *analogy.UnknownWordError
	switch {
	case errors.As(err, &unknown):
		result.UnknownWords = unknown.Words
		result.Suggestions = unknown.Suggestions
	case err != nil:
		return nil, err
	default:
		result.Candidates = words
		if len(words) > 0 {
			result.Word = &words[0]
		}
	}
	result.QueryTime = time.Since(start).Milliseconds()

	e.logger.Debug("analogy",
		zap.String("a", q.A), zap.String("b", q.B), zap.String("c", q.C),
		zap.Strings("candidates", result.Candidates),
		zap.Strings("unknown", result.UnknownWords),
	)
	e.record(ctx, q, result.Word)
	return result, nil
}

// Neighbors returns the words closest to q.Word. An unknown word returns
// *analogy.UnknownWordError.
func (e *Engine) Neighbors(ctx context.Context, q *models.NeighborsQuery) (*models.NeighborsResult, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	gen, err := e.generation()
	if err != nil {
		return nil, err
	}
	matches, err := gen.Solver.Nearest(ctx, q.Word, q.N)
	if err != nil {
		return nil, err
	}
	out := &models.NeighborsResult{Word: q.Word, Neighbors: make([]models.Neighbor, len(matches))}
	for i, m := range matches {
		out.Neighbors[i] = models.Neighbor{Word: m.Word, Distance: m.Distance}
	}
	out.QueryTime = time.Since(start).Milliseconds()
	return out, nil
}

// Stats describes the current generation.
func (e *Engine) Stats() models.EngineStats {
	gen := e.current.Load()
	if gen == nil {
		return models.EngineStats{Index: models.IndexStats{Type: e.cfg.Index.Type}}
	}
	st := models.EngineStats{
		Ready:      true,
		Generation: gen.ID,
		Source:     gen.Source,
		Words:      gen.Store.Len(),
		Dimensions: gen.Store.Dim(),
		Index:      models.IndexStats{Type: gen.Index.Type(), FromSnapshot: gen.FromSnapshot},
		LoadedAt:   gen.LoadedAt,
		LoadTime:   gen.LoadTime.Milliseconds(),
		BuildTime:  gen.BuildTime.Milliseconds(),
	}
	if f, ok := gen.Index.(*vector.Forest); ok {
		fs := f.Stats()
		st.Index.Trees = fs.Trees
		st.Index.LeafCapacity = fs.LeafCapacity
		st.Index.Nodes = fs.Nodes
		st.Index.Leaves = fs.Leaves
		st.Index.MaxDepth = fs.MaxDepth
	}
	st.CacheEntries = gen.Solver.CacheLen()
	return st
}

// Status combines engine stats with query log and disk usage figures.
func (e *Engine) Status(ctx context.Context) (*models.StatusResponse, error) {
	resp := &models.StatusResponse{Engine: e.Stats()}
	if e.logStore != nil {
		n, err := e.logStore.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count log entries: %w", err)
		}
		resp.LogEntries = n
	}
	usage, err := storage.DiskUsageBytes(e.dataPaths()...)
	if err != nil {
		e.logger.Warn("failed to compute disk usage", zap.Error(err))
	}
	resp.DiskUsageBytes = usage
	return resp, nil
}

func (e *Engine) dataPaths() []string {
	opts := storage.Options{
		Backend:      e.cfg.Storage.Backend,
		JSONPath:     e.cfg.Storage.JSONPath,
		DatabasePath: e.cfg.Storage.DatabasePath,
	}
	return []string{e.cfg.Embeddings.Path, e.cfg.Index.SnapshotPath, opts.Path(), e.cfg.Storage.LogIndexPath}
}
