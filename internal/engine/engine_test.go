package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/kotoba/internal/analogy"
	"github.com/hyperjump/kotoba/internal/config"
	"github.com/hyperjump/kotoba/internal/keyword"
	"github.com/hyperjump/kotoba/internal/models"
	"github.com/hyperjump/kotoba/internal/storage"
)

const royalty = `man 1 0 0 0
woman 1 1 0 0
king 1 0 1 0
queen 1 1 1 0
prince 1 0 1 0.3
apple 0 0 0 5
banana 0 0.2 0 5
`

func writeEmbeddings(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "vectors.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Embeddings.Path = writeEmbeddings(t, dir, royalty)
	cfg.Index.NumTrees = 8
	cfg.Index.LeafCapacity = 2
	cfg.Storage.JSONPath = filepath.Join(dir, "db.json")
	config.ApplyDefaults(cfg)
	return cfg
}

func newLogged(t *testing.T, cfg *config.Config) (*Engine, storage.LogStore, *keyword.BleveIndex) {
	t.Helper()
	store, err := storage.NewJSONStorage(cfg.Storage.JSONPath)
	require.NoError(t, err)
	idx, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		idx.Close()
	})
	return New(cfg, WithLogStore(store), WithLogIndex(idx)), store, idx
}

func TestEngine_NotReady(t *testing.T) {
	e := New(testConfig(t))
	assert.Nil(t, e.Current())

	_, err := e.Analogy(context.Background(), &models.AnalogyQuery{A: "man", B: "king", C: "woman"})
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = e.Neighbors(context.Background(), &models.NeighborsQuery{Word: "king"})
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, e.Stats().Ready)
}

func TestEngine_Analogy(t *testing.T) {
	cfg := testConfig(t)
	e, store, _ := newLogged(t, cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))

	res, err := e.Analogy(ctx, &models.AnalogyQuery{A: "man", B: "king", C: "woman"})
	require.NoError(t, err)
	require.NotNil(t, res.Word)
	assert.Equal(t, "queen", *res.Word)
	assert.LessOrEqual(t, len(res.Candidates), cfg.Analogy.TopK)
	assert.Empty(t, res.UnknownWords)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	logs, err := e.Logs(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "man", logs[0].Word1)
	require.NotNil(t, logs[0].Answer)
	assert.Equal(t, "queen", *logs[0].Answer)
}

func TestEngine_AnalogyUnknownWord(t *testing.T) {
	cfg := testConfig(t)
	e, _, _ := newLogged(t, cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))

	res, err := e.Analogy(ctx, &models.AnalogyQuery{A: "man", B: "kign", C: "xyzzy123"})
	require.NoError(t, err)
	assert.Nil(t, res.Word)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, []string{"kign", "xyzzy123"}, res.UnknownWords)
	assert.Contains(t, res.Suggestions["kign"], "king")

	logs, err := e.Logs(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].Answer)
}

func TestEngine_AnalogyInvalidQuery(t *testing.T) {
	e := New(testConfig(t))
	require.NoError(t, e.Reload(context.Background()))

	_, err := e.Analogy(context.Background(), &models.AnalogyQuery{A: "man", B: " "})
	assert.Error(t, err)
}

func TestEngine_LogRequestsDisabled(t *testing.T) {
	cfg := testConfig(t)
	off := false
	cfg.Analogy.LogRequests = &off
	e, store, _ := newLogged(t, cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))

	_, err := e.Analogy(ctx, &models.AnalogyQuery{A: "man", B: "king", C: "woman"})
	require.NoError(t, err)
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_Neighbors(t *testing.T) {
	// Leaves of two cannot promise two neighbors besides the query word.
	cfg := testConfig(t)
	cfg.Index.Type = "exact"
	e := New(cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))

	res, err := e.Neighbors(ctx, &models.NeighborsQuery{Word: "king", N: 2})
	require.NoError(t, err)
	require.Len(t, res.Neighbors, 2)
	assert.Equal(t, "prince", res.Neighbors[0].Word)

	_, err = e.Neighbors(ctx, &models.NeighborsQuery{Word: "xyzzy123"})
	var uw *analogy.UnknownWordError
	assert.ErrorAs(t, err, &uw)
}

func TestEngine_ExactIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Type = "exact"
	e := New(cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))

	res, err := e.Analogy(ctx, &models.AnalogyQuery{A: "man", B: "king", C: "woman"})
	require.NoError(t, err)
	require.NotNil(t, res.Word)
	assert.Equal(t, "queen", *res.Word)
	assert.Equal(t, "exact", e.Stats().Index.Type)
}

func TestEngine_Snapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.SnapshotPath = filepath.Join(t.TempDir(), "index", "forest.ktf")
	e := New(cfg)
	ctx := context.Background()

	require.NoError(t, e.Reload(ctx))
	first := e.Current()
	assert.False(t, first.FromSnapshot)
	assert.FileExists(t, cfg.Index.SnapshotPath)

	require.NoError(t, e.Reload(ctx))
	second := e.Current()
	assert.True(t, second.FromSnapshot)
	assert.Equal(t, first.ID+1, second.ID)

	q := []float32{1, 1, 1, 0}
	want, err := first.Index.Search(ctx, q, 3)
	require.NoError(t, err)
	got, err := second.Index.Search(ctx, q, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got, "restored forest answers like the built one")

	// Changing the build options invalidates the snapshot.
	cfg.Index.NumTrees = 4
	require.NoError(t, e.Reload(ctx))
	assert.False(t, e.Current().FromSnapshot)
	assert.Equal(t, 4, e.Stats().Index.Trees)
}

func TestEngine_SnapshotStaleAfterVocabularyChange(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.SnapshotPath = filepath.Join(t.TempDir(), "forest.ktf")
	e := New(cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))

	writeEmbeddings(t, filepath.Dir(cfg.Embeddings.Path), royalty+"princess 1 1 1 0.3\n")
	require.NoError(t, e.Reload(ctx))
	assert.False(t, e.Current().FromSnapshot)
	assert.Equal(t, 8, e.Stats().Words)
}

func TestEngine_FailedReloadKeepsGeneration(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))
	before := e.Current()

	writeEmbeddings(t, filepath.Dir(cfg.Embeddings.Path), "king 1 2\nqueen 1\n")
	assert.Error(t, e.Reload(ctx))
	assert.Same(t, before, e.Current())

	cfg.Embeddings.Path = filepath.Join(t.TempDir(), "missing.txt")
	assert.Error(t, e.Reload(ctx))
	assert.Same(t, before, e.Current())

	res, err := e.Analogy(ctx, &models.AnalogyQuery{A: "man", B: "king", C: "woman"})
	require.NoError(t, err)
	require.NotNil(t, res.Word)
	assert.Equal(t, "queen", *res.Word)
}

func TestEngine_QueriesDuringReload(t *testing.T) {
	e := New(testConfig(t))
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				res, err := e.Analogy(ctx, &models.AnalogyQuery{A: "man", B: "king", C: "woman"})
				if assert.NoError(t, err) && assert.NotNil(t, res.Word) {
					assert.Equal(t, "queen", *res.Word)
				}
			}
		}()
	}
	for range 3 {
		require.NoError(t, e.Reload(ctx))
	}
	wg.Wait()
	assert.Equal(t, uint64(4), e.Current().ID)
}

func TestEngine_SearchLogs(t *testing.T) {
	cfg := testConfig(t)
	e, _, _ := newLogged(t, cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))

	for _, q := range []models.AnalogyQuery{
		{A: "man", B: "king", C: "woman"},
		{A: "apple", B: "banana", C: "man"},
	} {
		_, err := e.Analogy(ctx, &q)
		require.NoError(t, err)
	}

	hits, err := e.SearchLogs(ctx, "queen", 10, &keyword.SearchOptions{AnswerOnly: true})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "king", hits[0].Entry.Word2)

	hits, err = e.SearchLogs(ctx, "bananna", 10, &keyword.SearchOptions{Fuzzy: true})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "apple", hits[0].Entry.Word1)

	_, err = New(cfg).SearchLogs(ctx, "queen", 10, nil)
	assert.ErrorIs(t, err, ErrNoLogStore)
}

func TestEngine_RebuildLogIndex(t *testing.T) {
	cfg := testConfig(t)
	e, store, idx := newLogged(t, cfg)
	ctx := context.Background()

	answer := "queen"
	require.NoError(t, store.Append(ctx, models.NewLogEntry("man", "king", "woman", &answer)))
	require.NoError(t, store.Append(ctx, models.NewLogEntry("a", "b", "c", nil)))

	n, err := e.RebuildLogIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	n, err = e.RebuildLogIndex(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "index already in sync")
}

func TestEngine_StatsAndStatus(t *testing.T) {
	cfg := testConfig(t)
	e, _, _ := newLogged(t, cfg)
	ctx := context.Background()
	require.NoError(t, e.Reload(ctx))
	_, err := e.Analogy(ctx, &models.AnalogyQuery{A: "man", B: "king", C: "woman"})
	require.NoError(t, err)

	st := e.Stats()
	assert.True(t, st.Ready)
	assert.Equal(t, uint64(1), st.Generation)
	assert.Equal(t, 7, st.Words)
	assert.Equal(t, 4, st.Dimensions)
	assert.Equal(t, "forest", st.Index.Type)
	assert.Equal(t, 8, st.Index.Trees)
	assert.Equal(t, 2*st.Index.Leaves-st.Index.Trees, st.Index.Nodes)
	assert.Equal(t, 1, st.CacheEntries)

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.LogEntries)
	assert.Positive(t, status.DiskUsageBytes)
}

func TestBuildSnapshot(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "forest.ktf")

	_, err := BuildSnapshot(context.Background(), cfg, "", zap.NewNop())
	assert.Error(t, err, "no path configured")

	f, err := BuildSnapshot(context.Background(), cfg, path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 8, f.Stats().Trees)
	assert.FileExists(t, path)

	cfg.Index.SnapshotPath = path
	e := New(cfg)
	require.NoError(t, e.Reload(context.Background()))
	assert.True(t, e.Current().FromSnapshot)
}
