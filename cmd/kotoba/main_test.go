package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotoba/internal/config"
	"github.com/hyperjump/kotoba/internal/engine"
	"github.com/hyperjump/kotoba/internal/models"
	"github.com/hyperjump/kotoba/internal/server"
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

// writeConfig writes a vocabulary and a config.yaml using it into a temp dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vectors.txt"), []byte(royalty), 0644); err != nil {
		t.Fatal(err)
	}
	yaml := `embeddings:
  path: ./vectors.txt
index:
  num_trees: 8
  leaf_capacity: 2
  snapshot_path: ./forest.ktf
storage:
  json_path: ./db.json
` + extra
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after words are moved first",
			args:     []string{"man", "king", "woman", "-top-k", "8"},
			expected: []string{"-top-k", "8", "man", "king", "woman"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-top-k", "8", "man", "king", "woman"},
			expected: []string{"-top-k", "8", "man", "king", "woman"},
		},
		{
			name:     "words only returns unchanged",
			args:     []string{"man", "king", "woman"},
			expected: []string{"man", "king", "woman"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "")
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if want := filepath.Join(filepath.Dir(path), "vectors.txt"); cfg.Embeddings.Path != want {
		t.Errorf("embeddings path = %q, want %q", cfg.Embeddings.Path, want)
	}

	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("an explicit missing config should fail")
	}
}

func TestLoadConfig_DefaultPathFallsBackToWorkingDir(t *testing.T) {
	path := writeConfig(t, "")
	t.Chdir(filepath.Dir(path))

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(resolved) != "config.yaml" || cfg.Index.NumTrees != 8 {
		t.Errorf("expected the working directory config, got %q (%+v)", resolved, cfg.Index)
	}
}

func TestRunAnalogy_Local(t *testing.T) {
	path := writeConfig(t, "")
	var out bytes.Buffer
	if err := runAnalogy([]string{"--config", path, "--server", "", "man", "king", "woman"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "man : king :: woman : queen") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	if err := runAnalogy([]string{"--config", path, "--server", "", "man", "king"}, &out); err == nil {
		t.Error("two words should fail")
	}
}

func TestRunNeighbors_Local(t *testing.T) {
	path := writeConfig(t, "")
	var out bytes.Buffer
	if err := runNeighbors([]string{"king", "--config", path, "--server", "", "--n", "1", "--output", "json"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"word": "prince"`) {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestRunBuild(t *testing.T) {
	path := writeConfig(t, "")
	var out bytes.Buffer
	if err := runBuild([]string{"--config", path}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Built 8 trees over 7 words") {
		t.Errorf("unexpected output: %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "forest.ktf")); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}

func TestRunLogs_Local(t *testing.T) {
	path := writeConfig(t, "")
	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewJSONStorage(cfg.Storage.JSONPath)
	if err != nil {
		t.Fatal(err)
	}
	answer := "queen"
	ctx := context.Background()
	if err := store.Append(ctx, models.NewLogEntry("man", "king", "woman", &answer)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, models.NewLogEntry("apple", "banana", "xyzzy123", nil)); err != nil {
		t.Fatal(err)
	}
	store.Close()

	var out bytes.Buffer
	if err := runLogs([]string{"--config", path, "--server", ""}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "man : king :: woman : queen") || !strings.Contains(out.String(), "xyzzy123 : -") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	out.Reset()
	if err := runLogs([]string{"--config", path, "--server", "", "--search", "bananna", "--fuzzy"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "apple : banana") || strings.Contains(out.String(), "queen") {
		t.Errorf("unexpected search output:\n%s", out.String())
	}
}

// startServer serves a loaded engine over httptest.
func startServer(t *testing.T) string {
	t.Helper()
	cfg, _, err := loadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	c, err := initializeComponents(cfg, zap.NewNop(), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	if err := c.Engine.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(server.NewServer(c.Engine, &cfg.Server, zap.NewNop()).Router())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestCommands_ViaServer(t *testing.T) {
	url := startServer(t)
	var out bytes.Buffer

	if err := runAnalogy([]string{"--server", url, "man", "king", "woman"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "woman : queen") {
		t.Errorf("analogy output:\n%s", out.String())
	}

	out.Reset()
	if err := runLogs([]string{"--server", url, "--output", "json"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"queen"`) {
		t.Errorf("logs output:\n%s", out.String())
	}

	out.Reset()
	if err := runLogs([]string{"--server", url, "--search", "queen"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "man : king :: woman : queen") {
		t.Errorf("log search output:\n%s", out.String())
	}

	out.Reset()
	if err := runStatus([]string{"--server", url}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "log_entries:        1") {
		t.Errorf("status output:\n%s", out.String())
	}

	out.Reset()
	if err := runReload([]string{"--server", url}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "generation 2, 7 words") {
		t.Errorf("reload output: %q", out.String())
	}

	err := runNeighbors([]string{"--server", url, "xyzzy123"}, &out)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("unknown word via server: %v", err)
	}
}

func TestInitializeComponents_WithoutLog(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	c, err := initializeComponents(cfg, zap.NewNop(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.LogStore != nil || c.LogIndex != nil {
		t.Error("no log components expected")
	}
	if _, err := c.Engine.Analogy(context.Background(), &models.AnalogyQuery{A: "a", B: "b", C: "c"}); err != engine.ErrNotReady {
		t.Errorf("expected ErrNotReady before load, got %v", err)
	}
}
