// Package main is the kotoba CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotoba/internal/cli"
	"github.com/hyperjump/kotoba/internal/config"
	"github.com/hyperjump/kotoba/internal/engine"
	"github.com/hyperjump/kotoba/internal/keyword"
	"github.com/hyperjump/kotoba/internal/models"
	"github.com/hyperjump/kotoba/internal/server"
	"github.com/hyperjump/kotoba/internal/storage"
	"github.com/hyperjump/kotoba/internal/watcher"
	"github.com/hyperjump/kotoba/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotoba/config.yaml"
	defaultServerURL  = "http://localhost:3000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present (for development), and a missing default file
// falls back to built-in defaults. Returns the config and the path actually loaded
// ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "analogy":
		err = runAnalogy(args, os.Stdout)
	case "neighbors":
		err = runNeighbors(args, os.Stdout)
	case "build":
		err = runBuild(args, os.Stdout)
	case "logs":
		err = runLogs(args, os.Stdout)
	case "status":
		err = runStatus(args, os.Stdout)
	case "reload":
		err = runReload(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("kotoba version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the positional
// words to the front so that flag.Parse sees them. Go's flag package stops at the
// first non-flag argument, so "kotoba analogy man king woman -top-k 8" would
// otherwise leave -top-k unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// Components holds the services a command opened.
type Components struct {
	Engine   *engine.Engine
	LogStore storage.LogStore
	LogIndex *keyword.BleveIndex
}

// Close releases the log store and index.
func (c *Components) Close() {
	if c.LogIndex != nil {
		_ = c.LogIndex.Close()
	}
	if c.LogStore != nil {
		_ = c.LogStore.Close()
	}
}

// initializeComponents builds the engine. With withLog the query log store and
// its search index are opened and attached. The vocabulary is not loaded.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withLog bool) (*Components, error) {
	c := &Components{}
	opts := []engine.Option{engine.WithLogger(logger)}
	if withLog {
		store, err := storage.NewLogStore(storage.Options{
			Backend:      cfg.Storage.Backend,
			JSONPath:     cfg.Storage.JSONPath,
			DatabasePath: cfg.Storage.DatabasePath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize query log: %w", err)
		}
		c.LogStore = store
		idx, err := keyword.NewBleveIndex(cfg.Storage.LogIndexPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize query log index: %w", err)
		}
		c.LogIndex = idx
		opts = append(opts, engine.WithLogStore(store), engine.WithLogIndex(idx))
	}
	c.Engine = engine.New(cfg, opts...)
	return c, nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, reloads, file events)")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := components.Engine
	if err := eng.Reload(ctx); err != nil {
		return err
	}
	if _, err := eng.RebuildLogIndex(ctx); err != nil {
		logger.Warn("query log index rebuild failed", zap.Error(err))
	}

	if cfg.Watch.Enabled {
		w := watcher.NewWatcher(
			[]string{cfg.Embeddings.Path},
			func(path string) {
				logger.Info("embeddings changed, reloading", zap.String("path", path))
				if err := eng.Reload(ctx); err != nil {
					logger.Warn("reload after change failed", zap.Error(err))
				}
			},
			watcher.WithDebounce(cfg.Watch.Debounce),
			watcher.WithLogger(logger),
		)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
	}

	srv := server.NewServer(eng, &cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// localEngine loads the vocabulary for a one-shot command.
func localEngine(ctx context.Context, configPath string, withLog bool) (*Components, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewCommandLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	components, err := initializeComponents(cfg, logger, withLog)
	if err != nil {
		return nil, err
	}
	if err := components.Engine.Reload(ctx); err != nil {
		components.Close()
		return nil, err
	}
	return components, nil
}

func runAnalogy(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analogy", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL (empty = load the vocabulary locally)`)
	topK := fs.Int("top-k", 0, "number of candidates to consider (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotoba analogy [flags] A B C\n\nAnswers \"A is to B as C is to ?\".\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() != 3 {
		fs.Usage()
		return errors.New("expected exactly three words")
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	query := &models.AnalogyQuery{A: fs.Arg(0), B: fs.Arg(1), C: fs.Arg(2), TopK: *topK}

	var result *models.AnalogyResult
	if *serverURL != "" {
		result, err = newClient(*serverURL).Analogy(query)
	} else {
		var c *Components
		c, err = localEngine(context.Background(), *configPath, false)
		if err != nil {
			return err
		}
		defer c.Close()
		result, err = c.Engine.Analogy(context.Background(), query)
	}
	if err != nil {
		return err
	}
	return cli.WriteAnalogy(out, query, result, format)
}

func runNeighbors(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("neighbors", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL (empty = load the vocabulary locally)`)
	n := fs.Int("n", 10, "number of neighbors")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() != 1 {
		return errors.New("usage: kotoba neighbors [flags] WORD")
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	query := &models.NeighborsQuery{Word: fs.Arg(0), N: *n}

	var result *models.NeighborsResult
	if *serverURL != "" {
		result, err = newClient(*serverURL).Neighbors(query)
	} else {
		var c *Components
		c, err = localEngine(context.Background(), *configPath, false)
		if err != nil {
			return err
		}
		defer c.Close()
		result, err = c.Engine.Neighbors(context.Background(), query)
	}
	if err != nil {
		return err
	}
	return cli.WriteNeighbors(out, result, format)
}

func runBuild(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	snapshot := fs.String("snapshot", "", "snapshot output path (default: index.snapshot_path)")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	f, err := engine.BuildSnapshot(ctx, cfg, *snapshot, logger)
	if err != nil {
		return err
	}
	st := f.Stats()
	fmt.Fprintf(out, "Built %d trees over %d words (%d leaves, max depth %d) in %s\n",
		st.Trees, f.Len(), st.Leaves, st.MaxDepth, time.Since(start).Round(time.Millisecond))
	return nil
}

func runLogs(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the log store directly)")
	search := fs.String("search", "", "only show queries matching these words")
	fuzzy := fs.Bool("fuzzy", false, "typo-tolerant search")
	answerOnly := fs.Bool("answer-only", false, "match the search against answers only")
	offset := fs.Int("offset", 0, "skip this many entries")
	limit := fs.Int("limit", 0, "maximum entries (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	opts := &keyword.SearchOptions{Fuzzy: *fuzzy, AnswerOnly: *answerOnly}

	if *serverURL != "" {
		c := newClient(*serverURL)
		if *search != "" {
			hits, err := c.SearchLogs(*search, *limit, opts)
			if err != nil {
				return err
			}
			return cli.WriteLogHits(out, hits, format)
		}
		rows, err := c.Logs(*offset, *limit)
		if err != nil {
			return err
		}
		return cli.WriteLogs(out, rows, format)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewCommandLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx := context.Background()
	if *search != "" {
		if _, err := components.Engine.RebuildLogIndex(ctx); err != nil {
			return err
		}
		hits, err := components.Engine.SearchLogs(ctx, *search, *limit, opts)
		if err != nil {
			return err
		}
		return cli.WriteLogHits(out, hits, format)
	}
	entries, err := components.Engine.Logs(ctx, *offset, *limit)
	if err != nil {
		return err
	}
	rows := make([][4]*string, len(entries))
	for i, e := range entries {
		rows[i] = e.Tuple()
	}
	return cli.WriteLogs(out, rows, format)
}

func runStatus(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load locally)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	var status *models.StatusResponse
	if *serverURL != "" {
		status, err = newClient(*serverURL).Status()
	} else {
		var c *Components
		c, err = localEngine(context.Background(), *configPath, true)
		if err != nil {
			return err
		}
		defer c.Close()
		status, err = c.Engine.Status(context.Background())
	}
	if err != nil {
		return err
	}
	return cli.WriteStatus(out, status, format)
}

func runReload(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(args)

	stats, err := newClient(*serverURL).Reload()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Reloaded: generation %d, %d words, %d dimensions\n", stats.Generation, stats.Words, stats.Dimensions)
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `kotoba - Word analogy service over pre-trained word vectors

Usage:
  kotoba server [flags]              Start the HTTP server
  kotoba analogy [flags] A B C       Answer "A is to B as C is to ?"
  kotoba neighbors [flags] WORD      Show the words closest to WORD
  kotoba build [flags]               Build the index and write its snapshot
  kotoba logs [flags]                Show or search logged analogy queries
  kotoba status [flags]              Show vocabulary/index/log status
  kotoba reload [flags]              Ask a running server to reload the vocabulary
  kotoba version                     Show version
  kotoba help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotoba/config.yaml)
  --debug            Enable debug logging

Query Flags (analogy, neighbors, logs, status):
  --config string    Config file path (used when --server is empty)
  --server string    Server URL (default: http://localhost:3000). Use --server "" to work locally.
  --output string    Output format: text or json (default: text)
  --top-k int        analogy: candidates to consider (default from config)
  --n int            neighbors: number of neighbors (default: 10)
  --search string    logs: only show queries matching these words
  --fuzzy            logs: typo-tolerant search
  --limit int        logs: maximum entries

Build Flags:
  --config string    Config file path
  --snapshot string  Output path (default: index.snapshot_path)

Examples:
  kotoba server
  kotoba analogy man king woman
  kotoba analogy --server "" --output json paris france tokyo
  kotoba neighbors --n 5 frog
  kotoba logs --search queen
  kotoba build --snapshot ./data/forest.ktf
  kotoba status --output json`)
}
