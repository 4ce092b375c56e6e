// Command indexer builds the post index once from Postgres and reports its
// shape. With -dump it also writes every posting list as JSON lines, which
// is handy when checking tokenizer changes against real data.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-dump index.jsonl]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/posts"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dumpPath := flag.String("dump", "", "write posting lists to this file as JSON lines")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dumpPath); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dumpPath string) error {
	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	engine, err := indexer.NewEngine(cfg.Indexer, nil)
	if err != nil {
		return fmt.Errorf("creating index engine: %w", err)
	}
	if _, err := engine.Build(ctx, posts.NewStore(pg.DB, cfg.Postgres.QueryTimeout)); err != nil {
		return err
	}
	engine.Optimize()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(engine.Stats()); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}

	if dumpPath == "" {
		return nil
	}
	return dump(engine, dumpPath)
}

func dump(engine *indexer.Engine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dump file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	entries := engine.Snapshot()
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("writing term %q: %w", entry.Term, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing dump file: %w", err)
	}
	slog.Info("index dumped", "path", path, "terms", len(entries))
	return nil
}
