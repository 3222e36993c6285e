package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/canonical/docindex/internal/config"
	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/fragment"
	"github.com/canonical/docindex/internal/loader"
	"github.com/canonical/docindex/internal/logging"
	"github.com/canonical/docindex/internal/pipeline"
	"github.com/canonical/docindex/internal/publish"
	"github.com/canonical/docindex/internal/search"
	"github.com/canonical/docindex/internal/sitemap"
	"github.com/canonical/docindex/internal/storage"
	"github.com/canonical/docindex/internal/web"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	addr := flag.String("addr", ":8080", "HTTP bind address")
	watch := flag.Bool("watch", false, "Load fragments that appear after startup (overrides config)")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel, *logFormat)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *watch {
		cfg.Watch = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, logger, cfg, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, logger *slog.Logger, cfg *config.Config, addr string) error {
	root, err := loader.ResolveRoot(cfg.DocsDir, cfg.Version, cfg.DocsSubdir())
	if err != nil {
		return err
	}

	indexer, err := search.NewSQLiteIndexer(cfg.IndexPath())
	if err != nil {
		return err
	}
	defer func() { _ = indexer.Close() }()

	ix := docindex.New(logger)
	ld := &loader.Loader{
		Index:        ix,
		Logger:       logger,
		Workers:      cfg.WorkerCount(),
		FailuresPath: filepath.Join(cfg.PublicDir, "failures.log"),
	}
	pub := &publish.Publisher{
		Indexer: indexer,
		Storage: storage.NewFSStorage(cfg.PublicDir),
		Logger:  logger,
	}
	sitemaps := &sitemap.SitemapGenerator{
		Root:    cfg.PublicDir,
		SiteURL: cfg.SiteURL(),
		Logger:  logger,
	}

	// The indexer stays open for the watcher, so the runner does not own it.
	runner := &pipeline.Runner{
		Index:            ix,
		Loader:           ld,
		Publisher:        pub,
		SitemapGenerator: sitemaps,
		Logger:           logger,
	}
	if _, err := runner.Run(ctx, root); err != nil {
		logger.Warn("initial ingest incomplete", "error", err)
	}
	if err := indexer.Flush(); err != nil {
		return fmt.Errorf("flush search index: %w", err)
	}

	if cfg.Watch {
		w := &loader.Watcher{
			Root:   root,
			Loader: ld,
			Logger: logger,
			AfterLoad: func(f loader.Fragment) {
				if err := indexer.Flush(); err != nil {
					logger.Warn("flush search index", "error", err)
				}
				if err := pub.Flush(ctx, ix.Sources(), ix.Implementors()); err != nil {
					logger.Warn("republish snapshots", "fragment", f.Rel, "error", err)
				}
				if f.Kind == fragment.KindSources {
					if err := sitemaps.Generate(ctx, ix.Sources()); err != nil {
						logger.Warn("regenerate sitemaps", "error", err)
					}
				}
			},
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		logger.Info("watching for new fragments", "root", root)
	}

	searcher, err := search.NewSQLiteSearcher(cfg.IndexPath())
	if err != nil {
		return err
	}
	defer func() { _ = searcher.Close() }()

	server := web.NewServer(cfg, logger, ix, searcher)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
