package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/canonical/docindex/internal/config"
	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/loader"
	"github.com/canonical/docindex/internal/logging"
	"github.com/canonical/docindex/internal/pipeline"
	"github.com/canonical/docindex/internal/publish"
	"github.com/canonical/docindex/internal/search"
	"github.com/canonical/docindex/internal/sitemap"
	"github.com/canonical/docindex/internal/sourcetree"
	"github.com/canonical/docindex/internal/storage"
)

type options struct {
	configPath string
	version    string
	output     string
	sinkDelay  int
	printTree  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	flag.StringVar(&opts.version, "version", "", "Override the docs version to index")
	flag.StringVar(&opts.output, "output", "", "Override public output directory")
	flag.IntVar(&opts.sinkDelay, "sink-delay", 0, "Fragments to load before the publisher subscribes (-1 for all)")
	flag.StringVar(&opts.printTree, "print-tree", "", "Print the source tree of a unit after ingest")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel, *logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ingest(ctx, logger, opts); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func ingest(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.output != "" {
		cfg.PublicDir = opts.output
	}
	if opts.version != "" {
		cfg.Version = opts.version
	}

	root, err := loader.ResolveRoot(cfg.DocsDir, cfg.Version, cfg.DocsSubdir())
	if err != nil {
		return err
	}
	logger.Info("indexing docs", "root", root)

	indexer, err := search.NewSQLiteIndexer(cfg.IndexPath())
	if err != nil {
		return err
	}

	ix := docindex.New(logger)
	runner := &pipeline.Runner{
		Index: ix,
		Loader: &loader.Loader{
			Index:        ix,
			Logger:       logger,
			Workers:      cfg.WorkerCount(),
			FailuresPath: filepath.Join(cfg.PublicDir, "failures.log"),
		},
		Publisher: &publish.Publisher{
			Indexer: indexer,
			Storage: storage.NewFSStorage(cfg.PublicDir),
			Logger:  logger,
		},
		Indexer: indexer,
		SitemapGenerator: &sitemap.SitemapGenerator{
			Root:    cfg.PublicDir,
			SiteURL: cfg.SiteURL(),
			Logger:  logger,
		},
		Logger:    logger,
		SinkDelay: opts.sinkDelay,
	}

	status, err := runner.Run(ctx, root)
	logger.Info("ingest status",
		"stage", status.Stage,
		"fragments", status.Fragments,
		"early_loaded", status.EarlyLoaded,
		"drained", status.Drained,
		"failures", status.Load.Failures,
		"failures_log", status.FailuresPath,
	)
	if err != nil {
		return err
	}

	if opts.printTree != "" {
		tree, ok := ix.Sources().Lookup(opts.printTree)
		if !ok {
			return fmt.Errorf("unknown unit %q", opts.printTree)
		}
		fmt.Print(sourcetree.Render(tree))
	}
	return nil
}
