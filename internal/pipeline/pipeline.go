// Package pipeline runs a full ingest: fragment discovery, concurrent load
// into the index context, publication of search records and snapshots, and
// sitemap generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/loader"
	"github.com/canonical/docindex/internal/publish"
	"github.com/canonical/docindex/internal/search"
	"github.com/canonical/docindex/internal/sitemap"
)

type Runner struct {
	Index            *docindex.Context
	Loader           *loader.Loader
	Publisher        *publish.Publisher
	Indexer          search.Indexer
	SitemapGenerator *sitemap.SitemapGenerator
	Logger           *slog.Logger

	// SinkDelay is the number of fragments loaded before the publisher
	// subscribes. Everything they contribute waits in the index context and
	// is drained on subscription. Negative means load everything first.
	SinkDelay int

	mu     sync.Mutex
	status Status
}

// Run ingests every fragment under root.
func (r *Runner) Run(ctx context.Context, root string) (Status, error) {
	if r.Index == nil || r.Loader == nil || r.Publisher == nil {
		return Status{}, errors.New("pipeline runner missing dependencies")
	}

	err := r.run(ctx, root)
	if err != nil {
		r.setStage("error")
	} else {
		r.setStage("done")
	}
	return r.Status(), err
}

// Status returns a snapshot of the current run's progress.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) run(ctx context.Context, root string) error {
	r.setStage("discovering")
	frags, err := loader.Discover(root)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.status.Fragments = len(frags)
	r.status.FailuresPath = r.Loader.FailuresPath
	r.mu.Unlock()
	r.log().Info("fragments discovered", "root", root, "count", len(frags))

	early, late := splitAt(frags, r.SinkDelay)

	r.setStage("loading")
	if len(early) > 0 {
		if _, err := r.Loader.LoadAll(ctx, early); err != nil {
			return fmt.Errorf("load fragments: %w", err)
		}
	}
	srcPending, implPending := r.Index.Pending()
	r.mu.Lock()
	r.status.EarlyLoaded = len(early)
	r.status.Drained = srcPending + implPending
	r.mu.Unlock()

	if err := r.Publisher.Install(ctx, r.Index); err != nil {
		return fmt.Errorf("install publisher: %w", err)
	}

	stats, err := r.Loader.LoadAll(ctx, late)
	if err != nil {
		return fmt.Errorf("load fragments: %w", err)
	}
	r.mu.Lock()
	r.status.Load = stats
	r.mu.Unlock()

	r.setStage("publishing")
	var errs []error
	if err := r.Publisher.Flush(ctx, r.Index.Sources(), r.Index.Implementors()); err != nil {
		errs = append(errs, fmt.Errorf("publish: %w", err))
	}

	if r.Indexer != nil {
		if err := r.Indexer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close indexer: %w", err))
		}
	}

	if r.SitemapGenerator != nil {
		if err := r.SitemapGenerator.Generate(ctx, r.Index.Sources()); err != nil {
			// Non-fatal: the index itself is complete.
			r.log().Error("sitemap generation failed", "error", err)
		}
	}

	r.log().Info("ingest done",
		"fragments", len(frags),
		"units", stats.Units,
		"entries", stats.Entries,
		"failures", stats.Failures,
	)
	return errors.Join(errs...)
}

func splitAt(frags []loader.Fragment, n int) (early, late []loader.Fragment) {
	if n < 0 || n > len(frags) {
		n = len(frags)
	}
	return frags[:n], frags[n:]
}

func (r *Runner) setStage(stage string) {
	r.mu.Lock()
	r.status.Stage = stage
	r.mu.Unlock()
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}
