// Package loader finds generated index fragments on disk and feeds them to a
// docindex.Context concurrently and in no particular order, the way a browser
// runs independently loaded scripts.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/fragment"
	"github.com/canonical/docindex/internal/metrics"
)

// Fragment is one generated index script.
type Fragment struct {
	Path string // absolute or root-joined path
	Rel  string // slash-separated path relative to the docs root
	Kind fragment.Kind
}

// Stats summarizes a load run.
type Stats struct {
	Fragments int
	Units     int
	Entries   int
	Failures  int
}

// Classify reports whether rel names a fragment and which kind.
func Classify(rel string) (fragment.Kind, bool) {
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	if base == fragment.SourcesFile {
		return fragment.KindSources, true
	}
	if strings.HasPrefix(rel, fragment.ImplementorsDir+"/") &&
		strings.HasPrefix(base, "trait.") && strings.HasSuffix(base, ".js") {
		return fragment.KindImplementors, true
	}
	return "", false
}

// Discover walks root and returns every fragment below it in walk order.
func Discover(root string) ([]Fragment, error) {
	var frags []Fragment
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if kind, ok := Classify(rel); ok {
			frags = append(frags, Fragment{Path: p, Rel: rel, Kind: kind})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover fragments: %w", err)
	}
	return frags, nil
}

type Loader struct {
	Index        *docindex.Context
	Logger       *slog.Logger
	Workers      int
	FailuresPath string

	mu      sync.Mutex
	stats   Stats
	logOpen bool
}

// LoadAll loads frags concurrently. Per-fragment failures are recorded and
// logged; only context cancellation stops the run. The returned Stats are
// cumulative over every LoadAll call on l.
func (l *Loader) LoadAll(ctx context.Context, frags []Fragment) (Stats, error) {
	if l.Index == nil {
		return Stats{}, errors.New("loader missing index context")
	}
	// The failure log is truncated once per Loader so that batched runs
	// append to the same file.
	l.mu.Lock()
	if l.FailuresPath != "" && !l.logOpen {
		_ = os.MkdirAll(filepath.Dir(l.FailuresPath), 0o755)
		_ = os.WriteFile(l.FailuresPath, nil, 0o644)
		l.logOpen = true
	}
	l.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	workers := l.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, f := range frags {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := l.LoadFragment(f); err != nil {
				l.recordFailure(err)
			}
			return nil
		})
	}
	err := g.Wait()

	l.mu.Lock()
	stats := l.stats
	l.mu.Unlock()

	if stats.Failures > 0 && l.Logger != nil {
		l.Logger.Warn("fragment load completed with failures", "count", stats.Failures)
	}
	return stats, err
}

// LoadFragment decodes one fragment and adds its contribution to the index.
// Malformed parts are dropped and reported in the returned error; the rest
// of the fragment is still applied.
func (l *Loader) LoadFragment(f Fragment) error {
	file, err := os.Open(f.Path)
	if err != nil {
		metrics.FragmentsLoaded.WithLabelValues(string(f.Kind), "error").Inc()
		return &fragment.Error{Path: f.Rel, Kind: f.Kind, Err: err}
	}
	defer func() { _ = file.Close() }()

	var errs []error
	var units, entries int
	switch f.Kind {
	case fragment.KindSources:
		decoded, derrs := fragment.DecodeSources(file)
		errs = append(errs, derrs...)
		for _, u := range decoded {
			if err := l.Index.AddSourceTree(u.Name, u.Tree); err != nil {
				errs = append(errs, err)
				continue
			}
			units++
		}
	case fragment.KindImplementors:
		trait, err := fragment.TraitNameFromPath(f.Rel)
		if err != nil {
			errs = append(errs, err)
			break
		}
		decoded, derrs := fragment.DecodeImplementors(file)
		errs = append(errs, derrs...)
		entries = l.Index.AddImplementors(trait, decoded)
	default:
		errs = append(errs, fmt.Errorf("unknown fragment kind %q", f.Kind))
	}

	l.mu.Lock()
	l.stats.Fragments++
	l.stats.Units += units
	l.stats.Entries += entries
	l.mu.Unlock()

	if l.Logger != nil {
		l.Logger.Debug("fragment loaded", "path", f.Rel, "kind", f.Kind, "units", units, "entries", entries, "errors", len(errs))
	}

	if len(errs) > 0 {
		metrics.FragmentsLoaded.WithLabelValues(string(f.Kind), "error").Inc()
		return &fragment.Error{Path: f.Rel, Kind: f.Kind, Err: errors.Join(errs...)}
	}
	metrics.FragmentsLoaded.WithLabelValues(string(f.Kind), "ok").Inc()
	return nil
}

func (l *Loader) recordFailure(err error) {
	message := strings.TrimSpace(strings.ReplaceAll(err.Error(), "\n", "; "))
	l.mu.Lock()
	l.stats.Failures++
	// Append to the failure log immediately so operators can tail it.
	if l.FailuresPath != "" {
		f, ferr := os.OpenFile(l.FailuresPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr == nil {
			_, _ = fmt.Fprintln(f, message)
			_ = f.Close()
		}
	}
	l.mu.Unlock()

	if l.Logger != nil {
		var fe *fragment.Error
		if errors.As(err, &fe) {
			l.Logger.Warn("fragment failure", "path", fe.Path, "kind", fe.Kind, "error", fe.Err)
			return
		}
		l.Logger.Warn("fragment failure", "error", err)
	}
}
