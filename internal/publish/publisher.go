// Package publish is the ingest-side consumer of the index: it subscribes to
// a docindex.Context and turns every contribution into search records and
// JSON snapshots.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/search"
	"github.com/canonical/docindex/internal/storage"
)

const (
	SourcesSnapshot = "source-files.json"
	TraitsSnapshot  = "traits.json"
)

type Publisher struct {
	Indexer search.Indexer
	Storage *storage.FSStorage
	Logger  *slog.Logger

	mu     sync.Mutex
	errs   []error
	traits map[string]struct{}
	units  int
	items  int
}

// Install subscribes the publisher to ix. Contributions that arrived before
// the call are processed before Install returns.
func (p *Publisher) Install(ctx context.Context, ix *docindex.Context) error {
	p.mu.Lock()
	p.traits = make(map[string]struct{})
	p.mu.Unlock()

	return ix.InstallSink(
		func(c docindex.SourceContribution) { p.onSourceTree(ctx, c) },
		func(c docindex.ImplementorContribution) { p.onImplementors(ctx, c) },
	)
}

// SourcePagePath is the site path of a unit's rendered source file.
func SourcePagePath(unit, file string) string {
	return "/" + path.Join("src", unit, file) + ".html"
}

func (p *Publisher) onSourceTree(ctx context.Context, c docindex.SourceContribution) {
	p.mu.Lock()
	p.units++
	p.mu.Unlock()

	if p.Indexer == nil {
		return
	}
	for _, file := range c.Tree.FilePaths() {
		item := search.Item{
			Kind: search.KindSource,
			Unit: c.Unit,
			Key:  file,
			Name: path.Base(file),
			Path: SourcePagePath(c.Unit, file),
			Text: file,
		}
		if err := p.Indexer.IndexItem(ctx, item); err != nil {
			p.fail(fmt.Errorf("index source %s/%s: %w", c.Unit, file, err))
			return
		}
		p.count()
	}
}

func (p *Publisher) onImplementors(ctx context.Context, c docindex.ImplementorContribution) {
	p.mu.Lock()
	p.traits[c.Trait] = struct{}{}
	p.mu.Unlock()

	if p.Indexer == nil {
		return
	}
	for _, e := range c.Entries {
		item := search.Item{
			Kind:      search.KindImplementor,
			Unit:      e.TargetUnit,
			Key:       c.Trait + "|" + e.TypePath,
			Name:      e.TypePath,
			Path:      c.Trait,
			Text:      search.PlainText(e.DisplayText),
			Synthetic: e.Synthetic,
		}
		if err := p.Indexer.IndexItem(ctx, item); err != nil {
			p.fail(fmt.Errorf("index implementor %s %s: %w", c.Trait, e.TypePath, err))
			return
		}
		p.count()
	}
}

func (p *Publisher) count() {
	p.mu.Lock()
	p.items++
	p.mu.Unlock()
}

func (p *Publisher) fail(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
	if p.Logger != nil {
		p.Logger.Warn("publish failure", "error", err)
	}
}

// Flush writes the snapshots for every unit and every trait seen so far and
// returns the failures collected by the sinks.
func (p *Publisher) Flush(ctx context.Context, sources docindex.SourceReader, impls docindex.ImplementorReader) error {
	if p.Storage != nil {
		if err := p.writeSnapshots(ctx, sources, impls); err != nil {
			p.fail(err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Logger != nil {
		p.Logger.Info("publish done", "units", p.units, "traits", len(p.traits), "search_items", p.items, "errors", len(p.errs))
	}
	return errors.Join(p.errs...)
}

func (p *Publisher) writeSnapshots(ctx context.Context, sources docindex.SourceReader, impls docindex.ImplementorReader) error {
	units := sources.Units()
	trees := make(orderedTrees, 0, len(units))
	for _, name := range units {
		if tree, ok := sources.Lookup(name); ok {
			trees = append(trees, namedTree{name: name, tree: tree})
		}
	}
	if err := p.Storage.WriteJSON(ctx, SourcesSnapshot, trees); err != nil {
		return fmt.Errorf("write sources snapshot: %w", err)
	}

	p.mu.Lock()
	seen := make(map[string]struct{}, len(p.traits))
	for t := range p.traits {
		seen[t] = struct{}{}
	}
	p.mu.Unlock()

	names := impls.AllTraitNames()
	for _, trait := range names {
		if _, ok := seen[trait]; !ok {
			continue
		}
		if err := p.Storage.WriteJSON(ctx, storage.TraitPath(trait), impls.Lookup(trait)); err != nil {
			return fmt.Errorf("write implementors for %s: %w", trait, err)
		}
	}
	if err := p.Storage.WriteJSON(ctx, TraitsSnapshot, names); err != nil {
		return fmt.Errorf("write traits snapshot: %w", err)
	}
	return nil
}
