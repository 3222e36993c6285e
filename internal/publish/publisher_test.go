package publish

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/fragment"
	"github.com/canonical/docindex/internal/implementors"
	"github.com/canonical/docindex/internal/search"
	"github.com/canonical/docindex/internal/sourcetree"
	"github.com/canonical/docindex/internal/storage"
)

type memIndexer struct {
	mu    sync.Mutex
	items []search.Item
	err   error
}

func (m *memIndexer) IndexItem(_ context.Context, item search.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, item)
	return nil
}

func (m *memIndexer) Close() error { return nil }

func populate(t *testing.T, ix *docindex.Context) {
	t.Helper()
	if err := ix.AddSourceTree("alpha", &sourcetree.Tree{
		Children: []sourcetree.Dir{{Name: "opt", Tree: &sourcetree.Tree{Name: "opt", Files: []string{"a.rs"}}}},
		Files:    []string{"lib.rs"},
	}); err != nil {
		t.Fatal(err)
	}
	ix.AddImplementors("demo::Factory", []implementors.Entry{
		{DisplayText: `impl Factory for <a href="alpha/struct.Widget.html">Widget</a>`, TargetUnit: "alpha", TypePath: "alpha::Widget"},
	})
}

func TestPublisherDrainsAndSnapshots(t *testing.T) {
	ix := docindex.New(nil)
	populate(t, ix)

	root := t.TempDir()
	idx := &memIndexer{}
	p := &Publisher{Indexer: idx, Storage: storage.NewFSStorage(root)}
	if err := p.Install(context.Background(), ix); err != nil {
		t.Fatal(err)
	}

	ix.AddImplementors("demo::Factory", []implementors.Entry{
		{DisplayText: "impl Factory for Gadget", TargetUnit: "beta", TypePath: "beta::Gadget", Synthetic: true},
	})

	if err := p.Flush(context.Background(), ix.Sources(), ix.Implementors()); err != nil {
		t.Fatal(err)
	}

	want := []search.Item{
		{Kind: search.KindSource, Unit: "alpha", Key: "opt/a.rs", Name: "a.rs", Path: "/src/alpha/opt/a.rs.html", Text: "opt/a.rs"},
		{Kind: search.KindSource, Unit: "alpha", Key: "lib.rs", Name: "lib.rs", Path: "/src/alpha/lib.rs.html", Text: "lib.rs"},
		{Kind: search.KindImplementor, Unit: "alpha", Key: "demo::Factory|alpha::Widget", Name: "alpha::Widget", Path: "demo::Factory", Text: "impl Factory for Widget"},
		{Kind: search.KindImplementor, Unit: "beta", Key: "demo::Factory|beta::Gadget", Name: "beta::Gadget", Path: "demo::Factory", Text: "impl Factory for Gadget", Synthetic: true},
	}
	if diff := cmp.Diff(want, idx.items); diff != "" {
		t.Errorf("indexed items mismatch (-want +got):\n%s", diff)
	}

	f, err := os.Open(filepath.Join(root, SourcesSnapshot))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	units, errs := fragment.DecodeSources(f)
	if len(errs) != 0 || len(units) != 1 {
		t.Fatalf("snapshot did not round-trip: units=%v errs=%v", units, errs)
	}
	if diff := cmp.Diff([]string{"opt/a.rs", "lib.rs"}, units[0].Tree.FilePaths()); diff != "" {
		t.Errorf("snapshot files mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(filepath.Join(root, storage.TraitPath("demo::Factory")))
	if err != nil {
		t.Fatal(err)
	}
	var entries []implementors.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].TypePath != "alpha::Widget" || entries[1].TypePath != "beta::Gadget" {
		t.Fatalf("unexpected implementor snapshot: %+v", entries)
	}

	raw, err = os.ReadFile(filepath.Join(root, TraitsSnapshot))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[\"demo::Factory\"]\n" {
		t.Fatalf("unexpected traits snapshot %q", raw)
	}
}

func TestPublisherCollectsIndexErrors(t *testing.T) {
	ix := docindex.New(nil)
	populate(t, ix)

	boom := errors.New("disk full")
	p := &Publisher{Indexer: &memIndexer{err: boom}}
	if err := p.Install(context.Background(), ix); err != nil {
		t.Fatal(err)
	}
	err := p.Flush(context.Background(), ix.Sources(), ix.Implementors())
	if !errors.Is(err, boom) {
		t.Fatalf("expected collected error, got %v", err)
	}
}

func TestPublisherWithSQLite(t *testing.T) {
	ix := docindex.New(nil)
	populate(t, ix)

	dbPath := filepath.Join(t.TempDir(), "search.db")
	indexer, err := search.NewSQLiteIndexer(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	p := &Publisher{Indexer: indexer}
	if err := p.Install(context.Background(), ix); err != nil {
		t.Fatal(err)
	}
	if err := p.Flush(context.Background(), ix.Sources(), ix.Implementors()); err != nil {
		t.Fatal(err)
	}
	if err := indexer.Close(); err != nil {
		t.Fatal(err)
	}

	s, err := search.NewSQLiteSearcher(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()
	resp, err := s.Search(context.Background(), search.Query{Text: "Widget", Kind: search.KindImplementor})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Path != "demo::Factory" {
		t.Fatalf("unexpected search results: %+v", resp)
	}
}

func TestSourcePagePath(t *testing.T) {
	if got := SourcePagePath("orca", "runner/mod.rs"); got != "/src/orca/runner/mod.rs.html" {
		t.Fatalf("unexpected path %s", got)
	}
}
