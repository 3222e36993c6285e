package sitemap

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/sourcetree"
)

func TestSitemapGenerator_Generate(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ix := docindex.New(logger)
	if err := ix.AddSourceTree("orca", &sourcetree.Tree{
		Children: []sourcetree.Dir{{Name: "runner", Tree: &sourcetree.Tree{Name: "runner", Files: []string{"mod.rs"}}}},
		Files:    []string{"main.rs"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := ix.AddSourceTree("empty", &sourcetree.Tree{}); err != nil {
		t.Fatal(err)
	}

	gen := &SitemapGenerator{
		Root:    dir,
		SiteURL: "https://docs.example.com",
		Logger:  logger,
	}
	if err := gen.Generate(context.Background(), ix.Sources()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	indexData, err := os.ReadFile(filepath.Join(dir, "sitemaps", "sitemap-index.xml"))
	if err != nil {
		t.Fatalf("missing sitemap index: %v", err)
	}
	var idx sitemapIndex
	if err := xml.Unmarshal(indexData, &idx); err != nil {
		t.Fatalf("invalid sitemap index XML: %v", err)
	}
	if len(idx.Sitemaps) != 1 || idx.Sitemaps[0].Loc != "https://docs.example.com/sitemaps/sitemap-src-orca.xml" {
		t.Fatalf("unexpected index entries: %+v", idx.Sitemaps)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sitemaps", "sitemap-src-orca.xml"))
	if err != nil {
		t.Fatalf("missing orca sitemap: %v", err)
	}
	var urlset sitemapURLSet
	if err := xml.Unmarshal(data, &urlset); err != nil {
		t.Fatalf("invalid orca sitemap XML: %v", err)
	}
	var locs []string
	for _, u := range urlset.URLs {
		locs = append(locs, u.Loc)
	}
	want := []string{
		"https://docs.example.com/src/orca/runner/mod.rs.html",
		"https://docs.example.com/src/orca/main.rs.html",
	}
	if diff := cmp.Diff(want, locs); diff != "" {
		t.Errorf("sitemap URLs mismatch (-want +got):\n%s", diff)
	}
}

func TestSitemapGenerator_Cancelled(t *testing.T) {
	ix := docindex.New(nil)
	if err := ix.AddSourceTree("orca", &sourcetree.Tree{Files: []string{"main.rs"}}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &SitemapGenerator{Root: t.TempDir(), SiteURL: "https://docs.example.com"}
	if err := gen.Generate(ctx, ix.Sources()); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSplitURLs(t *testing.T) {
	urls := make([]sitemapURL, 5)
	chunks := splitURLs(urls, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunks: %d", len(chunks))
	}
	if len(splitURLs(urls, 10)) != 1 {
		t.Fatal("expected a single chunk")
	}
}
