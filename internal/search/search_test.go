package search

import (
	"context"
	"path/filepath"
	"testing"
)

func buildIndex(t *testing.T, items ...Item) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idx", "search.db")
	idx, err := NewSQLiteIndexer(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range items {
		if err := idx.IndexItem(context.Background(), it); err != nil {
			t.Fatal(err)
		}
	}
	if idx.Indexed() != len(items) {
		t.Fatalf("expected %d indexed, got %d", len(items), idx.Indexed())
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleItems() []Item {
	return []Item{
		{Kind: KindImplementor, Unit: "orca", Key: "clap::CommandFactory|orca::RunOpt", Name: "orca::RunOpt", Path: "clap::CommandFactory", Text: "impl CommandFactory for RunOpt"},
		{Kind: KindImplementor, Unit: "kanidmd", Key: "clap::CommandFactory|kanidmd::KanidmdParser", Name: "kanidmd::KanidmdParser", Path: "clap::CommandFactory", Text: "impl CommandFactory for KanidmdParser"},
		{Kind: KindSource, Unit: "orca", Key: "runner/search.rs", Name: "search.rs", Path: "/src/orca/runner/search.rs.html", Text: "runner/search.rs"},
		{Kind: KindSource, Unit: "kanidmd", Key: "main.rs", Name: "main.rs", Path: "/src/kanidmd/main.rs.html", Text: "main.rs"},
	}
}

func TestSearchByKindAndUnit(t *testing.T) {
	path := buildIndex(t, sampleItems()...)
	s, err := NewSQLiteSearcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	resp, err := s.Search(context.Background(), Query{Text: "CommandFactory"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp)
	}

	resp, err = s.Search(context.Background(), Query{Text: "CommandFactory", Unit: "orca"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Name != "orca::RunOpt" {
		t.Fatalf("unexpected unit-filtered results: %+v", resp)
	}

	resp, err = s.Search(context.Background(), Query{Text: "sea", Kind: KindSource})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Path != "/src/orca/runner/search.rs.html" {
		t.Fatalf("unexpected prefix results: %+v", resp)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	path := buildIndex(t, sampleItems()...)
	s, err := NewSQLiteSearcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	resp, err := s.Search(context.Background(), Query{Text: "  ()* "})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 || resp.Results == nil {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}

func TestIndexItemIgnoresDuplicateIdentity(t *testing.T) {
	first := sampleItems()[0]
	again := first
	again.Text = "replacement"
	path := buildIndex(t, first, again)

	s, err := NewSQLiteSearcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	resp, err := s.Search(context.Background(), Query{Text: "RunOpt"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Text != first.Text {
		t.Fatalf("expected the first copy only, got %+v", resp)
	}
}

func TestFlushMakesItemsVisibleWhileOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")
	idx, err := NewSQLiteIndexer(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.IndexItem(context.Background(), sampleItems()[2]); err != nil {
		t.Fatal(err)
	}
	if err := idx.Flush(); err != nil {
		t.Fatal(err)
	}

	s, err := NewSQLiteSearcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	resp, err := s.Search(context.Background(), Query{Text: "search"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected flushed item to be searchable, got %+v", resp)
	}
}

func TestSanitizeQuery(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"Command Factory":      `"Command"* "Factory"*`,
		"clap::CommandFactory": `"clap"* "CommandFactory"*`,
		"foo AND bar":          `"foo"* "bar"*`,
		`"quoted" -x`:          `"quoted"* "x"*`,
	}
	for in, want := range tests {
		if got := sanitizeQuery(in); got != want {
			t.Errorf("sanitizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlainText(t *testing.T) {
	in := `impl CommandFactory for <a class="struct" href="orca/struct.RunOpt.html" title="struct orca::RunOpt">RunOpt</a> &amp; more`
	want := "impl CommandFactory for RunOpt & more"
	if got := PlainText(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
