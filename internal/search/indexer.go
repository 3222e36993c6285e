package search

import (
	"context"
	htmlutil "html"
	"regexp"
	"strings"
)

// Kinds of indexed items.
const (
	KindSource      = "source"
	KindImplementor = "impl"
)

// Indexer abstracts search indexing so the index consumer does not depend on
// a specific search implementation.
type Indexer interface {
	IndexItem(ctx context.Context, item Item) error
	Close() error
}

// Item is one searchable record: a source file or an implementor entry.
// (Kind, Unit, Key) identifies it; re-indexing the same identity keeps the
// first copy.
type Item struct {
	Kind      string
	Unit      string
	Key       string
	Name      string
	Path      string
	Text      string
	Synthetic bool
}

var stripTags = regexp.MustCompile(`(?is)<[^>]+>`)

// PlainText turns generated display markup into searchable text.
func PlainText(html string) string {
	text := htmlutil.UnescapeString(stripTags.ReplaceAllString(html, ""))
	return strings.Join(strings.Fields(text), " ")
}
