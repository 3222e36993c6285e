package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/publish"
)

const maxSitemapURLs = 50000

type sitemapURL struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	XMLNS    string            `xml:"xmlns,attr"`
	Sitemaps []sitemapIndexRef `xml:"sitemap"`
}

type sitemapIndexRef struct {
	XMLName xml.Name `xml:"sitemap"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SitemapGenerator writes sitemap XML for every source page in the index.
type SitemapGenerator struct {
	Root    string // PublicDir
	SiteURL string // e.g. "https://docs.example.com"
	Logger  *slog.Logger
}

// Generate writes one sitemap per unit (split at the protocol limit) plus a
// sitemap index to {Root}/sitemaps/.
func (g *SitemapGenerator) Generate(ctx context.Context, sources docindex.SourceReader) error {
	sitemapDir := filepath.Join(g.Root, "sitemaps")
	if err := os.MkdirAll(sitemapDir, 0o755); err != nil {
		return fmt.Errorf("create sitemaps dir: %w", err)
	}

	now := time.Now().UTC().Format("2006-01-02")
	var indexRefs []sitemapIndexRef

	for _, unit := range sources.Units() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tree, ok := sources.Lookup(unit)
		if !ok {
			continue
		}

		var urls []sitemapURL
		for p, isFile := range tree.Walk() {
			if !isFile {
				continue
			}
			urls = append(urls, sitemapURL{Loc: g.SiteURL + publish.SourcePagePath(unit, p)})
		}
		if len(urls) == 0 {
			continue
		}

		refs, err := g.writeUnit(sitemapDir, unit, urls, now)
		if err != nil {
			g.Logger.Warn("sitemap unit error", "unit", unit, "error", err)
			continue
		}
		indexRefs = append(indexRefs, refs...)
	}

	idx := sitemapIndex{
		XMLNS:    "http://www.sitemaps.org/schemas/sitemap/0.9",
		Sitemaps: indexRefs,
	}
	indexPath := filepath.Join(sitemapDir, "sitemap-index.xml")
	return writeXML(indexPath, idx)
}

func (g *SitemapGenerator) writeUnit(sitemapDir, unit string, urls []sitemapURL, now string) ([]sitemapIndexRef, error) {
	var refs []sitemapIndexRef
	base := "sitemap-src-" + unsafeFileChars.ReplaceAllString(unit, "_")

	chunks := splitURLs(urls, maxSitemapURLs)
	for i, chunk := range chunks {
		filename := base
		if len(chunks) > 1 {
			filename = fmt.Sprintf("%s-%d", filename, i+1)
		}
		filename += ".xml"

		if err := g.writeSitemap(filepath.Join(sitemapDir, filename), chunk); err != nil {
			return nil, err
		}
		refs = append(refs, sitemapIndexRef{
			Loc:     g.SiteURL + "/sitemaps/" + filename,
			LastMod: now,
		})
	}
	return refs, nil
}

func (g *SitemapGenerator) writeSitemap(path string, urls []sitemapURL) error {
	urlset := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	return writeXML(path, urlset)
}

func writeXML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func splitURLs(urls []sitemapURL, maxPerFile int) [][]sitemapURL {
	if len(urls) <= maxPerFile {
		return [][]sitemapURL{urls}
	}
	var chunks [][]sitemapURL
	for i := 0; i < len(urls); i += maxPerFile {
		end := min(i+maxPerFile, len(urls))
		chunks = append(chunks, urls[i:end])
	}
	return chunks
}
