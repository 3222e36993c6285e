package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canonical/docindex/internal/config"
	"github.com/canonical/docindex/internal/docindex"
	"github.com/canonical/docindex/internal/search"
	"github.com/canonical/docindex/internal/sourcetree"
)

// Searcher answers search widget queries.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (search.SearchResponse, error)
}

// Server exposes the read-only index queries to the page widgets.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	sources docindex.SourceReader
	impls   docindex.ImplementorReader
	search  Searcher
}

type sourceView struct {
	Unit  string           `json:"unit"`
	Tree  *sourcetree.Tree `json:"tree"`
	Files []string         `json:"files"`
}

// NewServer builds a server over ix. searcher may be nil, in which case the
// search endpoint reports itself unavailable.
func NewServer(cfg *config.Config, logger *slog.Logger, ix *docindex.Context, searcher Searcher) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		sources: ix.Sources(),
		impls:   ix.Implementors(),
		search:  searcher,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/robots.txt", s.handleRobotsTxt)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/units", s.handleUnits)
	mux.HandleFunc("GET /api/sources/{unit}", s.handleSource)
	mux.HandleFunc("GET /api/traits", s.handleTraits)
	mux.HandleFunc("GET /api/implementors", s.handleImplementors)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	sitemapDir := filepath.Join(s.cfg.PublicDir, "sitemaps")
	mux.Handle("/sitemaps/", http.StripPrefix("/sitemaps/", http.FileServer(http.Dir(sitemapDir))))
	return s.logRequests(gzipHandler(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRobotsTxt(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, `User-agent: *
Allow: /
Disallow: /api/
Disallow: /healthz
Disallow: /metrics

Sitemap: %s/sitemaps/sitemap-index.xml
`, s.cfg.SiteURL())
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sources.Units())
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	unit := r.PathValue("unit")
	tree, ok := s.sources.Lookup(unit)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown unit " + strconv.Quote(unit)})
		return
	}
	files := tree.FilePaths()
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, sourceView{Unit: unit, Tree: tree, Files: files})
}

func (s *Server) handleTraits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.impls.AllTraitNames())
}

func (s *Server) handleImplementors(w http.ResponseWriter, r *http.Request) {
	trait := r.URL.Query().Get("trait")
	if trait == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "trait parameter is required"})
		return
	}
	writeJSON(w, http.StatusOK, s.impls.Lookup(trait))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "search index unavailable"})
		return
	}

	q := search.Query{
		Text:   r.URL.Query().Get("q"),
		Kind:   r.URL.Query().Get("kind"),
		Unit:   r.URL.Query().Get("unit"),
		Limit:  parseIntQuery(r, "limit", 50),
		Offset: parseIntQuery(r, "offset", 0),
	}
	results, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("search failed", "query", q.Text, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
