package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Result struct {
	Kind      string `json:"kind"`
	Unit      string `json:"unit"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Text      string `json:"text,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

type SearchResponse struct {
	Total   uint64   `json:"total"`
	Results []Result `json:"results"`
}

// Query narrows a search. Empty Kind or Unit matches everything.
type Query struct {
	Text   string
	Kind   string
	Unit   string
	Limit  int
	Offset int
}

type SQLiteSearcher struct {
	db *sql.DB
}

func NewSQLiteSearcher(path string) (*SQLiteSearcher, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteSearcher{db: db}, nil
}

func (s *SQLiteSearcher) Close() error {
	return s.db.Close()
}

func (s *SQLiteSearcher) Search(ctx context.Context, q Query) (SearchResponse, error) {
	match := sanitizeQuery(q.Text)
	if match == "" {
		return SearchResponse{Results: []Result{}}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT i.kind, i.unit, i.name, i.path, i.text, i.synthetic, COUNT(*) OVER() AS total
		 FROM items_fts f
		 JOIN items i ON i.rowid = f.rowid
		 WHERE items_fts MATCH ?`
	args := []any{match}

	if q.Kind != "" {
		query += ` AND i.kind = ?`
		args = append(args, q.Kind)
	}
	if q.Unit != "" {
		query += ` AND i.unit = ?`
		args = append(args, q.Unit)
	}

	query += ` ORDER BY f.rank LIMIT ? OFFSET ?`
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var resp SearchResponse
	resp.Results = make([]Result, 0)

	for rows.Next() {
		var r Result
		var total uint64
		if err := rows.Scan(&r.Kind, &r.Unit, &r.Name, &r.Path, &r.Text, &r.Synthetic, &total); err != nil {
			return SearchResponse{}, fmt.Errorf("scan result: %w", err)
		}
		resp.Total = total
		resp.Results = append(resp.Results, r)
	}
	if err := rows.Err(); err != nil {
		return SearchResponse{}, fmt.Errorf("iterate results: %w", err)
	}

	return resp, nil
}

// sanitizeQuery turns free text into an FTS5 prefix query, dropping syntax
// characters and boolean operators.
func sanitizeQuery(q string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(q) {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	var terms []string
	for _, t := range strings.Fields(b.String()) {
		switch strings.ToUpper(t) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		terms = append(terms, `"`+t+`"*`)
	}
	return strings.Join(terms, " ")
}
