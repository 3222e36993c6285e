package search

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schema drops and recreates all tables. The index is rebuilt from the
// fragments on each ingest so there is no need for migrations.
const schema = `
DROP TRIGGER IF EXISTS items_ad;
DROP TRIGGER IF EXISTS items_ai;
DROP TABLE IF EXISTS items_fts;
DROP TABLE IF EXISTS items;

CREATE TABLE items (
	kind TEXT NOT NULL,
	unit TEXT NOT NULL,
	key TEXT NOT NULL,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	synthetic INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (kind, unit, key)
);

CREATE VIRTUAL TABLE items_fts USING fts5(
	name, text,
	content='items',
	content_rowid='rowid'
);

CREATE TRIGGER items_ai AFTER INSERT ON items BEGIN
	INSERT INTO items_fts(rowid, name, text)
	VALUES (new.rowid, new.name, new.text);
END;

CREATE TRIGGER items_ad AFTER DELETE ON items BEGIN
	INSERT INTO items_fts(items_fts, rowid, name, text)
	VALUES ('delete', old.rowid, old.name, old.text);
END;
`

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open search db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}
