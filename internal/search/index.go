// Package search maintains the denormalized article title index used by the
// wiki server's /search route.
//
// The index is a single SQLite table built by one pass over the archive's
// entry enumeration. The database path is always injected by the caller;
// this package holds no ambient file state.
package search

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/meridel/zim"
)

// progressEvery throttles build progress logging.
const progressEvery = 100_000

// Index is a handle on the article title/url table.
type Index struct {
	db  *sql.DB
	log *slog.Logger
}

// Result is one search hit.
type Result struct {
	Title string
	URL   string
}

// Open opens (creating if necessary) the index database at path.
func Open(path string, log *slog.Logger) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("search: open %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS articles (id INTEGER PRIMARY KEY, title TEXT, url TEXT)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("search: create schema: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Index{db: db, log: log}, nil
}

// Close closes the database.
func (ix *Index) Close() error { return ix.db.Close() }

// Build populates the index from the archive's article entries. A database
// that already holds rows is assumed built and left untouched.
func (ix *Index) Build(a *zim.Archive) error {
	var existing int
	if err := ix.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&existing); err != nil {
		return fmt.Errorf("search: count articles: %w", err)
	}
	if existing > 0 {
		ix.log.Debug("search index already built", "articles", existing)
		return nil
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("search: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO articles (title, url) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("search: prepare insert: %w", err)
	}
	defer stmt.Close()

	var scanned, indexed int
	for e, err := range a.Entries() {
		if err != nil {
			return fmt.Errorf("search: enumerate entry %d: %w", e.Index, err)
		}
		scanned++
		if scanned%progressEvery == 0 {
			ix.log.Info("indexing articles", "scanned", scanned, "indexed", indexed)
		}
		if !e.IsArticle {
			continue
		}
		if _, err := stmt.Exec(e.Title, e.URL); err != nil {
			return fmt.Errorf("search: insert %q: %w", e.URL, err)
		}
		indexed++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("search: commit: %w", err)
	}
	ix.log.Info("search index built", "scanned", scanned, "indexed", indexed)
	return nil
}

// Query returns up to limit articles whose title contains q, shortest titles
// first.
func (ix *Index) Query(q string, limit int) ([]Result, error) {
	rows, err := ix.db.Query(
		`SELECT title, url FROM articles WHERE title LIKE ? ORDER BY LENGTH(title) LIMIT ?`,
		"%"+q+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search: query %q: %w", q, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Title, &r.URL); err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: query %q: %w", q, err)
	}
	return results, nil
}
