package schema

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSource is the "optional companion database-connection" spec §6
// names explicitly: a real engine connection used only to enumerate
// schema root pages by name, for callers who already hold one open and
// want engine-validated rows instead of a raw page-1 walk. It is
// backed by modernc.org/sqlite (pure Go, no cgo); the core walker
// packages never import database/sql themselves.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLiteSource opens path with the pure-Go sqlite driver. The
// connection is read-only at the query level (a plain SELECT); callers
// are responsible for closing the returned source.
func OpenSQLiteSource(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open schema database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping schema database %s: %w", path, err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close releases the underlying connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Roots runs the engine-validated equivalent of the page-1 walk:
// SELECT name, rootpage FROM sqlite_master WHERE rootpage > 0.
func (s *SQLiteSource) Roots(ctx context.Context) ([]Root, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, rootpage FROM sqlite_master WHERE rootpage > 0`)
	if err != nil {
		return nil, fmt.Errorf("query sqlite_master: %w", err)
	}
	defer rows.Close()

	var out []Root
	for rows.Next() {
		var r Root
		if err := rows.Scan(&r.Name, &r.Page); err != nil {
			return nil, fmt.Errorf("scan sqlite_master row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
