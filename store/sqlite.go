package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/use-agent/sosharvest/models"

	_ "modernc.org/sqlite"
)

const rowsSchema = `
CREATE TABLE IF NOT EXISTS extracted_rows (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT    NOT NULL,
	page       INTEGER NOT NULL,
	columns    TEXT    NOT NULL,
	created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_extracted_rows_run ON extracted_rows(run_id, page);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// SQLiteDataset appends rows to the extracted_rows table. Rows from all
// runs share one database, keyed by run_id.
type SQLiteDataset struct {
	db *sql.DB
}

// NewSQLiteDataset opens (creating if needed) the database at path.
func NewSQLiteDataset(path string) (*SQLiteDataset, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDataset{db: db}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(rowsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return db, nil
}

// PushData inserts row.
func (d *SQLiteDataset) PushData(ctx context.Context, row models.ExtractedRow) error {
	cols, err := json.Marshal(row.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO extracted_rows (run_id, page, columns) VALUES (?, ?, ?)`,
		row.RunID, row.Page, string(cols),
	)
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

// Rows returns the rows of runID in insertion order.
func (d *SQLiteDataset) Rows(ctx context.Context, runID string) ([]models.ExtractedRow, error) {
	rs, err := d.db.QueryContext(ctx,
		`SELECT run_id, page, columns FROM extracted_rows WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rs.Close()

	var out []models.ExtractedRow
	for rs.Next() {
		var (
			row  models.ExtractedRow
			cols string
		)
		if err := rs.Scan(&row.RunID, &row.Page, &cols); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(cols), &row.Columns); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// Close closes the database.
func (d *SQLiteDataset) Close() error {
	return d.db.Close()
}
