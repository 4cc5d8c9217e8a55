// Package catalog records batch conversion runs in a SQLite database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/core/sqlite"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	finished_at       TEXT,
	input_dir         TEXT NOT NULL,
	output_dir        TEXT NOT NULL,
	explode_inserts   INTEGER NOT NULL,
	max_block_nesting INTEGER NOT NULL,
	converted         INTEGER NOT NULL DEFAULT 0,
	failed            INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS items (
	run_id            TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	source            TEXT NOT NULL,
	output            TEXT NOT NULL,
	blake3            TEXT NOT NULL DEFAULT '',
	ok                INTEGER NOT NULL,
	error             TEXT NOT NULL DEFAULT '',
	unresolved_count  INTEGER NOT NULL DEFAULT 0,
	unsupported_count INTEGER NOT NULL DEFAULT 0,
	has_issues        INTEGER NOT NULL DEFAULT 0,
	reused            INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, source)
);
CREATE INDEX IF NOT EXISTS items_blake3 ON items(blake3);
`

// Run is one batch invocation.
type Run struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"` // zero while the run is in progress
	InputDir        string    `json:"input_dir"`
	OutputDir       string    `json:"output_dir"`
	ExplodeInserts  bool      `json:"explode_inserts"`
	MaxBlockNesting int       `json:"max_block_nesting"`
	Converted       int       `json:"converted"`
	Failed          int       `json:"failed"`
}

// Item is the outcome for one source file of a run.
type Item struct {
	RunID            string `json:"run_id"`
	Source           string `json:"source"`
	Output           string `json:"output"`
	BLAKE3           string `json:"blake3"`
	OK               bool   `json:"ok"`
	Error            string `json:"error"`
	UnresolvedCount  int    `json:"unresolved_count"`
	UnsupportedCount int    `json:"unsupported_count"`
	HasIssues        bool   `json:"has_issues"`
	// Reused is set when the output came from the content store.
	Reused bool `json:"reused"`
}

// Catalog is an open catalog database. It is safe for concurrent use.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.NewIO("mkdir", dir, err)
		}
	}
	db, err := sqlite.OpenFile(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	c := &Catalog{db: db, path: path}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// OpenReadOnly opens an existing catalog for listing. It never creates or
// migrates the database.
func OpenReadOnly(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("catalog", path)
		}
		return nil, errors.NewIO("stat", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		db.Close()
		return nil, errors.NewIO("open", path, err)
	}
	if version != schemaVersion {
		db.Close()
		return nil, errors.NewUnsupported("catalog schema", fmt.Sprintf("version %d, want %d", version, schemaVersion))
	}
	return &Catalog{db: db, path: path}, nil
}

func (c *Catalog) migrate() error {
	var version int
	if err := c.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read catalog version: %w", err)
	}
	if version > schemaVersion {
		return errors.NewUnsupported("catalog schema", fmt.Sprintf("version %d is newer than %d", version, schemaVersion))
	}
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	if _, err := c.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set catalog version: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// BeginRun inserts a run record.
func (c *Catalog) BeginRun(ctx context.Context, r Run) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, input_dir, output_dir, explode_inserts, max_block_nesting)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, formatTime(r.StartedAt), r.InputDir, r.OutputDir, r.ExplodeInserts, r.MaxBlockNesting)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// RecordItem stores the outcome of one file, replacing an earlier record
// for the same source in the run.
func (c *Catalog) RecordItem(ctx context.Context, it Item) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO items (run_id, source, output, blake3, ok, error,
			unresolved_count, unsupported_count, has_issues, reused)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, source) DO UPDATE SET
			output = excluded.output,
			blake3 = excluded.blake3,
			ok = excluded.ok,
			error = excluded.error,
			unresolved_count = excluded.unresolved_count,
			unsupported_count = excluded.unsupported_count,
			has_issues = excluded.has_issues,
			reused = excluded.reused
	`, it.RunID, it.Source, it.Output, it.BLAKE3, it.OK, it.Error,
		it.UnresolvedCount, it.UnsupportedCount, it.HasIssues, it.Reused)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", it.Source, err)
	}
	return nil
}

// FinishRun stamps the end time and totals of a run.
func (c *Catalog) FinishRun(ctx context.Context, id string, finished time.Time, converted, failed int) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, converted = ?, failed = ? WHERE id = ?
	`, formatTime(finished), converted, failed, id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFound("run", id)
	}
	return nil
}

// Runs lists runs, newest first.
func (c *Catalog) Runs(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, started_at, COALESCE(finished_at, ''), input_dir, output_dir,
			explode_inserts, max_block_nesting, converted, failed
		FROM runs ORDER BY started_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.InputDir, &r.OutputDir,
			&r.ExplodeInserts, &r.MaxBlockNesting, &r.Converted, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Items lists the items of a run ordered by source path.
func (c *Catalog) Items(ctx context.Context, runID string) ([]Item, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT run_id, source, output, blake3, ok, error,
			unresolved_count, unsupported_count, has_issues, reused
		FROM items WHERE run_id = ? ORDER BY source
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []Item //nolint:prealloc // size unknown from query
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.RunID, &it.Source, &it.Output, &it.BLAKE3, &it.OK, &it.Error,
			&it.UnresolvedCount, &it.UnsupportedCount, &it.HasIssues, &it.Reused); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// Conversions counts successful conversions of a source identity across
// all runs.
func (c *Catalog) Conversions(ctx context.Context, identity string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE blake3 = ? AND ok = 1`, identity).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
