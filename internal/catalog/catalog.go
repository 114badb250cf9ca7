// Package catalog keeps a SQLite registry of recording directories so a
// project can name its recordings instead of passing paths around. The
// catalog stores metadata only; the recordings themselves stay on disk in
// their own directories.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/proctape/internal/manifest"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added created_at index
const currentSchemaVersion = 1

// ErrNotFound is returned when no recording matches the requested name.
var ErrNotFound = errors.New("recording not found")

// Recording is one catalog row: where a recording lives and what it holds.
type Recording struct {
	ID        string
	Name      string
	Dir       string
	Entries   int
	Runs      int
	CanRuns   int
	Daemons   int
	CreatedAt time.Time
}

// Catalog provides durable storage for recording metadata.
// Uses SQLite with WAL mode for concurrent read access.
type Catalog struct {
	db *sql.DB
}

// Open creates or opens the catalog database at the given path.
// Applies required pragmas and migrations automatically; safe to call
// multiple times.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Register records a recording directory under a name, summarizing its
// manifest into the catalog row. The directory path is made absolute so the
// row stays valid regardless of the caller's working directory. Registering
// an existing name replaces the previous row.
func (c *Catalog) Register(ctx context.Context, name, dir string, man *manifest.Manifest) (*Recording, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("register recording %q: %w", name, err)
	}

	rec := &Recording{
		ID:        uuid.NewString(),
		Name:      name,
		Dir:       abs,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	for _, entry := range man.Entries() {
		rec.Entries++
		switch e := entry.(type) {
		case *manifest.RunEntry:
			rec.Runs++
			if e.Daemon() {
				rec.Daemons++
			}
		case *manifest.CanRunEntry:
			rec.CanRuns++
		}
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO recordings
		(id, name, dir, entries, runs, can_runs, daemons, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			dir = excluded.dir,
			entries = excluded.entries,
			runs = excluded.runs,
			can_runs = excluded.can_runs,
			daemons = excluded.daemons,
			created_at = excluded.created_at
	`,
		rec.ID,
		rec.Name,
		rec.Dir,
		rec.Entries,
		rec.Runs,
		rec.CanRuns,
		rec.Daemons,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("register recording %q: %w", name, err)
	}
	return rec, nil
}

// Get returns the recording registered under name, or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, name string) (*Recording, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, name, dir, entries, runs, can_runs, daemons, created_at
		FROM recordings
		WHERE name = ?
	`, name)

	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recording %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get recording %q: %w", name, err)
	}
	return rec, nil
}

// List returns all registered recordings, newest first.
// Returns an empty slice (not nil) when the catalog is empty.
func (c *Catalog) List(ctx context.Context) ([]Recording, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, dir, entries, runs, can_runs, daemons, created_at
		FROM recordings
		ORDER BY created_at DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	recordings := []Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("list recordings: %w", err)
		}
		recordings = append(recordings, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recordings, nil
}

// Remove deletes the recording registered under name. Removing a name that
// is not registered is not an error; the catalog row is metadata, not the
// recording itself.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM recordings WHERE name = ?`, name); err != nil {
		return fmt.Errorf("remove recording %q: %w", name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	var (
		rec       Recording
		createdAt string
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Dir, &rec.Entries, &rec.Runs, &rec.CanRuns, &rec.Daemons, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &rec, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		// CREATE INDEX IF NOT EXISTS is safe; schema.sql already carries it
		// for fresh databases.
		if _, err := db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_recordings_created_at
			ON recordings(created_at)
		`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
