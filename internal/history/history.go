// Package history keeps past synchronization results in a local SQLite
// database so they can be listed and compared later.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sadopc/dbmeta/internal/export"
	"github.com/sadopc/dbmeta/internal/store"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	engine        TEXT NOT NULL,
	database_name TEXT NOT NULL,
	synced_at     DATETIME NOT NULL,
	duration_ms   INTEGER,
	table_count   INTEGER,
	is_error      BOOLEAN DEFAULT FALSE,
	payload       BLOB
)`

// ErrNoSnapshot is returned by Latest when nothing successful was recorded.
var ErrNoSnapshot = errors.New("history: no snapshot recorded")

// Entry is one recorded sync run. Payload holds the JSON tree of a
// successful sync and is empty for failures.
type Entry struct {
	ID           int64
	Engine       string
	DatabaseName string
	SyncedAt     time.Time
	DurationMS   int64
	TableCount   int
	IsError      bool
	Payload      []byte
}

// NewEntry records the outcome of a database sync. db may be nil when err is
// set.
func NewEntry(engine string, name string, db *store.DatabaseSchemaMetadata, syncedAt time.Time, d time.Duration, err error) (Entry, error) {
	e := Entry{
		Engine:       engine,
		DatabaseName: name,
		SyncedAt:     syncedAt.UTC(),
		DurationMS:   d.Milliseconds(),
	}
	if err != nil || db == nil {
		e.IsError = true
		return e, nil
	}
	e.TableCount = len(db.Tables())
	payload, merr := export.MarshalDatabase(db)
	if merr != nil {
		return Entry{}, fmt.Errorf("history encode: %w", merr)
	}
	e.Payload = payload
	return e, nil
}

// History provides SQLite-backed snapshot storage.
type History struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and ensures the
// schema exists.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	return &History{db: db}, nil
}

// Add inserts a new entry and returns its id.
func (h *History) Add(entry Entry) (int64, error) {
	res, err := h.db.Exec(
		`INSERT INTO snapshots (engine, database_name, synced_at, duration_ms, table_count, is_error, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Engine,
		entry.DatabaseName,
		entry.SyncedAt,
		entry.DurationMS,
		entry.TableCount,
		entry.IsError,
		entry.Payload,
	)
	if err != nil {
		return 0, fmt.Errorf("history add: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history add: %w", err)
	}
	return id, nil
}

// Recent returns the most recent entries without their payloads, limited
// to limit rows.
func (h *History) Recent(limit int) ([]Entry, error) {
	rows, err := h.db.Query(
		`SELECT id, engine, database_name, synced_at, duration_ms, table_count, is_error
		 FROM snapshots
		 ORDER BY synced_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Search returns entries whose engine or database name matches the SQL LIKE
// pattern, most recent first.
func (h *History) Search(pattern string, limit int) ([]Entry, error) {
	rows, err := h.db.Query(
		`SELECT id, engine, database_name, synced_at, duration_ms, table_count, is_error
		 FROM snapshots
		 WHERE database_name LIKE ? OR engine LIKE ?
		 ORDER BY synced_at DESC, id DESC
		 LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Get decodes the snapshot recorded under id. Failed runs carry no tree and
// report ErrNoSnapshot.
func (h *History) Get(id int64) (*store.DatabaseSchemaMetadata, error) {
	var payload []byte
	err := h.db.QueryRow(
		`SELECT payload FROM snapshots WHERE id = ? AND NOT is_error`,
		id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("history get: %w", err)
	}
	return export.UnmarshalDatabase(payload)
}

// Latest decodes the most recent successful snapshot of database on engine.
func (h *History) Latest(engine, database string) (*store.DatabaseSchemaMetadata, error) {
	var payload []byte
	err := h.db.QueryRow(
		`SELECT payload
		 FROM snapshots
		 WHERE engine = ? AND database_name = ? AND NOT is_error
		 ORDER BY synced_at DESC, id DESC
		 LIMIT 1`,
		engine, database,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("history latest: %w", err)
	}
	return export.UnmarshalDatabase(payload)
}

// Clear deletes all entries.
func (h *History) Clear() error {
	if _, err := h.db.Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// scanEntries reads all rows from the result set into a slice of Entry.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.Engine,
			&e.DatabaseName,
			&e.SyncedAt,
			&e.DurationMS,
			&e.TableCount,
			&e.IsError,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}
