// Package sqlite synchronizes catalog metadata from a SQLite database file
// using sqlite_master and the pragma table-valued functions.
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/dialect"
	"github.com/sadopc/dbmeta/internal/executor"
	"github.com/sadopc/dbmeta/internal/snapshot"
	"github.com/sadopc/dbmeta/internal/store"
)

const memory = ":memory:"

func init() {
	adapter.Register(adapter.SQLite, Open)
}

// DatabaseName is the name a file is reported under: its base name, or
// ":memory:" for an in-memory database.
func DatabaseName(path string) string {
	if path == memory {
		return memory
	}
	return filepath.Base(path)
}

// Open opens the database file named by cfg.Database.
func Open(ctx context.Context, cfg adapter.ConnectionConfig, opts adapter.Options) (adapter.Driver, error) {
	db, err := sql.Open("sqlite", cfg.Database)
	if err != nil {
		return nil, adapter.QueryError("sqlite: open", err)
	}
	// Every pooled connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.QueryError("sqlite: ping", err)
	}
	return New(executor.NewSQL(db, opts.Log()), DatabaseName(cfg.Database), opts, db), nil
}

// Driver syncs one SQLite database.
type Driver struct {
	exec   executor.Executor
	name   string
	opts   adapter.Options
	closer interface{ Close() error }
}

// New builds a driver over exec. closer may be nil.
func New(exec executor.Executor, name string, opts adapter.Options, closer interface{ Close() error }) *Driver {
	return &Driver{exec: exec, name: name, opts: opts, closer: closer}
}

func (d *Driver) Engine() adapter.Engine { return adapter.SQLite }

func (d *Driver) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Version reads sqlite_version().
func (d *Driver) Version(ctx context.Context) (dialect.Version, error) {
	rows, err := d.exec.Query(ctx, "version", "SELECT sqlite_version() AS version")
	if err != nil {
		return dialect.Version{}, err
	}
	if len(rows) == 0 {
		return dialect.Version{}, adapter.UnrecognizedDataError("version", "sqlite_version() returned no rows")
	}
	raw, err := rows[0].String("version")
	if err != nil {
		return dialect.Version{}, err
	}
	return dialect.ParseVersion(raw)
}

func (d *Driver) SyncInstance(ctx context.Context) (*store.InstanceMetadata, error) {
	v, err := d.Version(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Instance(ctx, d.source(), v.Number, d.opts)
}

func (d *Driver) SyncDatabase(ctx context.Context) (*store.DatabaseSchemaMetadata, error) {
	return snapshot.Database(ctx, d.source(), d.name, d.opts)
}

func (d *Driver) source() *Source {
	return NewSource(d.exec, d.name, d.opts.Log())
}
