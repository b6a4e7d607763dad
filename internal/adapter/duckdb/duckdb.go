// Package duckdb synchronizes catalog metadata from a DuckDB database file
// using the duckdb_* table functions. The client library needs cgo, so the
// opener is only registered when built with -tags duckdb; the catalog logic
// itself builds everywhere.
package duckdb

import (
	"context"
	"strings"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/dialect"
	"github.com/sadopc/dbmeta/internal/executor"
	"github.com/sadopc/dbmeta/internal/snapshot"
	"github.com/sadopc/dbmeta/internal/store"
)

// Driver syncs the default catalog of one DuckDB connection.
type Driver struct {
	exec   executor.Executor
	opts   adapter.Options
	closer interface{ Close() error }
}

// New builds a driver over exec. closer may be nil.
func New(exec executor.Executor, opts adapter.Options, closer interface{ Close() error }) *Driver {
	return &Driver{exec: exec, opts: opts, closer: closer}
}

func (d *Driver) Engine() adapter.Engine { return adapter.DuckDB }

func (d *Driver) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Version reads version(), which DuckDB reports as e.g. "v1.1.3".
func (d *Driver) Version(ctx context.Context) (dialect.Version, error) {
	raw, err := d.scalar(ctx, "version", "SELECT version() AS version", "version")
	if err != nil {
		return dialect.Version{}, err
	}
	return dialect.ParseVersion(strings.TrimPrefix(raw, "v"))
}

// CurrentDatabase returns the catalog name of the attached file, which is the
// file name without extension, or "memory".
func (d *Driver) CurrentDatabase(ctx context.Context) (string, error) {
	return d.scalar(ctx, "current database", "SELECT current_database() AS database_name", "database_name")
}

func (d *Driver) scalar(ctx context.Context, label, query, column string) (string, error) {
	rows, err := d.exec.Query(ctx, label, query)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", adapter.UnrecognizedDataError(label, "%s returned no rows", query)
	}
	return rows[0].String(column)
}

func (d *Driver) SyncInstance(ctx context.Context) (*store.InstanceMetadata, error) {
	v, err := d.Version(ctx)
	if err != nil {
		return nil, err
	}
	name, err := d.CurrentDatabase(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Instance(ctx, NewSource(d.exec, name, d.opts), v.Number, d.opts)
}

func (d *Driver) SyncDatabase(ctx context.Context) (*store.DatabaseSchemaMetadata, error) {
	name, err := d.CurrentDatabase(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Database(ctx, NewSource(d.exec, name, d.opts), name, d.opts)
}
