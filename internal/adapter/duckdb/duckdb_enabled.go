//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/executor"
)

func init() {
	adapter.Register(adapter.DuckDB, Open)
}

// Open opens the database file named by cfg.Database, or an in-memory
// database for ":memory:".
func Open(ctx context.Context, cfg adapter.ConnectionConfig, opts adapter.Options) (adapter.Driver, error) {
	db, err := sql.Open("duckdb", cfg.Database)
	if err != nil {
		return nil, adapter.QueryError("duckdb: open", err)
	}
	// Keep one connection so an in-memory database is shared by every query.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.QueryError("duckdb: ping", err)
	}
	return New(executor.NewSQL(db, opts.Log()), opts, db), nil
}
