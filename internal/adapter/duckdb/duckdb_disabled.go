//go:build !duckdb

package duckdb

import (
	"context"
	"errors"

	"github.com/sadopc/dbmeta/internal/adapter"
)

var errDisabled = errors.New("DuckDB support not compiled in. Rebuild with -tags duckdb")

func init() {
	adapter.Register(adapter.DuckDB, Open)
}

// Open always fails in builds without the duckdb tag.
func Open(context.Context, adapter.ConnectionConfig, adapter.Options) (adapter.Driver, error) {
	return nil, adapter.ArgumentError("duckdb: open", "%w", errDisabled)
}
