// Package postgres synchronizes catalog metadata from PostgreSQL. A database
// sync reads every catalog inside one REPEATABLE READ READ ONLY transaction,
// so the tree reflects a single snapshot.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/dialect"
	"github.com/sadopc/dbmeta/internal/executor"
	"github.com/sadopc/dbmeta/internal/snapshot"
	"github.com/sadopc/dbmeta/internal/store"
)

func init() {
	adapter.Register(adapter.Postgres, Open)
}

// ConnString renders cfg as a postgres:// URL.
func ConnString(cfg adapter.ConnectionConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.Username != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			u.User = url.User(cfg.Username)
		}
	}
	return u.String()
}

// Open connects a pgx pool to the configured database.
func Open(ctx context.Context, cfg adapter.ConnectionConfig, opts adapter.Options) (adapter.Driver, error) {
	pcfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, adapter.ArgumentError("postgres: config", "%v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, adapter.QueryError("postgres: connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, adapter.QueryError("postgres: ping", err)
	}
	return New(executor.NewPgx(pool, opts.Log()), cfg.Database, opts, func() { pool.Close() }), nil
}

// Executor is what the driver needs from its connection.
type Executor interface {
	executor.Executor
	executor.TxBeginner
}

// Driver syncs one Postgres database.
type Driver struct {
	exec     Executor
	database string
	opts     adapter.Options
	close    func()
}

// New builds a driver over exec. closeFn may be nil.
func New(exec Executor, database string, opts adapter.Options, closeFn func()) *Driver {
	return &Driver{exec: exec, database: database, opts: opts, close: closeFn}
}

func (d *Driver) Engine() adapter.Engine { return adapter.Postgres }

func (d *Driver) Close() error {
	if d.close != nil {
		d.close()
	}
	return nil
}

// Version reads server_version_num.
func (d *Driver) Version(ctx context.Context) (dialect.Version, error) {
	return version(ctx, d.exec)
}

func version(ctx context.Context, exec executor.Executor) (dialect.Version, error) {
	rows, err := exec.Query(ctx, "version", "SHOW server_version_num")
	if err != nil {
		return dialect.Version{}, err
	}
	if len(rows) == 0 {
		return dialect.Version{}, adapter.UnrecognizedDataError("version", "SHOW server_version_num returned no rows")
	}
	raw, err := rows[0].String("server_version_num")
	if err != nil {
		return dialect.Version{}, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return dialect.Version{}, adapter.UnrecognizedDataError("version", "failed to parse server_version_num %q", raw)
	}
	return dialect.FromVersionNum(n), nil
}

func (d *Driver) SyncInstance(ctx context.Context) (*store.InstanceMetadata, error) {
	v, err := d.Version(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Instance(ctx, NewSource(d.exec, d.opts), v.Number, d.opts)
}

// SyncDatabase runs the whole sync in one read-only snapshot transaction,
// committed on success and rolled back on any error.
func (d *Driver) SyncDatabase(ctx context.Context) (_ *store.DatabaseSchemaMetadata, err error) {
	tx, err := d.exec.Begin(ctx, executor.TxOptions{ReadOnly: true, Snapshot: true})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(ctx); rerr != nil {
				d.opts.Log().WithError(rerr).Warn("rollback failed")
			}
		}
	}()

	// One transaction means one connection; loads cannot overlap.
	opts := d.opts
	opts.Concurrent = false

	db, err := snapshot.Database(ctx, NewSource(tx, opts), d.database, opts)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
