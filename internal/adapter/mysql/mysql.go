// Package mysql synchronizes catalog metadata from MySQL, MariaDB and TiDB
// through information_schema.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/dialect"
	"github.com/sadopc/dbmeta/internal/executor"
	"github.com/sadopc/dbmeta/internal/snapshot"
	"github.com/sadopc/dbmeta/internal/store"
)

func init() {
	adapter.Register(adapter.MySQL, Open)
	adapter.Register(adapter.TiDB, Open)
}

// FormatDSN renders cfg as a go-sql-driver DSN.
func FormatDSN(cfg adapter.ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = 10 * time.Second
	return mc.FormatDSN()
}

// Open connects to a MySQL-family server.
func Open(ctx context.Context, cfg adapter.ConnectionConfig, opts adapter.Options) (adapter.Driver, error) {
	db, err := sql.Open("mysql", FormatDSN(cfg))
	if err != nil {
		return nil, adapter.QueryError("mysql: open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.QueryError("mysql: ping", err)
	}
	return New(cfg.Engine, executor.NewSQL(db, opts.Log()), cfg.Database, opts, db), nil
}

// Driver syncs one MySQL-family database.
type Driver struct {
	engine   adapter.Engine
	exec     executor.Executor
	database string
	opts     adapter.Options
	closer   interface{ Close() error }
}

// New builds a driver over exec. closer may be nil.
func New(engine adapter.Engine, exec executor.Executor, database string, opts adapter.Options, closer interface{ Close() error }) *Driver {
	return &Driver{engine: engine, exec: exec, database: database, opts: opts, closer: closer}
}

func (d *Driver) Engine() adapter.Engine { return d.engine }

func (d *Driver) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Version reads and parses SELECT VERSION().
func (d *Driver) Version(ctx context.Context) (dialect.Version, error) {
	rows, err := d.exec.Query(ctx, "version", "SELECT VERSION() AS version")
	if err != nil {
		return dialect.Version{}, err
	}
	if len(rows) == 0 {
		return dialect.Version{}, adapter.UnrecognizedDataError("version", "SELECT VERSION() returned no rows")
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
	return snapshot.Instance(ctx, d.source(v), v.Number, d.opts)
}

func (d *Driver) SyncDatabase(ctx context.Context) (*store.DatabaseSchemaMetadata, error) {
	v, err := d.Version(ctx)
	if err != nil {
		return nil, err
	}
	src := d.source(v)
	d.opts.Log().WithFields(logrus.Fields{
		"version":           v.String(),
		"flavor":            v.Flavor(),
		"index_expressions": src.caps.HasIndexExpression,
		"index_visibility":  src.caps.HasIndexVisibility,
	}).Debug("resolved dialect")
	return snapshot.Database(ctx, src, d.database, d.opts)
}

func (d *Driver) source(v dialect.Version) *Source {
	return &Source{
		engine:   d.engine,
		exec:     d.exec,
		database: d.database,
		caps:     dialect.Resolve(d.engine, v),
		log:      d.opts.Log(),
	}
}

// NewSource builds a SchemaSource with explicit capabilities.
func NewSource(engine adapter.Engine, exec executor.Executor, database string, caps dialect.Capabilities, log logrus.FieldLogger) *Source {
	return &Source{engine: engine, exec: exec, database: database, caps: caps, log: log}
}

// quoteIdent backquotes a MySQL identifier.
func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}
