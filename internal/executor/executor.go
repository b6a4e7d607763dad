// Package executor runs catalog queries and materializes their rows so the
// drivers can read values by column name without caring which client library
// produced them.
package executor

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/logging"
)

// Executor runs a parameterized query and returns every row in server order.
// label names the query in logs and errors.
type Executor interface {
	Query(ctx context.Context, label, query string, args ...any) ([]Row, error)
}

// TxOptions selects the transaction flavour.
type TxOptions struct {
	ReadOnly bool
	// Snapshot requests REPEATABLE READ isolation.
	Snapshot bool
}

// Tx is an executor bound to one open transaction.
type Tx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner is implemented by executors that support transactions.
type TxBeginner interface {
	Begin(ctx context.Context, opts TxOptions) (Tx, error)
}

type sqlQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQL executes through database/sql.
type SQL struct {
	db  *sql.DB
	q   sqlQueryer
	log logrus.FieldLogger
}

// NewSQL wraps db. A nil log discards query logging.
func NewSQL(db *sql.DB, log logrus.FieldLogger) *SQL {
	if log == nil {
		log = logging.Discard()
	}
	return &SQL{db: db, q: db, log: log}
}

func (e *SQL) Query(ctx context.Context, label, query string, args ...any) ([]Row, error) {
	start := time.Now()
	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, adapter.QueryError(label, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, adapter.QueryError(label, err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, adapter.QueryError(label, err)
		}
		out = append(out, NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.QueryError(label, err)
	}
	logQuery(e.log, label, len(out), start)
	return out, nil
}

// Begin starts a database/sql transaction.
func (e *SQL) Begin(ctx context.Context, opts TxOptions) (Tx, error) {
	txo := &sql.TxOptions{ReadOnly: opts.ReadOnly}
	if opts.Snapshot {
		txo.Isolation = sql.LevelRepeatableRead
	}
	tx, err := e.db.BeginTx(ctx, txo)
	if err != nil {
		return nil, adapter.QueryError("begin transaction", err)
	}
	return &sqlTx{SQL: &SQL{db: e.db, q: tx, log: e.log}, tx: tx}, nil
}

type sqlTx struct {
	*SQL
	tx *sql.Tx
}

func (t *sqlTx) Commit(context.Context) error {
	return adapter.QueryError("commit", t.tx.Commit())
}

func (t *sqlTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return adapter.QueryError("rollback", err)
}

type pgxQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Pgx executes through a pgx pool.
type Pgx struct {
	pool *pgxpool.Pool
	q    pgxQueryer
	log  logrus.FieldLogger
}

// NewPgx wraps pool. A nil log discards query logging.
func NewPgx(pool *pgxpool.Pool, log logrus.FieldLogger) *Pgx {
	if log == nil {
		log = logging.Discard()
	}
	return &Pgx{pool: pool, q: pool, log: log}
}

func (e *Pgx) Query(ctx context.Context, label, query string, args ...any) ([]Row, error) {
	start := time.Now()
	rows, err := e.q.Query(ctx, query, args...)
	if err != nil {
		return nil, adapter.QueryError(label, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, adapter.QueryError(label, err)
		}
		out = append(out, NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.QueryError(label, err)
	}
	logQuery(e.log, label, len(out), start)
	return out, nil
}

// Begin starts a pgx transaction.
func (e *Pgx) Begin(ctx context.Context, opts TxOptions) (Tx, error) {
	txo := pgx.TxOptions{}
	if opts.ReadOnly {
		txo.AccessMode = pgx.ReadOnly
	}
	if opts.Snapshot {
		txo.IsoLevel = pgx.RepeatableRead
	}
	tx, err := e.pool.BeginTx(ctx, txo)
	if err != nil {
		return nil, adapter.QueryError("begin transaction", err)
	}
	return &pgxTx{Pgx: &Pgx{pool: e.pool, q: tx, log: e.log}, tx: tx}, nil
}

type pgxTx struct {
	*Pgx
	tx pgx.Tx
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return adapter.QueryError("commit", t.tx.Commit(ctx))
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == pgx.ErrTxClosed {
		return nil
	}
	return adapter.QueryError("rollback", err)
}

func logQuery(log logrus.FieldLogger, label string, n int, start time.Time) {
	log.WithFields(logrus.Fields{
		"query":    label,
		"rows":     n,
		"duration": time.Since(start).Round(time.Microsecond),
	}).Debug("catalog query")
}
