// Package executortest provides an in-memory executor serving canned rows,
// for driver unit tests.
package executortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/executor"
)

// Handler computes the result for one query.
type Handler func(query string, args []any) ([]executor.Row, error)

// Call records one query issued against the fake.
type Call struct {
	Label string
	Query string
	Args  []any
}

// Fake is an executor.Executor and executor.TxBeginner. Results are keyed by
// query label; an unknown label fails the query.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call

	Begun      int
	Committed  int
	RolledBack int
	LastTx     executor.TxOptions
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{handlers: map[string]Handler{}}
}

// On answers label with rows.
func (f *Fake) On(label string, rows ...executor.Row) *Fake {
	return f.Handle(label, func(string, []any) ([]executor.Row, error) { return rows, nil })
}

// Fail makes label return err.
func (f *Fake) Fail(label string, err error) *Fake {
	return f.Handle(label, func(string, []any) ([]executor.Row, error) { return nil, err })
}

// Handle answers label with h.
func (f *Fake) Handle(label string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[label] = h
	return f
}

// Calls returns the queries issued so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Labels returns the labels of issued queries in order.
func (f *Fake) Labels() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Label
	}
	return out
}

func (f *Fake) Query(ctx context.Context, label, query string, args ...any) ([]executor.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, adapter.QueryError(label, err)
	}
	f.mu.Lock()
	f.calls = append(f.calls, Call{Label: label, Query: query, Args: args})
	h, ok := f.handlers[label]
	f.mu.Unlock()
	if !ok {
		return nil, adapter.QueryError(label, fmt.Errorf("no canned result for %q", label))
	}
	rows, err := h(query, args)
	if err != nil {
		return nil, adapter.QueryError(label, err)
	}
	return rows, nil
}

func (f *Fake) Begin(_ context.Context, opts executor.TxOptions) (executor.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Begun++
	f.LastTx = opts
	return &tx{Fake: f}, nil
}

type tx struct {
	*Fake
	done bool
}

func (t *tx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return adapter.QueryError("commit", fmt.Errorf("transaction already closed"))
	}
	t.done = true
	t.Committed++
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.RolledBack++
	return nil
}

// R builds a row from alternating column names and values.
func R(kv ...any) executor.Row {
	if len(kv)%2 != 0 {
		panic("executortest.R: odd number of arguments")
	}
	cols := make([]string, 0, len(kv)/2)
	vals := make([]any, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		cols = append(cols, kv[i].(string))
		vals = append(vals, kv[i+1])
	}
	return executor.NewRow(cols, vals)
}
