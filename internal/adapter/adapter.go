// Package adapter defines the engine-neutral surface of the catalog drivers:
// the closed engine enum, connection parameters, the error kinds every sync
// reports, and the factory that opens a driver for an engine tag.
package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/dbmeta/internal/logging"
	"github.com/sadopc/dbmeta/internal/store"
)

// Driver synchronizes catalog metadata from one engine instance.
type Driver interface {
	Engine() Engine
	// SyncInstance returns the instance version, roles and user databases.
	SyncInstance(ctx context.Context) (*store.InstanceMetadata, error)
	// SyncDatabase returns the full tree of the configured database.
	SyncDatabase(ctx context.Context) (*store.DatabaseSchemaMetadata, error)
	Close() error
}

// Options tune a driver. The zero value is usable.
type Options struct {
	Logger logrus.FieldLogger
	// Concurrent lets drivers that are not bound to a single transaction
	// issue their independent catalog queries in parallel.
	Concurrent bool
	// Clock stamps InstanceMetadata.LastSync. Defaults to time.Now.
	Clock func() time.Time
}

// Log returns the configured logger or a discarding one.
func (o Options) Log() logrus.FieldLogger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// Now returns the current time from Clock.
func (o Options) Now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock()
}

// Opener connects to an engine and returns a ready Driver.
type Opener func(ctx context.Context, cfg ConnectionConfig, opts Options) (Driver, error)

var (
	mu       sync.RWMutex
	registry = map[Engine]Opener{}
)

// Register makes an opener available for engine e. Driver packages call it
// from init.
func Register(e Engine, open Opener) {
	mu.Lock()
	defer mu.Unlock()
	registry[e] = open
}

// Registered lists engines with a registered opener, sorted by name.
func Registered() []Engine {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Engine, 0, len(registry))
	for e := range registry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Open validates cfg and opens the driver registered for cfg.Engine.
func Open(ctx context.Context, cfg ConnectionConfig, opts Options) (Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mu.RLock()
	open, ok := registry[cfg.Engine]
	mu.RUnlock()
	if !ok {
		return nil, ArgumentError("open", "no driver registered for engine %q", cfg.Engine)
	}
	return open(ctx, cfg, opts)
}
