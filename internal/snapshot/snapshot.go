// Package snapshot drives a SchemaSource and composes its independently
// loaded maps into one metadata tree.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/dialect"
	"github.com/sadopc/dbmeta/internal/store"
)

// loaded holds the per-entity results of one database sync. Each field is
// written by exactly one load.
type loaded struct {
	schemas     []adapter.SchemaInfo
	columns     map[store.TableKey][]*store.ColumnMetadata
	indexes     map[store.TableKey][]*store.IndexMetadata
	foreignKeys map[store.TableKey][]*store.ForeignKeyMetadata
	tables      *adapter.TableSet
	routines    *adapter.RoutineSet
	extensions  []*store.ExtensionMetadata
}

func (l *loaded) steps(src adapter.SchemaSource) []func(context.Context) error {
	steps := []func(context.Context) error{
		func(ctx context.Context) (err error) { l.schemas, err = src.LoadSchemas(ctx); return },
		func(ctx context.Context) (err error) { l.columns, err = src.LoadColumns(ctx); return },
		func(ctx context.Context) (err error) { l.indexes, err = src.LoadIndexes(ctx); return },
		func(ctx context.Context) (err error) { l.foreignKeys, err = src.LoadForeignKeys(ctx); return },
		func(ctx context.Context) (err error) { l.tables, err = src.LoadTablesAndViews(ctx); return },
		func(ctx context.Context) (err error) { l.routines, err = src.LoadRoutines(ctx); return },
	}
	if es, ok := src.(adapter.ExtensionSource); ok {
		steps = append(steps, func(ctx context.Context) (err error) { l.extensions, err = es.LoadExtensions(ctx); return })
	}
	return steps
}

// findDatabase prefers an exact match, since a case-sensitive MySQL server
// can hold both Shop and shop.
func findDatabase(e adapter.Engine, dbs []*store.DatabaseSchemaMetadata, name string) *store.DatabaseSchemaMetadata {
	for _, d := range dbs {
		if d.Name == name {
			return d
		}
	}
	for _, d := range dbs {
		if dialect.SameDatabase(e, d.Name, name) {
			return d
		}
	}
	return nil
}

func run(ctx context.Context, steps []func(context.Context) error, concurrent bool) error {
	if !concurrent {
		for _, step := range steps {
			if err := step(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		g.Go(func() error { return step(gctx) })
	}
	return g.Wait()
}

// Database synchronizes the database called name from src. It returns either
// a complete, validated tree or an error, never a partial tree.
func Database(ctx context.Context, src adapter.SchemaSource, name string, opts adapter.Options) (*store.DatabaseSchemaMetadata, error) {
	log := opts.Log().WithFields(logrus.Fields{"engine": src.Engine(), "database": name})
	start := time.Now()

	dbs, err := src.LoadDatabases(ctx)
	if err != nil {
		return nil, err
	}
	db := findDatabase(src.Engine(), dbs, name)
	if db == nil {
		return nil, adapter.ArgumentError("sync database", "database %q not found", name)
	}

	var l loaded
	if err := run(ctx, l.steps(src), opts.Concurrent); err != nil {
		return nil, err
	}
	if l.tables == nil {
		l.tables = adapter.NewTableSet()
	}
	if l.routines == nil {
		l.routines = adapter.NewRoutineSet()
	}

	out := &store.DatabaseSchemaMetadata{
		Name:         db.Name,
		CharacterSet: db.CharacterSet,
		Collation:    db.Collation,
		Owner:        db.Owner,
		Datashare:    db.Datashare,
		ServiceName:  db.ServiceName,
		Extensions:   orEmpty(l.extensions),
		Schemas:      []*store.SchemaMetadata{},
	}

	tableCount := 0
	for _, si := range l.schemas {
		s := buildSchema(si, &l)
		tableCount += len(s.Tables)
		out.Schemas = append(out.Schemas, s)
	}

	if n := len(l.columns) + len(l.indexes) + len(l.foreignKeys); n > 0 {
		// View columns and objects of skipped schemas end up here.
		log.WithField("entries", n).Debug("unmatched catalog entries")
	}

	if err := out.Validate(); err != nil {
		return nil, adapter.UnrecognizedDataError("sync database", "%v", err)
	}

	log.WithFields(logrus.Fields{
		"schemas":  len(out.Schemas),
		"tables":   tableCount,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("database synced")
	return out, nil
}

// buildSchema assembles one schema, moving matching column, index and
// foreign key entries out of l so each is attached to exactly one table.
func buildSchema(si adapter.SchemaInfo, l *loaded) *store.SchemaMetadata {
	s := &store.SchemaMetadata{
		Name:              si.Name,
		Owner:             si.Owner,
		Comment:           si.Comment,
		Tables:            []*store.TableMetadata{},
		Views:             orEmpty(l.tables.Views[si.Name]),
		MaterializedViews: orEmpty(l.tables.MaterializedViews[si.Name]),
		Functions:         orEmpty(l.routines.Functions[si.Name]),
		Procedures:        orEmpty(l.routines.Procedures[si.Name]),
		ExternalTables:    orEmpty(l.tables.ExternalTables[si.Name]),
	}
	for _, t := range l.tables.Tables[si.Name] {
		key := store.TableKey{Schema: si.Name, Table: t.Name}
		t.Columns = orEmpty(take(l.columns, key))
		t.Indexes = orEmpty(take(l.indexes, key))
		t.ForeignKeys = orEmpty(take(l.foreignKeys, key))
		s.Tables = append(s.Tables, t)
	}
	sort.SliceStable(s.Views, func(i, j int) bool { return s.Views[i].Name < s.Views[j].Name })
	sort.SliceStable(s.MaterializedViews, func(i, j int) bool {
		return s.MaterializedViews[i].Name < s.MaterializedViews[j].Name
	})
	return s
}

// Instance builds the instance tree: version, roles and the non-system
// databases of src.
func Instance(ctx context.Context, src adapter.SchemaSource, version string, opts adapter.Options) (*store.InstanceMetadata, error) {
	dbs, err := src.LoadDatabases(ctx)
	if err != nil {
		return nil, err
	}
	out := &store.InstanceMetadata{
		Version:       version,
		InstanceRoles: []*store.InstanceRoleMetadata{},
		Databases:     []*store.DatabaseSchemaMetadata{},
		LastSync:      opts.Now().Unix(),
	}
	for _, d := range dbs {
		if dialect.IsSystemDatabase(src.Engine(), d.Name) {
			continue
		}
		if d.Schemas == nil {
			d.Schemas = []*store.SchemaMetadata{}
		}
		if d.Extensions == nil {
			d.Extensions = []*store.ExtensionMetadata{}
		}
		out.Databases = append(out.Databases, d)
	}
	if rs, ok := src.(adapter.RoleSource); ok {
		roles, err := rs.LoadRoles(ctx)
		if err != nil {
			return nil, err
		}
		out.InstanceRoles = orEmpty(roles)
	}
	opts.Log().WithFields(logrus.Fields{
		"engine":    src.Engine(),
		"version":   version,
		"databases": len(out.Databases),
	}).Info("instance synced")
	return out, nil
}

func take[V any](m map[store.TableKey][]V, key store.TableKey) []V {
	v, ok := m[key]
	if ok {
		delete(m, key)
	}
	return v
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
