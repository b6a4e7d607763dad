package adapter

import (
	"context"

	"github.com/sadopc/dbmeta/internal/store"
)

// SchemaInfo is one schema row as reported by LoadSchemas.
type SchemaInfo struct {
	Name    string
	Owner   string
	Comment string
}

// TableSet holds base tables, views and materialized views by schema name.
// Single-schema engines file everything under "".
type TableSet struct {
	Tables            map[string][]*store.TableMetadata
	Views             map[string][]*store.ViewMetadata
	MaterializedViews map[string][]*store.MaterializedViewMetadata
	ExternalTables    map[string][]*store.ExternalTableMetadata
}

// NewTableSet returns a TableSet with all maps allocated.
func NewTableSet() *TableSet {
	return &TableSet{
		Tables:            map[string][]*store.TableMetadata{},
		Views:             map[string][]*store.ViewMetadata{},
		MaterializedViews: map[string][]*store.MaterializedViewMetadata{},
		ExternalTables:    map[string][]*store.ExternalTableMetadata{},
	}
}

// RoutineSet holds functions and procedures by schema name.
type RoutineSet struct {
	Functions  map[string][]*store.FunctionMetadata
	Procedures map[string][]*store.ProcedureMetadata
}

// NewRoutineSet returns a RoutineSet with both maps allocated.
func NewRoutineSet() *RoutineSet {
	return &RoutineSet{
		Functions:  map[string][]*store.FunctionMetadata{},
		Procedures: map[string][]*store.ProcedureMetadata{},
	}
}

// SchemaSource is the per-engine catalog capability set driven by the tree
// builder. Every Load call is scoped to the source's target database and
// returns rows already stripped of system schemas.
type SchemaSource interface {
	Engine() Engine
	// LoadDatabases lists every database on the instance, system ones included.
	LoadDatabases(ctx context.Context) ([]*store.DatabaseSchemaMetadata, error)
	LoadSchemas(ctx context.Context) ([]SchemaInfo, error)
	LoadColumns(ctx context.Context) (map[store.TableKey][]*store.ColumnMetadata, error)
	LoadIndexes(ctx context.Context) (map[store.TableKey][]*store.IndexMetadata, error)
	LoadForeignKeys(ctx context.Context) (map[store.TableKey][]*store.ForeignKeyMetadata, error)
	LoadTablesAndViews(ctx context.Context) (*TableSet, error)
	LoadRoutines(ctx context.Context) (*RoutineSet, error)
}

// RoleSource is implemented by sources that can list instance roles.
type RoleSource interface {
	LoadRoles(ctx context.Context) ([]*store.InstanceRoleMetadata, error)
}

// ExtensionSource is implemented by sources with installable extensions.
type ExtensionSource interface {
	LoadExtensions(ctx context.Context) ([]*store.ExtensionMetadata, error)
}
