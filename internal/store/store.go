// Package store defines the engine-independent metadata tree produced by a
// synchronization pass. A tree is built once per sync and never mutated
// afterwards.
package store

// TableKey identifies a table within one synchronization pass. Single-schema
// engines leave Schema empty.
type TableKey struct {
	Schema string `json:"schema" yaml:"schema"`
	Table  string `json:"table" yaml:"table"`
}

// String renders the key as schema.table, or just table when Schema is empty.
func (k TableKey) String() string {
	if k.Schema == "" {
		return k.Table
	}
	return k.Schema + "." + k.Table
}

// Less orders keys by schema, then table.
func (k TableKey) Less(o TableKey) bool {
	if k.Schema != o.Schema {
		return k.Schema < o.Schema
	}
	return k.Table < o.Table
}

// InstanceMetadata describes a whole server instance.
type InstanceMetadata struct {
	Version       string                    `json:"version" yaml:"version"`
	InstanceRoles []*InstanceRoleMetadata   `json:"instance_roles" yaml:"instance_roles"`
	Databases     []*DatabaseSchemaMetadata `json:"databases" yaml:"databases"`
	LastSync      int64                     `json:"last_sync" yaml:"last_sync"`
}

// InstanceRoleMetadata is a login or group role defined on the instance.
type InstanceRoleMetadata struct {
	Name       string   `json:"name" yaml:"name"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// DatabaseSchemaMetadata describes one database and everything in it.
type DatabaseSchemaMetadata struct {
	Name         string               `json:"name" yaml:"name"`
	CharacterSet string               `json:"character_set" yaml:"character_set"`
	Collation    string               `json:"collation" yaml:"collation"`
	Owner        string               `json:"owner" yaml:"owner"`
	Datashare    bool                 `json:"datashare" yaml:"datashare"`
	ServiceName  string               `json:"service_name" yaml:"service_name"`
	Extensions   []*ExtensionMetadata `json:"extensions" yaml:"extensions"`
	Schemas      []*SchemaMetadata    `json:"schemas" yaml:"schemas"`
}

// ExtensionMetadata is an installed database extension.
type ExtensionMetadata struct {
	Name        string `json:"name" yaml:"name"`
	Schema      string `json:"schema" yaml:"schema"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
}

// SchemaMetadata is a namespace inside a database. Single-schema engines
// produce exactly one SchemaMetadata with an empty name.
type SchemaMetadata struct {
	Name              string                      `json:"name" yaml:"name"`
	Owner             string                      `json:"owner" yaml:"owner"`
	Comment           string                      `json:"comment" yaml:"comment"`
	Tables            []*TableMetadata            `json:"tables" yaml:"tables"`
	Views             []*ViewMetadata             `json:"views" yaml:"views"`
	MaterializedViews []*MaterializedViewMetadata `json:"materialized_views" yaml:"materialized_views"`
	Functions         []*FunctionMetadata         `json:"functions" yaml:"functions"`
	Procedures        []*ProcedureMetadata        `json:"procedures" yaml:"procedures"`
	ExternalTables    []*ExternalTableMetadata    `json:"external_tables" yaml:"external_tables"`
}

// TableMetadata describes a base table.
type TableMetadata struct {
	Name          string                `json:"name" yaml:"name"`
	Columns       []*ColumnMetadata     `json:"columns" yaml:"columns"`
	Indexes       []*IndexMetadata      `json:"indexes" yaml:"indexes"`
	ForeignKeys   []*ForeignKeyMetadata `json:"foreign_keys" yaml:"foreign_keys"`
	Engine        string                `json:"engine" yaml:"engine"`
	Collation     string                `json:"collation" yaml:"collation"`
	RowCount      int64                 `json:"row_count" yaml:"row_count"`
	DataSize      int64                 `json:"data_size" yaml:"data_size"`
	IndexSize     int64                 `json:"index_size" yaml:"index_size"`
	DataFree      int64                 `json:"data_free" yaml:"data_free"`
	CreateOptions string                `json:"create_options" yaml:"create_options"`
	Comment       string                `json:"comment" yaml:"comment"`
	Owner         string                `json:"owner" yaml:"owner"`
}

// ExternalTableMetadata is a table whose data lives outside the engine.
type ExternalTableMetadata struct {
	Name    string            `json:"name" yaml:"name"`
	Columns []*ColumnMetadata `json:"columns" yaml:"columns"`
}

// IdentityGeneration tells whether a column value is generated by the engine.
type IdentityGeneration int

const (
	IdentityUnspecified IdentityGeneration = iota
	IdentityAlways
	IdentityByDefault
)

func (g IdentityGeneration) String() string {
	switch g {
	case IdentityAlways:
		return "ALWAYS"
	case IdentityByDefault:
		return "BY_DEFAULT"
	default:
		return "UNSPECIFIED"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g IdentityGeneration) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *IdentityGeneration) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ALWAYS":
		*g = IdentityAlways
	case "BY_DEFAULT":
		*g = IdentityByDefault
	default:
		*g = IdentityUnspecified
	}
	return nil
}

// ColumnMetadata describes one column of a table.
type ColumnMetadata struct {
	Name               string             `json:"name" yaml:"name"`
	Position           int                `json:"position" yaml:"position"`
	Type               string             `json:"type" yaml:"type"`
	Default            DefaultValue       `json:"default" yaml:"default"`
	OnUpdate           string             `json:"on_update,omitempty" yaml:"on_update,omitempty"`
	Nullable           bool               `json:"nullable" yaml:"nullable"`
	CharacterSet       string             `json:"character_set" yaml:"character_set"`
	Collation          string             `json:"collation" yaml:"collation"`
	Comment            string             `json:"comment" yaml:"comment"`
	IdentityGeneration IdentityGeneration `json:"identity_generation" yaml:"identity_generation"`
}

// IndexMetadata is one index with its key parts in position order.
// Expressions and KeyLength are parallel arrays.
type IndexMetadata struct {
	Name        string   `json:"name" yaml:"name"`
	Expressions []string `json:"expressions" yaml:"expressions"`
	KeyLength   []int64  `json:"key_length" yaml:"key_length"`
	Type        string   `json:"type" yaml:"type"`
	Unique      bool     `json:"unique" yaml:"unique"`
	Primary     bool     `json:"primary" yaml:"primary"`
	Visible     bool     `json:"visible" yaml:"visible"`
	Comment     string   `json:"comment" yaml:"comment"`
	Definition  string   `json:"definition" yaml:"definition"`
}

// ForeignKeyMetadata is one foreign key constraint. Columns and
// ReferencedColumns are index-aligned.
type ForeignKeyMetadata struct {
	Name              string   `json:"name" yaml:"name"`
	Columns           []string `json:"columns" yaml:"columns"`
	ReferencedSchema  string   `json:"referenced_schema" yaml:"referenced_schema"`
	ReferencedTable   string   `json:"referenced_table" yaml:"referenced_table"`
	ReferencedColumns []string `json:"referenced_columns" yaml:"referenced_columns"`
	OnDelete          string   `json:"on_delete" yaml:"on_delete"`
	OnUpdate          string   `json:"on_update" yaml:"on_update"`
	MatchType         string   `json:"match_type" yaml:"match_type"`
}

// ViewMetadata describes a view. The definition is stored as opaque text.
type ViewMetadata struct {
	Name             string             `json:"name" yaml:"name"`
	Definition       string             `json:"definition" yaml:"definition"`
	Comment          string             `json:"comment" yaml:"comment"`
	DependentColumns []*DependentColumn `json:"dependent_columns" yaml:"dependent_columns"`
}

// MaterializedViewMetadata describes a materialized view.
type MaterializedViewMetadata struct {
	Name             string             `json:"name" yaml:"name"`
	Definition       string             `json:"definition" yaml:"definition"`
	Comment          string             `json:"comment" yaml:"comment"`
	DependentColumns []*DependentColumn `json:"dependent_columns" yaml:"dependent_columns"`
}

// DependentColumn is a column a view reads from.
type DependentColumn struct {
	Schema string `json:"schema" yaml:"schema"`
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// FunctionMetadata is a stored function.
type FunctionMetadata struct {
	Name       string `json:"name" yaml:"name"`
	Definition string `json:"definition" yaml:"definition"`
}

// ProcedureMetadata is a stored procedure.
type ProcedureMetadata struct {
	Name       string `json:"name" yaml:"name"`
	Definition string `json:"definition" yaml:"definition"`
}
