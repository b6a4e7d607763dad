package postgres

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/assemble"
	"github.com/sadopc/dbmeta/internal/dialect"
	"github.com/sadopc/dbmeta/internal/executor"
	"github.com/sadopc/dbmeta/internal/normalize"
	"github.com/sadopc/dbmeta/internal/store"
)

// Relation kinds reported by the classification query.
const (
	kindBaseTable        = "BASE TABLE"
	kindView             = "VIEW"
	kindMaterializedView = "MATERIALIZED VIEW"
	kindForeignTable     = "FOREIGN TABLE"
)

// Source reads the catalog of the database the executor is connected to.
// Every query excludes system schemas through $1 (names) and $2 (LIKE
// patterns).
type Source struct {
	exec executor.Executor
	log  logrus.FieldLogger
}

var (
	_ adapter.SchemaSource    = (*Source)(nil)
	_ adapter.RoleSource      = (*Source)(nil)
	_ adapter.ExtensionSource = (*Source)(nil)
)

// NewSource builds a Source over exec.
func NewSource(exec executor.Executor, opts adapter.Options) *Source {
	return &Source{exec: exec, log: opts.Log()}
}

func (s *Source) Engine() adapter.Engine { return adapter.Postgres }

func (s *Source) query(ctx context.Context, label, query string) ([]executor.Row, error) {
	return s.exec.Query(ctx, label, query,
		dialect.SystemSchemas(adapter.Postgres),
		dialect.SystemSchemaPatterns(adapter.Postgres))
}

func (s *Source) LoadDatabases(ctx context.Context) ([]*store.DatabaseSchemaMetadata, error) {
	rows, err := s.exec.Query(ctx, "databases", `
		SELECT datname::text AS datname,
			pg_encoding_to_char(encoding)::text AS character_set,
			COALESCE(datcollate::text, '') AS datcollate,
			pg_catalog.pg_get_userbyid(datdba)::text AS db_owner
		FROM pg_catalog.pg_database
		ORDER BY datname`)
	if err != nil {
		return nil, err
	}
	out := make([]*store.DatabaseSchemaMetadata, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		db := &store.DatabaseSchemaMetadata{
			Name:         r.String("datname"),
			CharacterSet: r.String("character_set"),
			Collation:    r.String("datcollate"),
			Owner:        r.String("db_owner"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		out = append(out, db)
	}
	return out, nil
}

func (s *Source) LoadSchemas(ctx context.Context) ([]adapter.SchemaInfo, error) {
	rows, err := s.query(ctx, "schemas", `
		SELECT nspname::text AS nspname,
			pg_catalog.pg_get_userbyid(nspowner)::text AS schema_owner,
			obj_description(oid, 'pg_namespace') AS schema_comment
		FROM pg_catalog.pg_namespace
		WHERE NOT (nspname = ANY($1)) AND NOT (nspname LIKE ANY($2))
		ORDER BY nspname`)
	if err != nil {
		return nil, err
	}
	out := make([]adapter.SchemaInfo, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		si := adapter.SchemaInfo{
			Name:    r.String("nspname"),
			Owner:   r.String("schema_owner"),
			Comment: r.String("schema_comment"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, nil
}

func (s *Source) LoadColumns(ctx context.Context) (map[store.TableKey][]*store.ColumnMetadata, error) {
	rows, err := s.query(ctx, "columns", `
		SELECT
			cols.table_schema::text AS table_schema,
			cols.table_name::text AS table_name,
			cols.column_name::text AS column_name,
			cols.data_type::text AS data_type,
			cols.character_maximum_length::int AS character_maximum_length,
			cols.ordinal_position::int AS ordinal_position,
			cols.column_default::text AS column_default,
			cols.is_nullable::text AS is_nullable,
			cols.collation_name::text AS collation_name,
			cols.udt_schema::text AS udt_schema,
			cols.udt_name::text AS udt_name,
			cols.identity_generation::text AS identity_generation,
			pg_catalog.col_description(c.oid, a.attnum) AS column_comment
		FROM information_schema.columns AS cols
			JOIN pg_catalog.pg_namespace n ON n.nspname = cols.table_schema
			JOIN pg_catalog.pg_class c ON c.relnamespace = n.oid AND c.relname = cols.table_name
			JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attname = cols.column_name
		WHERE NOT (cols.table_schema = ANY($1)) AND NOT (cols.table_schema LIKE ANY($2))
		ORDER BY cols.table_schema, cols.table_name, cols.ordinal_position`)
	if err != nil {
		return nil, err
	}

	out := make(map[store.TableKey][]*store.ColumnMetadata)
	for _, row := range rows {
		r := executor.NewReader(row)
		key := store.TableKey{Schema: r.String("table_schema"), Table: r.String("table_name")}
		col := &store.ColumnMetadata{
			Name:      r.String("column_name"),
			Position:  int(r.Int64("ordinal_position")),
			Nullable:  r.Bool("is_nullable"),
			Collation: r.String("collation_name"),
			Comment:   r.String("column_comment"),
		}
		col.Type = normalize.PostgresType(
			r.String("data_type"),
			r.String("udt_schema"),
			r.String("udt_name"),
			r.NullInt64("character_maximum_length"),
		)
		col.IdentityGeneration = normalize.Identity(r.String("identity_generation"))
		raw := r.NullString("column_default")
		if err := r.Err(); err != nil {
			return nil, err
		}
		col.Default = normalize.Postgres(raw, col.Nullable, col.IdentityGeneration)
		out[key] = append(out[key], col)
	}
	return out, nil
}

// LoadIndexes reads one row per key part. Expression key parts have attnum 0
// and take their text from pg_get_indexdef(index, position, true). INCLUDE
// columns are not key parts and are skipped.
func (s *Source) LoadIndexes(ctx context.Context) (map[store.TableKey][]*store.IndexMetadata, error) {
	rows, err := s.query(ctx, "indexes", `
		SELECT
			n.nspname::text AS schema_name,
			t.relname::text AS table_name,
			i.relname::text AS index_name,
			k.ord AS seq,
			CASE WHEN k.attnum = 0 THEN NULL ELSE a.attname::text END AS column_name,
			CASE WHEN k.attnum = 0 THEN pg_catalog.pg_get_indexdef(x.indexrelid, k.ord::int, true) END AS expression,
			am.amname::text AS index_type,
			x.indisunique AS is_unique,
			x.indisprimary AS is_primary,
			COALESCE(pg_catalog.obj_description(x.indexrelid, 'pg_class'), '') AS comment,
			pg_catalog.pg_get_indexdef(x.indexrelid) AS definition
		FROM pg_catalog.pg_index x
			JOIN pg_catalog.pg_class i ON i.oid = x.indexrelid
			JOIN pg_catalog.pg_class t ON t.oid = x.indrelid
			JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_catalog.pg_am am ON am.oid = i.relam
			CROSS JOIN LATERAL unnest(x.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
			LEFT JOIN pg_catalog.pg_attribute a ON a.attrelid = x.indrelid AND a.attnum = k.attnum
		WHERE t.relkind IN ('r', 'p')
			AND k.ord <= x.indnkeyatts
			AND NOT (n.nspname = ANY($1)) AND NOT (n.nspname LIKE ANY($2))
		ORDER BY n.nspname, t.relname, i.relname, k.ord`)
	if err != nil {
		return nil, err
	}

	parts := make([]assemble.IndexPart, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		p := assemble.IndexPart{
			Key:        store.TableKey{Schema: r.String("schema_name"), Table: r.String("table_name")},
			Index:      r.String("index_name"),
			Seq:        r.Int64("seq"),
			Column:     r.NullString("column_name"),
			Expression: r.NullString("expression"),
			SubPart:    -1,
			Type:       r.String("index_type"),
			Unique:     r.Bool("is_unique"),
			Primary:    r.Bool("is_primary"),
			Visible:    true,
			Comment:    r.String("comment"),
			Definition: r.String("definition"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return assemble.FoldIndexes(parts, s.log)
}

func (s *Source) LoadForeignKeys(ctx context.Context) (map[store.TableKey][]*store.ForeignKeyMetadata, error) {
	rows, err := s.query(ctx, "foreign keys", `
		SELECT
			n.nspname::text AS schema_name,
			t.relname::text AS table_name,
			c.conname::text AS constraint_name,
			k.ord AS ordinal,
			a.attname::text AS column_name,
			rn.nspname::text AS referenced_schema,
			rt.relname::text AS referenced_table,
			ra.attname::text AS referenced_column,
			CASE c.confdeltype
				WHEN 'a' THEN 'NO ACTION' WHEN 'r' THEN 'RESTRICT' WHEN 'c' THEN 'CASCADE'
				WHEN 'n' THEN 'SET NULL' WHEN 'd' THEN 'SET DEFAULT' END AS on_delete,
			CASE c.confupdtype
				WHEN 'a' THEN 'NO ACTION' WHEN 'r' THEN 'RESTRICT' WHEN 'c' THEN 'CASCADE'
				WHEN 'n' THEN 'SET NULL' WHEN 'd' THEN 'SET DEFAULT' END AS on_update,
			CASE c.confmatchtype WHEN 'f' THEN 'FULL' WHEN 'p' THEN 'PARTIAL' ELSE 'SIMPLE' END AS match_type
		FROM pg_catalog.pg_constraint c
			JOIN pg_catalog.pg_class t ON t.oid = c.conrelid
			JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_catalog.pg_class rt ON rt.oid = c.confrelid
			JOIN pg_catalog.pg_namespace rn ON rn.oid = rt.relnamespace
			CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, refnum, ord)
			JOIN pg_catalog.pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
			JOIN pg_catalog.pg_attribute ra ON ra.attrelid = c.confrelid AND ra.attnum = k.refnum
		WHERE c.contype = 'f'
			AND NOT (n.nspname = ANY($1)) AND NOT (n.nspname LIKE ANY($2))
		ORDER BY n.nspname, t.relname, c.conname, k.ord`)
	if err != nil {
		return nil, err
	}

	parts := make([]assemble.ForeignKeyPart, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		p := assemble.ForeignKeyPart{
			Key:              store.TableKey{Schema: r.String("schema_name"), Table: r.String("table_name")},
			Name:             r.String("constraint_name"),
			Ordinal:          r.Int64("ordinal"),
			Column:           r.String("column_name"),
			ReferencedSchema: r.String("referenced_schema"),
			ReferencedTable:  r.String("referenced_table"),
			ReferencedColumn: r.String("referenced_column"),
			OnDelete:         r.String("on_delete"),
			OnUpdate:         r.String("on_update"),
			MatchType:        r.String("match_type"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return assemble.FoldForeignKeys(parts, s.log)
}

type relKey struct{ schema, name string }

// LoadTablesAndViews collects views and materialized views first, attaches
// their dependent columns, then classifies every relation: base tables become
// tables, foreign tables become external tables, and view rows back-fill the
// comment of the view collected earlier. An unknown kind fails the sync.
func (s *Source) LoadTablesAndViews(ctx context.Context) (*adapter.TableSet, error) {
	set := adapter.NewTableSet()

	views, err := s.loadViews(ctx)
	if err != nil {
		return nil, err
	}
	matviews, err := s.loadMaterializedViews(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.loadDependencies(ctx, views, matviews); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, "tables", `
		SELECT
			n.nspname::text AS schema_name,
			c.relname::text AS table_name,
			CASE c.relkind
				WHEN 'r' THEN 'BASE TABLE' WHEN 'p' THEN 'BASE TABLE'
				WHEN 'v' THEN 'VIEW' WHEN 'm' THEN 'MATERIALIZED VIEW'
				WHEN 'f' THEN 'FOREIGN TABLE' ELSE c.relkind::text END AS table_type,
			CASE WHEN c.relkind IN ('r', 'p', 'm') THEN pg_catalog.pg_table_size(c.oid) ELSE 0 END AS data_size,
			CASE WHEN c.relkind IN ('r', 'p', 'm') THEN pg_catalog.pg_indexes_size(c.oid) ELSE 0 END AS index_size,
			GREATEST(c.reltuples::bigint, 0::bigint) AS estimate,
			COALESCE(pg_catalog.obj_description(c.oid, 'pg_class'), '') AS comment,
			pg_catalog.pg_get_userbyid(c.relowner)::text AS owner
		FROM pg_catalog.pg_class c
			JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p', 'v', 'm', 'f')
			AND NOT c.relispartition
			AND NOT (n.nspname = ANY($1)) AND NOT (n.nspname LIKE ANY($2))
		ORDER BY n.nspname, c.relname`)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		r := executor.NewReader(row)
		schema := r.String("schema_name")
		name := r.String("table_name")
		kind := r.String("table_type")
		comment := r.String("comment")
		if err := r.Err(); err != nil {
			return nil, err
		}
		key := relKey{schema, name}

		switch kind {
		case kindBaseTable:
			t := &store.TableMetadata{
				Name:      name,
				RowCount:  r.Int64("estimate"),
				DataSize:  r.Int64("data_size"),
				IndexSize: r.Int64("index_size"),
				Comment:   comment,
				Owner:     r.String("owner"),
			}
			if err := r.Err(); err != nil {
				return nil, err
			}
			set.Tables[schema] = append(set.Tables[schema], t)
		case kindView:
			if v, ok := views[key]; ok {
				v.Comment = comment
			}
		case kindMaterializedView:
			if v, ok := matviews[key]; ok {
				v.Comment = comment
			}
		case kindForeignTable:
			set.ExternalTables[schema] = append(set.ExternalTables[schema], &store.ExternalTableMetadata{
				Name:    name,
				Columns: []*store.ColumnMetadata{},
			})
		default:
			return nil, adapter.UnrecognizedDataError("load tables", "unexpected relation kind %q for %s.%s", kind, schema, name)
		}
	}

	for k, v := range views {
		set.Views[k.schema] = append(set.Views[k.schema], v)
	}
	for k, v := range matviews {
		set.MaterializedViews[k.schema] = append(set.MaterializedViews[k.schema], v)
	}
	return set, nil
}

func (s *Source) loadViews(ctx context.Context) (map[relKey]*store.ViewMetadata, error) {
	rows, err := s.query(ctx, "views", `
		SELECT schemaname::text AS schemaname, viewname::text AS viewname, definition
		FROM pg_catalog.pg_views
		WHERE NOT (schemaname = ANY($1)) AND NOT (schemaname LIKE ANY($2))
		ORDER BY schemaname, viewname`)
	if err != nil {
		return nil, err
	}
	out := make(map[relKey]*store.ViewMetadata, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		key := relKey{r.String("schemaname"), r.String("viewname")}
		v := &store.ViewMetadata{
			Name:             key.name,
			Definition:       r.String("definition"),
			DependentColumns: []*store.DependentColumn{},
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (s *Source) loadMaterializedViews(ctx context.Context) (map[relKey]*store.MaterializedViewMetadata, error) {
	rows, err := s.query(ctx, "materialized views", `
		SELECT schemaname::text AS schemaname, matviewname::text AS matviewname, definition
		FROM pg_catalog.pg_matviews
		WHERE NOT (schemaname = ANY($1)) AND NOT (schemaname LIKE ANY($2))
		ORDER BY schemaname, matviewname`)
	if err != nil {
		return nil, err
	}
	out := make(map[relKey]*store.MaterializedViewMetadata, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		key := relKey{r.String("schemaname"), r.String("matviewname")}
		v := &store.MaterializedViewMetadata{
			Name:             key.name,
			Definition:       r.String("definition"),
			DependentColumns: []*store.DependentColumn{},
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// loadDependencies resolves the table columns each view's rewrite rule reads.
func (s *Source) loadDependencies(ctx context.Context, views map[relKey]*store.ViewMetadata, matviews map[relKey]*store.MaterializedViewMetadata) error {
	rows, err := s.query(ctx, "view dependencies", `
		SELECT DISTINCT
			vn.nspname::text AS view_schema,
			v.relname::text AS view_name,
			tn.nspname::text AS table_schema,
			t.relname::text AS table_name,
			a.attname::text AS column_name
		FROM pg_catalog.pg_depend d
			JOIN pg_catalog.pg_rewrite rw ON rw.oid = d.objid
			JOIN pg_catalog.pg_class v ON v.oid = rw.ev_class
			JOIN pg_catalog.pg_namespace vn ON vn.oid = v.relnamespace
			JOIN pg_catalog.pg_class t ON t.oid = d.refobjid
			JOIN pg_catalog.pg_namespace tn ON tn.oid = t.relnamespace
			JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = d.refobjsubid
		WHERE d.classid = 'pg_catalog.pg_rewrite'::regclass
			AND d.refclassid = 'pg_catalog.pg_class'::regclass
			AND d.refobjsubid > 0
			AND v.oid <> t.oid
			AND v.relkind IN ('v', 'm')
			AND NOT (vn.nspname = ANY($1)) AND NOT (vn.nspname LIKE ANY($2))
		ORDER BY 1, 2, 3, 4, 5`)
	if err != nil {
		return err
	}
	for _, row := range rows {
		r := executor.NewReader(row)
		key := relKey{r.String("view_schema"), r.String("view_name")}
		dep := &store.DependentColumn{
			Schema: r.String("table_schema"),
			Table:  r.String("table_name"),
			Column: r.String("column_name"),
		}
		if err := r.Err(); err != nil {
			return err
		}
		if v, ok := views[key]; ok {
			v.DependentColumns = append(v.DependentColumns, dep)
		} else if m, ok := matviews[key]; ok {
			m.DependentColumns = append(m.DependentColumns, dep)
		}
	}
	return nil
}

// LoadRoutines lists functions and procedures with their full definitions.
// Aggregates, window functions and extension members are skipped.
func (s *Source) LoadRoutines(ctx context.Context) (*adapter.RoutineSet, error) {
	rows, err := s.query(ctx, "routines", `
		SELECT
			n.nspname::text AS schema_name,
			p.proname::text AS routine_name,
			p.prokind::text AS routine_kind,
			pg_catalog.pg_get_functiondef(p.oid) AS definition
		FROM pg_catalog.pg_proc p
			JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		WHERE p.prokind IN ('f', 'p')
			AND NOT EXISTS (
				SELECT 1 FROM pg_catalog.pg_depend d
				WHERE d.classid = 'pg_catalog.pg_proc'::regclass AND d.objid = p.oid AND d.deptype = 'e')
			AND NOT (n.nspname = ANY($1)) AND NOT (n.nspname LIKE ANY($2))
		ORDER BY n.nspname, p.proname, p.oid`)
	if err != nil {
		return nil, err
	}
	set := adapter.NewRoutineSet()
	for _, row := range rows {
		r := executor.NewReader(row)
		schema := r.String("schema_name")
		name := r.String("routine_name")
		kind := r.String("routine_kind")
		def := r.String("definition")
		if err := r.Err(); err != nil {
			return nil, err
		}
		switch kind {
		case "f":
			set.Functions[schema] = append(set.Functions[schema], &store.FunctionMetadata{Name: name, Definition: def})
		case "p":
			set.Procedures[schema] = append(set.Procedures[schema], &store.ProcedureMetadata{Name: name, Definition: def})
		default:
			return nil, adapter.UnrecognizedDataError("load routines", "unexpected routine kind %q for %s.%s", kind, schema, name)
		}
	}
	return set, nil
}

func (s *Source) LoadExtensions(ctx context.Context) ([]*store.ExtensionMetadata, error) {
	rows, err := s.exec.Query(ctx, "extensions", `
		SELECT
			e.extname::text AS name,
			n.nspname::text AS schema,
			e.extversion::text AS version,
			COALESCE(pg_catalog.obj_description(e.oid, 'pg_extension'), '') AS description
		FROM pg_catalog.pg_extension e
			JOIN pg_catalog.pg_namespace n ON n.oid = e.extnamespace
		ORDER BY e.extname`)
	if err != nil {
		return nil, err
	}
	out := make([]*store.ExtensionMetadata, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		ext := &store.ExtensionMetadata{
			Name:        r.String("name"),
			Schema:      r.String("schema"),
			Version:     r.String("version"),
			Description: r.String("description"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, nil
}

var roleAttributes = []struct{ column, name string }{
	{"rolsuper", "SUPERUSER"},
	{"rolinherit", "INHERIT"},
	{"rolcreaterole", "CREATEROLE"},
	{"rolcreatedb", "CREATEDB"},
	{"rolcanlogin", "LOGIN"},
	{"rolreplication", "REPLICATION"},
	{"rolbypassrls", "BYPASSRLS"},
}

// LoadRoles lists non-builtin roles with their attribute flags.
func (s *Source) LoadRoles(ctx context.Context) ([]*store.InstanceRoleMetadata, error) {
	rows, err := s.exec.Query(ctx, "roles", `
		SELECT rolname::text AS rolname, rolsuper, rolinherit, rolcreaterole,
			rolcreatedb, rolcanlogin, rolreplication, rolbypassrls
		FROM pg_catalog.pg_roles
		WHERE rolname NOT LIKE 'pg\_%'
		ORDER BY rolname`)
	if err != nil {
		return nil, err
	}
	out := make([]*store.InstanceRoleMetadata, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		role := &store.InstanceRoleMetadata{Name: r.String("rolname")}
		for _, attr := range roleAttributes {
			if r.Bool(attr.column) {
				role.Attributes = append(role.Attributes, attr.name)
			}
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}
