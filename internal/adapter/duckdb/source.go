package duckdb

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/assemble"
	"github.com/sadopc/dbmeta/internal/dialect"
	"github.com/sadopc/dbmeta/internal/executor"
	"github.com/sadopc/dbmeta/internal/normalize"
	"github.com/sadopc/dbmeta/internal/store"
)

// Source reads one catalog (database) of a DuckDB connection. Every query is
// restricted to that catalog with its first parameter.
type Source struct {
	exec     executor.Executor
	database string
	log      logrus.FieldLogger
}

var _ adapter.SchemaSource = (*Source)(nil)

// NewSource builds a Source over the catalog named database.
func NewSource(exec executor.Executor, database string, opts adapter.Options) *Source {
	return &Source{exec: exec, database: database, log: opts.Log()}
}

func (s *Source) Engine() adapter.Engine { return adapter.DuckDB }

func (s *Source) system(schema string) bool {
	return dialect.IsSystemSchema(adapter.DuckDB, schema)
}

func (s *Source) LoadDatabases(ctx context.Context) ([]*store.DatabaseSchemaMetadata, error) {
	rows, err := s.exec.Query(ctx, "databases", `
		SELECT database_name
		FROM duckdb_databases()
		ORDER BY database_name`)
	if err != nil {
		return nil, err
	}
	out := make([]*store.DatabaseSchemaMetadata, 0, len(rows))
	for _, row := range rows {
		name, err := row.String("database_name")
		if err != nil {
			return nil, err
		}
		out = append(out, &store.DatabaseSchemaMetadata{Name: name, CharacterSet: "UTF-8"})
	}
	return out, nil
}

func (s *Source) LoadSchemas(ctx context.Context) ([]adapter.SchemaInfo, error) {
	rows, err := s.exec.Query(ctx, "schemas", `
		SELECT schema_name, COALESCE(comment, '') AS comment
		FROM duckdb_schemas()
		WHERE database_name = ?
		ORDER BY schema_name`, s.database)
	if err != nil {
		return nil, err
	}
	var out []adapter.SchemaInfo
	for _, row := range rows {
		r := executor.NewReader(row)
		si := adapter.SchemaInfo{Name: r.String("schema_name"), Comment: r.String("comment")}
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.system(si.Name) {
			continue
		}
		out = append(out, si)
	}
	return out, nil
}

// LoadColumns reads duckdb_columns(). Defaults are kept as expressions, the
// way Postgres reports them.
func (s *Source) LoadColumns(ctx context.Context) (map[store.TableKey][]*store.ColumnMetadata, error) {
	rows, err := s.exec.Query(ctx, "columns", `
		SELECT
			schema_name,
			table_name,
			column_name,
			column_index,
			data_type,
			column_default,
			is_nullable,
			COALESCE(comment, '') AS comment
		FROM duckdb_columns()
		WHERE database_name = ? AND NOT internal
		ORDER BY schema_name, table_name, column_index`, s.database)
	if err != nil {
		return nil, err
	}
	out := make(map[store.TableKey][]*store.ColumnMetadata)
	for _, row := range rows {
		r := executor.NewReader(row)
		key := store.TableKey{Schema: r.String("schema_name"), Table: r.String("table_name")}
		col := &store.ColumnMetadata{
			Name:     r.String("column_name"),
			Position: int(r.Int64("column_index")),
			Type:     r.String("data_type"),
			Nullable: r.Bool("is_nullable"),
			Comment:  r.String("comment"),
		}
		raw := r.NullString("column_default")
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.system(key.Schema) {
			continue
		}
		col.Default = normalize.Postgres(raw, col.Nullable, store.IdentityUnspecified)
		out[key] = append(out[key], col)
	}
	return out, nil
}

// LoadIndexes combines primary key and unique constraints, reported per
// column by duckdb_constraints(), with CREATE INDEX indexes, whose key list
// is only available inside their SQL text.
func (s *Source) LoadIndexes(ctx context.Context) (map[store.TableKey][]*store.IndexMetadata, error) {
	constraints, err := s.exec.Query(ctx, "key constraints", `
		SELECT
			schema_name,
			table_name,
			constraint_name,
			constraint_type,
			constraint_text,
			unnest(constraint_column_names) AS column_name,
			generate_subscripts(constraint_column_names, 1) AS seq
		FROM duckdb_constraints()
		WHERE database_name = ? AND constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY schema_name, table_name, constraint_name, seq`, s.database)
	if err != nil {
		return nil, err
	}
	var parts []assemble.IndexPart
	for _, row := range constraints {
		r := executor.NewReader(row)
		p := assemble.IndexPart{
			Key:        store.TableKey{Schema: r.String("schema_name"), Table: r.String("table_name")},
			Index:      r.String("constraint_name"),
			Seq:        r.Int64("seq"),
			Column:     r.NullString("column_name"),
			SubPart:    -1,
			Type:       "ART",
			Unique:     true,
			Primary:    r.String("constraint_type") == "PRIMARY KEY",
			Visible:    true,
			Definition: r.String("constraint_text"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.system(p.Key.Schema) {
			continue
		}
		parts = append(parts, p)
	}

	indexes, err := s.exec.Query(ctx, "indexes", `
		SELECT schema_name, table_name, index_name, is_unique, is_primary, COALESCE(sql, '') AS sql,
			COALESCE(comment, '') AS comment
		FROM duckdb_indexes()
		WHERE database_name = ?
		ORDER BY schema_name, table_name, index_name`, s.database)
	if err != nil {
		return nil, err
	}
	for _, row := range indexes {
		r := executor.NewReader(row)
		key := store.TableKey{Schema: r.String("schema_name"), Table: r.String("table_name")}
		name := r.String("index_name")
		unique := r.Bool("is_unique")
		primary := r.Bool("is_primary")
		def := r.String("sql")
		comment := r.String("comment")
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.system(key.Schema) {
			continue
		}
		if def == "" {
			s.log.WithFields(logrus.Fields{"schema": key.Schema, "index": name}).Warn("index has no SQL text, skipping")
			continue
		}
		keys := assemble.KeyList(def)
		if len(keys) == 0 {
			return nil, adapter.UnrecognizedDataError("load indexes", "cannot parse the key list of index %s.%s: %q", key.Schema, name, def)
		}
		for i, kp := range keys {
			p := assemble.IndexPart{
				Key:        key,
				Index:      name,
				Seq:        int64(i + 1),
				SubPart:    -1,
				Type:       "ART",
				Unique:     unique,
				Primary:    primary,
				Visible:    true,
				Comment:    comment,
				Definition: def,
			}
			if identRe.MatchString(kp) {
				col := unquote(kp)
				p.Column = &col
			} else {
				expr := assemble.Unwrap(kp)
				p.Expression = &expr
			}
			parts = append(parts, p)
		}
	}
	return assemble.FoldIndexes(parts, s.log)
}

var identRe = regexp.MustCompile(`^(?:[A-Za-z_][A-Za-z0-9_$]*|"(?:[^"]|"")+")$`)

// unquote turns an identifier matched by identRe into its name.
func unquote(ident string) string {
	if len(ident) < 2 || ident[0] != '"' {
		return ident
	}
	return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
}

// LoadForeignKeys reads FOREIGN KEY constraints. DuckDB only enforces
// NO ACTION and references tables in the same schema.
func (s *Source) LoadForeignKeys(ctx context.Context) (map[store.TableKey][]*store.ForeignKeyMetadata, error) {
	rows, err := s.exec.Query(ctx, "foreign keys", `
		SELECT
			schema_name,
			table_name,
			constraint_name,
			referenced_table,
			unnest(constraint_column_names) AS column_name,
			unnest(referenced_column_names) AS referenced_column,
			generate_subscripts(constraint_column_names, 1) AS ordinal
		FROM duckdb_constraints()
		WHERE database_name = ? AND constraint_type = 'FOREIGN KEY'
		ORDER BY schema_name, table_name, constraint_name, ordinal`, s.database)
	if err != nil {
		return nil, err
	}
	var parts []assemble.ForeignKeyPart
	for _, row := range rows {
		r := executor.NewReader(row)
		p := assemble.ForeignKeyPart{
			Key:              store.TableKey{Schema: r.String("schema_name"), Table: r.String("table_name")},
			Name:             r.String("constraint_name"),
			Ordinal:          r.Int64("ordinal"),
			Column:           r.String("column_name"),
			ReferencedTable:  r.String("referenced_table"),
			ReferencedColumn: r.String("referenced_column"),
			OnDelete:         "NO ACTION",
			OnUpdate:         "NO ACTION",
			MatchType:        "SIMPLE",
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.system(p.Key.Schema) {
			continue
		}
		p.ReferencedSchema = p.Key.Schema
		parts = append(parts, p)
	}
	return assemble.FoldForeignKeys(parts, s.log)
}

type relKey struct{ schema, name string }

// LoadTablesAndViews collects views from duckdb_views(), then classifies
// every relation listed in information_schema.tables.
func (s *Source) LoadTablesAndViews(ctx context.Context) (*adapter.TableSet, error) {
	set := adapter.NewTableSet()

	vrows, err := s.exec.Query(ctx, "views", `
		SELECT schema_name, view_name, sql, COALESCE(comment, '') AS comment
		FROM duckdb_views()
		WHERE database_name = ? AND NOT internal
		ORDER BY schema_name, view_name`, s.database)
	if err != nil {
		return nil, err
	}
	views := make(map[relKey]*store.ViewMetadata, len(vrows))
	for _, row := range vrows {
		r := executor.NewReader(row)
		key := relKey{r.String("schema_name"), r.String("view_name")}
		v := &store.ViewMetadata{
			Name:             key.name,
			Definition:       r.String("sql"),
			Comment:          r.String("comment"),
			DependentColumns: []*store.DependentColumn{},
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.system(key.schema) {
			continue
		}
		views[key] = v
		set.Views[key.schema] = append(set.Views[key.schema], v)
	}

	rows, err := s.exec.Query(ctx, "tables", `
		SELECT
			t.table_schema,
			t.table_name,
			t.table_type,
			COALESCE(d.estimated_size, 0) AS estimated_size,
			COALESCE(d.comment, '') AS comment
		FROM information_schema.tables t
			LEFT JOIN duckdb_tables() d
				ON d.database_name = t.table_catalog AND d.schema_name = t.table_schema AND d.table_name = t.table_name
		WHERE t.table_catalog = ?
		ORDER BY t.table_schema, t.table_name`, s.database)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		r := executor.NewReader(row)
		schema := r.String("table_schema")
		name := r.String("table_name")
		kind := r.String("table_type")
		size := r.Int64("estimated_size")
		comment := r.String("comment")
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.system(schema) {
			continue
		}
		switch kind {
		case "BASE TABLE":
			set.Tables[schema] = append(set.Tables[schema], &store.TableMetadata{
				Name:     name,
				RowCount: size,
				Comment:  comment,
			})
		case "VIEW":
			if v, ok := views[relKey{schema, name}]; ok && v.Comment == "" {
				v.Comment = comment
			}
		default:
			return nil, adapter.UnrecognizedDataError("load tables", "unexpected table type %q for %s.%s", kind, schema, name)
		}
	}
	return set, nil
}

// LoadRoutines reports scalar and table macros as functions. DuckDB has no
// procedures.
func (s *Source) LoadRoutines(ctx context.Context) (*adapter.RoutineSet, error) {
	rows, err := s.exec.Query(ctx, "macros", `
		SELECT schema_name, function_name, COALESCE(macro_definition, '') AS macro_definition
		FROM duckdb_functions()
		WHERE database_name = ? AND NOT internal AND function_type IN ('macro', 'table_macro')
		ORDER BY schema_name, function_name`, s.database)
	if err != nil {
		return nil, err
	}
	set := adapter.NewRoutineSet()
	for _, row := range rows {
		r := executor.NewReader(row)
		schema := r.String("schema_name")
		fn := &store.FunctionMetadata{Name: r.String("function_name"), Definition: r.String("macro_definition")}
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.system(schema) {
			continue
		}
		set.Functions[schema] = append(set.Functions[schema], fn)
	}
	return set, nil
}
