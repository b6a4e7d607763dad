package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/assemble"
	"github.com/sadopc/dbmeta/internal/executor"
	"github.com/sadopc/dbmeta/internal/normalize"
	"github.com/sadopc/dbmeta/internal/store"
)

// userTables restricts sqlite_master m to user tables.
const userTables = `m.type = 'table' AND m.name NOT LIKE 'sqlite\_%' ESCAPE '\'`

// Source reads the catalog of the main database. SQLite has a single
// implicit schema and no stored routines.
type Source struct {
	exec executor.Executor
	name string
	log  logrus.FieldLogger
}

var _ adapter.SchemaSource = (*Source)(nil)

// NewSource builds a Source reporting its database as name.
func NewSource(exec executor.Executor, name string, log logrus.FieldLogger) *Source {
	return &Source{exec: exec, name: name, log: log}
}

func (s *Source) Engine() adapter.Engine { return adapter.SQLite }

func (s *Source) LoadDatabases(ctx context.Context) ([]*store.DatabaseSchemaMetadata, error) {
	rows, err := s.exec.Query(ctx, "databases", "PRAGMA encoding")
	if err != nil {
		return nil, err
	}
	db := &store.DatabaseSchemaMetadata{Name: s.name}
	if len(rows) > 0 {
		enc, err := rows[0].String("encoding")
		if err != nil {
			return nil, err
		}
		db.CharacterSet = enc
	}
	return []*store.DatabaseSchemaMetadata{db}, nil
}

func (s *Source) LoadSchemas(context.Context) ([]adapter.SchemaInfo, error) {
	return []adapter.SchemaInfo{{}}, nil
}

// LoadColumns reads pragma_table_xinfo for every user table, so generated
// columns are kept. Hidden virtual table columns are skipped and positions
// count only the columns reported. A lone INTEGER PRIMARY KEY column of a
// rowid table aliases the rowid, which the engine fills automatically and
// never leaves NULL.
func (s *Source) LoadColumns(ctx context.Context) (map[store.TableKey][]*store.ColumnMetadata, error) {
	rows, err := s.exec.Query(ctx, "columns", `
		SELECT
			m.name AS table_name,
			m.sql AS table_sql,
			p.name AS column_name,
			p.type AS column_type,
			p."notnull" AS not_null,
			p.dflt_value AS dflt_value,
			p.pk AS pk,
			(SELECT COUNT(*) FROM pragma_table_xinfo(m.name) q WHERE q.pk > 0) AS pk_count
		FROM sqlite_master m
			JOIN pragma_table_xinfo(m.name) p
		WHERE `+userTables+` AND p.hidden IN (0, 2, 3)
		ORDER BY m.name, p.cid`)
	if err != nil {
		return nil, err
	}

	out := make(map[store.TableKey][]*store.ColumnMetadata)
	for _, row := range rows {
		r := executor.NewReader(row)
		key := store.TableKey{Table: r.String("table_name")}
		tableSQL := r.String("table_sql")
		col := &store.ColumnMetadata{
			Name:     r.String("column_name"),
			Position: len(out[key]) + 1,
			Type:     r.String("column_type"),
			Nullable: !r.Bool("not_null"),
		}
		pk := r.Int64("pk")
		pkCount := r.Int64("pk_count")
		raw := r.NullString("dflt_value")
		if err := r.Err(); err != nil {
			return nil, err
		}
		rowidAlias := pk == 1 && pkCount == 1 &&
			strings.EqualFold(col.Type, "INTEGER") &&
			!strings.Contains(strings.ToUpper(tableSQL), "WITHOUT ROWID")
		if rowidAlias {
			col.Nullable = false
		}
		col.Default = normalize.SQLite(raw, col.Nullable, rowidAlias)
		out[key] = append(out[key], col)
	}
	return out, nil
}

// LoadIndexes reads the key columns of every index. The pragmas report an
// expression key part as cid -2 with no name, so its text is taken from the
// same position of the key list in the CREATE INDEX statement.
func (s *Source) LoadIndexes(ctx context.Context) (map[store.TableKey][]*store.IndexMetadata, error) {
	rows, err := s.exec.Query(ctx, "indexes", `
		SELECT
			m.name AS table_name,
			il.name AS index_name,
			il."unique" AS is_unique,
			il.origin AS origin,
			ix.seqno AS seqno,
			ix.cid AS cid,
			ix.name AS column_name,
			COALESCE(d.sql, '') AS definition
		FROM sqlite_master m
			JOIN pragma_index_list(m.name) il
			JOIN pragma_index_xinfo(il.name) ix
			LEFT JOIN sqlite_master d ON d.type = 'index' AND d.name = il.name
		WHERE `+userTables+` AND ix."key" = 1
		ORDER BY m.name, il.name, ix.seqno`)
	if err != nil {
		return nil, err
	}

	keyLists := make(map[string][]string)
	parts := make([]assemble.IndexPart, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		p := assemble.IndexPart{
			Key:        store.TableKey{Table: r.String("table_name")},
			Index:      r.String("index_name"),
			Seq:        r.Int64("seqno") + 1,
			Column:     r.NullString("column_name"),
			SubPart:    -1,
			Type:       "BTREE",
			Unique:     r.Bool("is_unique"),
			Primary:    r.String("origin") == "pk",
			Visible:    true,
			Definition: r.String("definition"),
		}
		cid := r.Int64("cid")
		if err := r.Err(); err != nil {
			return nil, err
		}
		if cid == expressionCID {
			keys, ok := keyLists[p.Index]
			if !ok {
				keys = assemble.KeyList(p.Definition)
				keyLists[p.Index] = keys
			}
			if int(p.Seq) > len(keys) {
				return nil, adapter.UnrecognizedDataError("load indexes",
					"no text for expression key part %d of index %s: %q", p.Seq, p.Index, p.Definition)
			}
			expr := assemble.Unwrap(assemble.TrimOrdering(keys[p.Seq-1]))
			p.Expression = &expr
		}
		parts = append(parts, p)
	}
	return assemble.FoldIndexes(parts, s.log)
}

// expressionCID is the cid pragma_index_xinfo reports for an expression.
const expressionCID = -2

// LoadForeignKeys reads pragma_foreign_key_list. SQLite constraints are
// anonymous in the pragma, so each is named fk_<table>_<id>. A reference
// without a target column points at the parent's primary key.
func (s *Source) LoadForeignKeys(ctx context.Context) (map[store.TableKey][]*store.ForeignKeyMetadata, error) {
	rows, err := s.exec.Query(ctx, "foreign keys", `
		SELECT
			m.name AS table_name,
			fk.id AS id,
			fk.seq AS seq,
			fk."table" AS referenced_table,
			fk."from" AS column_name,
			COALESCE(fk."to", (
				SELECT p.name FROM pragma_table_info(fk."table") p WHERE p.pk = fk.seq + 1
			), '') AS referenced_column,
			fk.on_update AS on_update,
			fk.on_delete AS on_delete,
			fk."match" AS match_type
		FROM sqlite_master m
			JOIN pragma_foreign_key_list(m.name) fk
		WHERE `+userTables+`
		ORDER BY m.name, fk.id, fk.seq`)
	if err != nil {
		return nil, err
	}

	parts := make([]assemble.ForeignKeyPart, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		table := r.String("table_name")
		p := assemble.ForeignKeyPart{
			Key:              store.TableKey{Table: table},
			Name:             fmt.Sprintf("fk_%s_%d", table, r.Int64("id")),
			Ordinal:          r.Int64("seq") + 1,
			Column:           r.String("column_name"),
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

// LoadTablesAndViews classifies every non-internal sqlite_master object
// other than indexes and triggers.
func (s *Source) LoadTablesAndViews(ctx context.Context) (*adapter.TableSet, error) {
	rows, err := s.exec.Query(ctx, "tables", `
		SELECT type, name, COALESCE(sql, '') AS sql
		FROM sqlite_master
		WHERE type NOT IN ('index', 'trigger')
			AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}

	set := adapter.NewTableSet()
	for _, row := range rows {
		r := executor.NewReader(row)
		kind := r.String("type")
		name := r.String("name")
		def := r.String("sql")
		if err := r.Err(); err != nil {
			return nil, err
		}
		switch kind {
		case "table":
			set.Tables[""] = append(set.Tables[""], &store.TableMetadata{Name: name})
		case "view":
			set.Views[""] = append(set.Views[""], &store.ViewMetadata{
				Name:             name,
				Definition:       def,
				DependentColumns: []*store.DependentColumn{},
			})
		default:
			return nil, adapter.UnrecognizedDataError("load tables", "unexpected table type %q for %s", kind, name)
		}
	}
	return set, nil
}

func (s *Source) LoadRoutines(context.Context) (*adapter.RoutineSet, error) {
	return adapter.NewRoutineSet(), nil
}
