package mysql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/assemble"
	"github.com/sadopc/dbmeta/internal/dialect"
	"github.com/sadopc/dbmeta/internal/executor"
	"github.com/sadopc/dbmeta/internal/normalize"
	"github.com/sadopc/dbmeta/internal/store"
)

const (
	baseTableType = "BASE TABLE"
	viewTableType = "VIEW"
)

// Source reads one database's catalog. MySQL databases have a single
// implicit schema, so every key has an empty Schema.
type Source struct {
	engine   adapter.Engine
	exec     executor.Executor
	database string
	caps     dialect.Capabilities
	log      logrus.FieldLogger
}

var _ adapter.SchemaSource = (*Source)(nil)

func (s *Source) Engine() adapter.Engine { return s.engine }

func (s *Source) LoadDatabases(ctx context.Context) ([]*store.DatabaseSchemaMetadata, error) {
	rows, err := s.exec.Query(ctx, "databases", `
		SELECT
			SCHEMA_NAME,
			DEFAULT_CHARACTER_SET_NAME,
			DEFAULT_COLLATION_NAME
		FROM information_schema.SCHEMATA
		ORDER BY SCHEMA_NAME`)
	if err != nil {
		return nil, err
	}
	out := make([]*store.DatabaseSchemaMetadata, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		db := &store.DatabaseSchemaMetadata{
			Name:         r.String("SCHEMA_NAME"),
			CharacterSet: r.String("DEFAULT_CHARACTER_SET_NAME"),
			Collation:    r.String("DEFAULT_COLLATION_NAME"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		out = append(out, db)
	}
	return out, nil
}

func (s *Source) LoadSchemas(context.Context) ([]adapter.SchemaInfo, error) {
	return []adapter.SchemaInfo{{Name: ""}}, nil
}

func (s *Source) LoadColumns(ctx context.Context) (map[store.TableKey][]*store.ColumnMetadata, error) {
	rows, err := s.exec.Query(ctx, "columns", `
		SELECT
			TABLE_NAME,
			IFNULL(COLUMN_NAME, '') AS COLUMN_NAME,
			ORDINAL_POSITION,
			COLUMN_DEFAULT,
			IS_NULLABLE,
			COLUMN_TYPE,
			IFNULL(CHARACTER_SET_NAME, '') AS CHARACTER_SET_NAME,
			IFNULL(COLLATION_NAME, '') AS COLLATION_NAME,
			COLUMN_COMMENT,
			EXTRA
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`, s.database)
	if err != nil {
		return nil, err
	}

	out := make(map[store.TableKey][]*store.ColumnMetadata)
	for _, row := range rows {
		r := executor.NewReader(row)
		table := r.String("TABLE_NAME")
		col := &store.ColumnMetadata{
			Name:         r.String("COLUMN_NAME"),
			Position:     int(r.Int64("ORDINAL_POSITION")),
			Type:         r.String("COLUMN_TYPE"),
			Nullable:     r.Bool("IS_NULLABLE"),
			CharacterSet: r.String("CHARACTER_SET_NAME"),
			Collation:    r.String("COLLATION_NAME"),
			Comment:      r.String("COLUMN_COMMENT"),
		}
		raw := r.NullString("COLUMN_DEFAULT")
		extra := r.String("EXTRA")
		if err := r.Err(); err != nil {
			return nil, err
		}
		col.Default, col.OnUpdate = normalize.MySQL(raw, extra, col.Nullable)

		key := store.TableKey{Table: table}
		out[key] = append(out[key], col)
	}
	return out, nil
}

// indexQuery selects the STATISTICS columns the server actually has.
func indexQuery(caps dialect.Capabilities) string {
	expression := "NULL AS EXPRESSION"
	if caps.HasIndexExpression {
		expression = "EXPRESSION"
	}
	visible := "1 AS IS_VISIBLE"
	if caps.HasIndexVisibility {
		visible = "CASE IS_VISIBLE WHEN 'YES' THEN 1 ELSE 0 END AS IS_VISIBLE"
	}
	return fmt.Sprintf(`
		SELECT
			TABLE_NAME,
			INDEX_NAME,
			SEQ_IN_INDEX,
			COLUMN_NAME,
			IFNULL(SUB_PART, -1) AS SUB_PART,
			%s,
			INDEX_TYPE,
			CASE NON_UNIQUE WHEN 0 THEN 1 ELSE 0 END AS IS_UNIQUE,
			%s,
			INDEX_COMMENT
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`, expression, visible)
}

func (s *Source) LoadIndexes(ctx context.Context) (map[store.TableKey][]*store.IndexMetadata, error) {
	rows, err := s.exec.Query(ctx, "indexes", indexQuery(s.caps), s.database)
	if err != nil {
		return nil, err
	}

	parts := make([]assemble.IndexPart, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		p := assemble.IndexPart{
			Key:        store.TableKey{Table: r.String("TABLE_NAME")},
			Index:      r.String("INDEX_NAME"),
			Seq:        r.Int64("SEQ_IN_INDEX"),
			Column:     r.NullString("COLUMN_NAME"),
			Expression: r.NullString("EXPRESSION"),
			SubPart:    r.Int64("SUB_PART"),
			Type:       r.String("INDEX_TYPE"),
			Unique:     r.Bool("IS_UNIQUE"),
			Visible:    r.Bool("IS_VISIBLE"),
			Comment:    r.String("INDEX_COMMENT"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		p.Primary = p.Index == "PRIMARY"
		parts = append(parts, p)
	}
	return assemble.FoldIndexes(parts, s.log)
}

func (s *Source) LoadForeignKeys(ctx context.Context) (map[store.TableKey][]*store.ForeignKeyMetadata, error) {
	rows, err := s.exec.Query(ctx, "foreign keys", `
		SELECT
			fks.TABLE_NAME,
			fks.CONSTRAINT_NAME,
			kcu.ORDINAL_POSITION,
			kcu.COLUMN_NAME,
			IFNULL(kcu.REFERENCED_TABLE_SCHEMA, '') AS REFERENCED_TABLE_SCHEMA,
			fks.REFERENCED_TABLE_NAME,
			kcu.REFERENCED_COLUMN_NAME,
			fks.DELETE_RULE,
			fks.UPDATE_RULE,
			fks.MATCH_OPTION
		FROM information_schema.REFERENTIAL_CONSTRAINTS fks
			JOIN information_schema.KEY_COLUMN_USAGE kcu
			ON fks.CONSTRAINT_SCHEMA = kcu.TABLE_SCHEMA
				AND fks.TABLE_NAME = kcu.TABLE_NAME
				AND fks.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE kcu.POSITION_IN_UNIQUE_CONSTRAINT IS NOT NULL AND fks.CONSTRAINT_SCHEMA = ?
		ORDER BY fks.TABLE_NAME, fks.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`, s.database)
	if err != nil {
		return nil, err
	}

	parts := make([]assemble.ForeignKeyPart, 0, len(rows))
	for _, row := range rows {
		r := executor.NewReader(row)
		p := assemble.ForeignKeyPart{
			Key:              store.TableKey{Table: r.String("TABLE_NAME")},
			Name:             r.String("CONSTRAINT_NAME"),
			Ordinal:          r.Int64("ORDINAL_POSITION"),
			Column:           r.String("COLUMN_NAME"),
			ReferencedSchema: r.String("REFERENCED_TABLE_SCHEMA"),
			ReferencedTable:  r.String("REFERENCED_TABLE_NAME"),
			ReferencedColumn: r.String("REFERENCED_COLUMN_NAME"),
			OnDelete:         r.String("DELETE_RULE"),
			OnUpdate:         r.String("UPDATE_RULE"),
			MatchType:        r.String("MATCH_OPTION"),
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return assemble.FoldForeignKeys(parts, s.log)
}

// LoadTablesAndViews collects views first, then walks information_schema.TABLES
// routing base tables into the table list and view rows into the comment of
// the already collected view. Any other TABLE_TYPE fails the sync.
func (s *Source) LoadTablesAndViews(ctx context.Context) (*adapter.TableSet, error) {
	viewRows, err := s.exec.Query(ctx, "views", `
		SELECT
			TABLE_NAME,
			VIEW_DEFINITION
		FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`, s.database)
	if err != nil {
		return nil, err
	}
	views := make(map[string]*store.ViewMetadata, len(viewRows))
	for _, row := range viewRows {
		r := executor.NewReader(row)
		v := &store.ViewMetadata{
			Name:             r.String("TABLE_NAME"),
			Definition:       r.String("VIEW_DEFINITION"),
			DependentColumns: []*store.DependentColumn{},
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		views[v.Name] = v
	}

	rows, err := s.exec.Query(ctx, "tables", `
		SELECT
			TABLE_NAME,
			TABLE_TYPE,
			IFNULL(ENGINE, '') AS ENGINE,
			IFNULL(TABLE_COLLATION, '') AS TABLE_COLLATION,
			CAST(IFNULL(TABLE_ROWS, 0) AS SIGNED) AS TABLE_ROWS,
			CAST(IFNULL(DATA_LENGTH, 0) AS SIGNED) AS DATA_LENGTH,
			CAST(IFNULL(INDEX_LENGTH, 0) AS SIGNED) AS INDEX_LENGTH,
			CAST(IFNULL(DATA_FREE, 0) AS SIGNED) AS DATA_FREE,
			IFNULL(CREATE_OPTIONS, '') AS CREATE_OPTIONS,
			IFNULL(TABLE_COMMENT, '') AS TABLE_COMMENT
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`, s.database)
	if err != nil {
		return nil, err
	}

	set := adapter.NewTableSet()
	for _, row := range rows {
		r := executor.NewReader(row)
		name := r.String("TABLE_NAME")
		tableType := r.String("TABLE_TYPE")
		comment := r.String("TABLE_COMMENT")
		if err := r.Err(); err != nil {
			return nil, err
		}

		switch tableType {
		case viewTableType:
			if v, ok := views[name]; ok {
				v.Comment = comment
			}
		case baseTableType:
			t := &store.TableMetadata{
				Name:          name,
				Engine:        r.String("ENGINE"),
				Collation:     r.String("TABLE_COLLATION"),
				RowCount:      r.Int64("TABLE_ROWS"),
				DataSize:      r.Int64("DATA_LENGTH"),
				IndexSize:     r.Int64("INDEX_LENGTH"),
				DataFree:      r.Int64("DATA_FREE"),
				CreateOptions: r.String("CREATE_OPTIONS"),
				Comment:       comment,
			}
			if err := r.Err(); err != nil {
				return nil, err
			}
			set.Tables[""] = append(set.Tables[""], t)
		default:
			return nil, adapter.UnrecognizedDataError("load tables", "unexpected table type %q for %s", tableType, name)
		}
	}

	list := make([]*store.ViewMetadata, 0, len(views))
	for _, v := range views {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	set.Views[""] = list
	return set, nil
}

func (s *Source) LoadRoutines(ctx context.Context) (*adapter.RoutineSet, error) {
	rows, err := s.exec.Query(ctx, "routines", `
		SELECT
			ROUTINE_NAME,
			ROUTINE_TYPE
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE IN ('FUNCTION', 'PROCEDURE')
		ORDER BY ROUTINE_TYPE, ROUTINE_NAME`, s.database)
	if err != nil {
		return nil, err
	}

	set := adapter.NewRoutineSet()
	for _, row := range rows {
		r := executor.NewReader(row)
		name := r.String("ROUTINE_NAME")
		routineType := r.String("ROUTINE_TYPE")
		if err := r.Err(); err != nil {
			return nil, err
		}

		if strings.EqualFold(routineType, "PROCEDURE") {
			def, err := s.showCreate(ctx, "PROCEDURE", name)
			if err != nil {
				return nil, err
			}
			set.Procedures[""] = append(set.Procedures[""], &store.ProcedureMetadata{Name: name, Definition: def})
			continue
		}
		def, err := s.showCreate(ctx, "FUNCTION", name)
		if err != nil {
			return nil, err
		}
		set.Functions[""] = append(set.Functions[""], &store.FunctionMetadata{Name: name, Definition: def})
	}
	return set, nil
}

// showCreate runs SHOW CREATE FUNCTION|PROCEDURE and reads the
// "Create Function" or "Create Procedure" column. The server does not
// guarantee the column's case, so the lookup is case-insensitive.
func (s *Source) showCreate(ctx context.Context, kind, name string) (string, error) {
	label := "show create " + strings.ToLower(kind)
	query := fmt.Sprintf("SHOW CREATE %s %s.%s", kind, quoteIdent(s.database), quoteIdent(name))
	rows, err := s.exec.Query(ctx, label, query)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", adapter.UnrecognizedDataError(label, "no definition returned for %s", name)
	}
	column := "Create " + strings.ToUpper(kind[:1]) + strings.ToLower(kind[1:])
	if !rows[0].Has(column) {
		return "", adapter.UnrecognizedDataError(label, "column %q missing from result for %s", column, name)
	}
	def, err := rows[0].NullString(column)
	if err != nil {
		return "", err
	}
	if def == nil {
		// NULL when the account lacks the privilege to read the body.
		s.log.WithField("routine", name).Warn("routine definition not readable")
		return "", nil
	}
	return *def, nil
}
