package duckdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/executor/executortest"
	"github.com/sadopc/dbmeta/internal/store"
)

var R = executortest.R

func catalog() *executortest.Fake {
	return executortest.New().
		On("version", R("version", "v1.1.3")).
		On("current database", R("database_name", "warehouse")).
		On("databases",
			R("database_name", "system"),
			R("database_name", "temp"),
			R("database_name", "warehouse"),
		).
		On("schemas",
			R("schema_name", "information_schema", "comment", ""),
			R("schema_name", "main", "comment", ""),
			R("schema_name", "pg_catalog", "comment", ""),
			R("schema_name", "staging", "comment", "raw loads"),
		).
		On("columns",
			R("schema_name", "main", "table_name", "users", "column_name", "id", "column_index", int64(1),
				"data_type", "INTEGER", "column_default", nil, "is_nullable", false, "comment", ""),
			R("schema_name", "main", "table_name", "users", "column_name", "email", "column_index", int64(2),
				"data_type", "VARCHAR", "column_default", nil, "is_nullable", true, "comment", "login"),
			R("schema_name", "main", "table_name", "users", "column_name", "created_at", "column_index", int64(3),
				"data_type", "TIMESTAMP", "column_default", "CURRENT_TIMESTAMP", "is_nullable", false, "comment", ""),
			R("schema_name", "staging", "table_name", "events", "column_name", "user_id", "column_index", int64(1),
				"data_type", "INTEGER", "column_default", nil, "is_nullable", true, "comment", ""),
			R("schema_name", "main", "table_name", "user_emails", "column_name", "email", "column_index", int64(1),
				"data_type", "VARCHAR", "column_default", nil, "is_nullable", true, "comment", ""),
		).
		On("key constraints",
			R("schema_name", "main", "table_name", "users", "constraint_name", "users_id_pkey", "constraint_type", "PRIMARY KEY",
				"constraint_text", "PRIMARY KEY(id)", "column_name", "id", "seq", int64(1)),
		).
		On("indexes",
			R("schema_name", "main", "table_name", "users", "index_name", "users_email_lower", "is_unique", false,
				"is_primary", false, "sql", "CREATE INDEX users_email_lower ON users(email, lower(email));", "comment", ""),
		).
		On("foreign keys",
			R("schema_name", "staging", "table_name", "events", "constraint_name", "events_user_id_fkey",
				"referenced_table", "users", "column_name", "user_id", "referenced_column", "id", "ordinal", int64(1)),
		).
		On("views",
			R("schema_name", "main", "view_name", "user_emails", "sql", "CREATE VIEW user_emails AS SELECT email FROM users;", "comment", ""),
		).
		On("tables",
			R("table_schema", "main", "table_name", "user_emails", "table_type", "VIEW", "estimated_size", int64(0), "comment", "emails only"),
			R("table_schema", "main", "table_name", "users", "table_type", "BASE TABLE", "estimated_size", int64(12), "comment", ""),
			R("table_schema", "staging", "table_name", "events", "table_type", "BASE TABLE", "estimated_size", int64(3000), "comment", ""),
		).
		On("macros",
			R("schema_name", "main", "function_name", "add_one", "macro_definition", "(x + 1)"),
		)
}

func TestSyncDatabase(t *testing.T) {
	db, err := New(catalog(), adapter.Options{}, nil).SyncDatabase(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "warehouse", db.Name)
	require.Len(t, db.Schemas, 2)
	main, staging := db.Schemas[0], db.Schemas[1]
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, "staging", staging.Name)
	assert.Equal(t, "raw loads", staging.Comment)

	tables := db.Tables()
	users := tables[store.TableKey{Schema: "main", Table: "users"}]
	require.NotNil(t, users)
	assert.Equal(t, int64(12), users.RowCount)
	require.Len(t, users.Columns, 3)
	assert.True(t, users.Columns[0].Default.IsZero())
	assert.Equal(t, store.Null(), users.Columns[1].Default)
	assert.Equal(t, store.Expression("CURRENT_TIMESTAMP"), users.Columns[2].Default)

	require.Len(t, users.Indexes, 2)
	assert.Equal(t, "users_email_lower", users.Indexes[0].Name)
	assert.Equal(t, []string{"email", "(lower(email))"}, users.Indexes[0].Expressions)
	assert.Equal(t, "users_id_pkey", users.Indexes[1].Name)
	assert.True(t, users.Indexes[1].Primary)
	assert.True(t, users.Indexes[1].Unique)

	events := tables[store.TableKey{Schema: "staging", Table: "events"}]
	require.Len(t, events.ForeignKeys, 1)
	assert.Equal(t, "staging", events.ForeignKeys[0].ReferencedSchema)
	assert.Equal(t, []string{"id"}, events.ForeignKeys[0].ReferencedColumns)

	require.Len(t, main.Views, 1)
	assert.Equal(t, "emails only", main.Views[0].Comment)
	require.Len(t, main.Functions, 1)
	assert.Equal(t, "add_one", main.Functions[0].Name)
	assert.Empty(t, main.Procedures)
}

func TestSyncDatabase_UnknownTableType(t *testing.T) {
	fake := catalog().On("tables",
		R("table_schema", "main", "table_name", "tmp", "table_type", "LOCAL TEMPORARY", "estimated_size", int64(0), "comment", ""),
	)
	_, err := New(fake, adapter.Options{}, nil).SyncDatabase(context.Background())
	assert.True(t, adapter.IsKind(err, adapter.KindUnrecognizedData))
}

func TestSyncDatabase_QuotedKeyParts(t *testing.T) {
	fake := catalog().On("indexes",
		R("schema_name", "main", "table_name", "users", "index_name", "users_odd", "is_unique", false,
			"is_primary", false, "sql", `CREATE INDEX users_odd ON users("it's", (email || '"'));`, "comment", ""),
	)
	db, err := New(fake, adapter.Options{}, nil).SyncDatabase(context.Background())
	require.NoError(t, err)

	users := db.Tables()[store.TableKey{Schema: "main", Table: "users"}]
	require.Len(t, users.Indexes, 2)
	assert.Equal(t, "users_odd", users.Indexes[1].Name)
	assert.Equal(t, []string{"it's", `(email || '"')`}, users.Indexes[1].Expressions)
}

func TestSyncDatabase_UnparsableIndex(t *testing.T) {
	fake := catalog().On("indexes",
		R("schema_name", "main", "table_name", "users", "index_name", "users_broken", "is_unique", false,
			"is_primary", false, "sql", "CREATE INDEX users_broken ON users(email", "comment", ""),
	)
	_, err := New(fake, adapter.Options{}, nil).SyncDatabase(context.Background())
	assert.True(t, adapter.IsKind(err, adapter.KindUnrecognizedData))
}

func TestUnquote(t *testing.T) {
	assert.Equal(t, "email", unquote("email"))
	assert.Equal(t, "Weird, Name", unquote(`"Weird, Name"`))
	assert.Equal(t, `say "hi"`, unquote(`"say ""hi"""`))
}

func TestSyncInstance(t *testing.T) {
	inst, err := New(catalog(), adapter.Options{}, nil).SyncInstance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.1.3", inst.Version)
	require.Len(t, inst.Databases, 1)
	assert.Equal(t, "warehouse", inst.Databases[0].Name)
}

func TestVersion_Bad(t *testing.T) {
	fake := executortest.New().On("version", R("version", "dev"))
	_, err := New(fake, adapter.Options{}, nil).Version(context.Background())
	assert.True(t, adapter.IsKind(err, adapter.KindUnrecognizedData))
}
