package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/executor/executortest"
	"github.com/sadopc/dbmeta/internal/store"
)

var R = executortest.R

func TestRegistration(t *testing.T) {
	assert.Contains(t, adapter.Registered(), adapter.Postgres)
}

func TestConnString(t *testing.T) {
	tests := []struct {
		name string
		cfg  adapter.ConnectionConfig
		want string
	}{
		{
			name: "full",
			cfg:  adapter.ConnectionConfig{Host: "db", Port: 5433, Username: "app", Password: "p@ss", Database: "shop"},
			want: "postgres://app:p%40ss@db:5433/shop",
		},
		{
			name: "no password",
			cfg:  adapter.ConnectionConfig{Host: "localhost", Port: 5432, Username: "app", Database: "shop"},
			want: "postgres://app@localhost:5432/shop",
		},
		{
			name: "anonymous",
			cfg:  adapter.ConnectionConfig{Host: "localhost", Port: 5432, Database: "shop"},
			want: "postgres://localhost:5432/shop",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConnString(tt.cfg))
		})
	}
}

func catalog() *executortest.Fake {
	return executortest.New().
		On("version", R("server_version_num", "150004")).
		On("databases",
			R("datname", "postgres", "character_set", "UTF8", "datcollate", "en_US.utf8", "db_owner", "postgres"),
			R("datname", "shop", "character_set", "UTF8", "datcollate", "en_US.utf8", "db_owner", "app"),
			R("datname", "template1", "character_set", "UTF8", "datcollate", "en_US.utf8", "db_owner", "postgres"),
		).
		On("schemas",
			R("nspname", "public", "schema_owner", "pg_database_owner", "schema_comment", "standard public schema"),
			R("nspname", "sales", "schema_owner", "app", "schema_comment", nil),
		).
		On("columns",
			R("table_schema", "public", "table_name", "users", "column_name", "id", "data_type", "integer",
				"character_maximum_length", nil, "ordinal_position", int32(1), "column_default", nil,
				"is_nullable", "NO", "collation_name", nil, "udt_schema", "pg_catalog", "udt_name", "int4",
				"identity_generation", "ALWAYS", "column_comment", nil),
			R("table_schema", "public", "table_name", "users", "column_name", "email", "data_type", "character varying",
				"character_maximum_length", int32(255), "ordinal_position", int32(2), "column_default", nil,
				"is_nullable", "YES", "collation_name", nil, "udt_schema", "pg_catalog", "udt_name", "varchar",
				"identity_generation", nil, "column_comment", "login"),
			R("table_schema", "public", "table_name", "users", "column_name", "status", "data_type", "USER-DEFINED",
				"character_maximum_length", nil, "ordinal_position", int32(3), "column_default", "'active'::public.user_status",
				"is_nullable", "NO", "collation_name", nil, "udt_schema", "public", "udt_name", "user_status",
				"identity_generation", nil, "column_comment", nil),
			R("table_schema", "sales", "table_name", "orders", "column_name", "id", "data_type", "bigint",
				"character_maximum_length", nil, "ordinal_position", int32(1), "column_default", "nextval('sales.orders_id_seq'::regclass)",
				"is_nullable", "NO", "collation_name", nil, "udt_schema", "pg_catalog", "udt_name", "int8",
				"identity_generation", nil, "column_comment", nil),
			R("table_schema", "sales", "table_name", "orders", "column_name", "user_id", "data_type", "integer",
				"character_maximum_length", nil, "ordinal_position", int32(2), "column_default", nil,
				"is_nullable", "NO", "collation_name", nil, "udt_schema", "pg_catalog", "udt_name", "int4",
				"identity_generation", nil, "column_comment", nil),
		).
		On("indexes",
			R("schema_name", "public", "table_name", "users", "index_name", "users_pkey", "seq", int64(1),
				"column_name", "id", "expression", nil, "index_type", "btree", "is_unique", true, "is_primary", true,
				"comment", "", "definition", "CREATE UNIQUE INDEX users_pkey ON public.users USING btree (id)"),
			R("schema_name", "public", "table_name", "users", "index_name", "users_lower_email", "seq", int64(1),
				"column_name", nil, "expression", "lower((email)::text)", "index_type", "btree", "is_unique", true, "is_primary", false,
				"comment", "", "definition", "CREATE UNIQUE INDEX users_lower_email ON public.users USING btree (lower((email)::text))"),
			R("schema_name", "sales", "table_name", "orders", "index_name", "orders_pkey", "seq", int64(1),
				"column_name", "id", "expression", nil, "index_type", "btree", "is_unique", true, "is_primary", true,
				"comment", "", "definition", "CREATE UNIQUE INDEX orders_pkey ON sales.orders USING btree (id)"),
		).
		On("foreign keys",
			R("schema_name", "sales", "table_name", "orders", "constraint_name", "orders_user_id_fkey", "ordinal", int64(1),
				"column_name", "user_id", "referenced_schema", "public", "referenced_table", "users", "referenced_column", "id",
				"on_delete", "CASCADE", "on_update", "NO ACTION", "match_type", "SIMPLE"),
		).
		On("views",
			R("schemaname", "public", "viewname", "active_users", "definition", " SELECT id, email FROM users WHERE status = 'active';"),
		).
		On("materialized views",
			R("schemaname", "sales", "matviewname", "daily_totals", "definition", " SELECT count(*) AS n FROM sales.orders;"),
		).
		On("view dependencies",
			R("view_schema", "public", "view_name", "active_users", "table_schema", "public", "table_name", "users", "column_name", "email"),
			R("view_schema", "public", "view_name", "active_users", "table_schema", "public", "table_name", "users", "column_name", "id"),
			R("view_schema", "sales", "view_name", "daily_totals", "table_schema", "sales", "table_name", "orders", "column_name", "id"),
		).
		On("tables",
			R("schema_name", "public", "table_name", "active_users", "table_type", "VIEW", "data_size", int64(0),
				"index_size", int64(0), "estimate", int64(0), "comment", "users not disabled", "owner", "app"),
			R("schema_name", "public", "table_name", "remote_events", "table_type", "FOREIGN TABLE", "data_size", int64(0),
				"index_size", int64(0), "estimate", int64(0), "comment", "", "owner", "app"),
			R("schema_name", "public", "table_name", "users", "table_type", "BASE TABLE", "data_size", int64(16384),
				"index_size", int64(32768), "estimate", int64(42), "comment", "", "owner", "app"),
			R("schema_name", "sales", "table_name", "daily_totals", "table_type", "MATERIALIZED VIEW", "data_size", int64(8192),
				"index_size", int64(0), "estimate", int64(1), "comment", "", "owner", "app"),
			R("schema_name", "sales", "table_name", "orders", "table_type", "BASE TABLE", "data_size", int64(8192),
				"index_size", int64(16384), "estimate", int64(7), "comment", "", "owner", "app"),
		).
		On("routines",
			R("schema_name", "public", "routine_name", "touch", "routine_kind", "f", "definition", "CREATE OR REPLACE FUNCTION public.touch() ..."),
			R("schema_name", "sales", "routine_name", "archive", "routine_kind", "p", "definition", "CREATE OR REPLACE PROCEDURE sales.archive() ..."),
		).
		On("extensions",
			R("name", "plpgsql", "schema", "pg_catalog", "version", "1.0", "description", "PL/pgSQL procedural language"),
		).
		On("roles",
			R("rolname", "app", "rolsuper", false, "rolinherit", true, "rolcreaterole", false,
				"rolcreatedb", true, "rolcanlogin", true, "rolreplication", false, "rolbypassrls", false),
		)
}

func TestSyncDatabase(t *testing.T) {
	fake := catalog()
	d := New(fake, "shop", adapter.Options{}, nil)

	db, err := d.SyncDatabase(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Begun)
	assert.Equal(t, 1, fake.Committed)
	assert.Equal(t, 0, fake.RolledBack)
	assert.True(t, fake.LastTx.ReadOnly)
	assert.True(t, fake.LastTx.Snapshot)

	assert.Equal(t, "shop", db.Name)
	assert.Equal(t, "UTF8", db.CharacterSet)
	assert.Equal(t, "app", db.Owner)
	require.Len(t, db.Extensions, 1)
	assert.Equal(t, "plpgsql", db.Extensions[0].Name)

	require.Len(t, db.Schemas, 2)
	public, sales := db.Schemas[0], db.Schemas[1]
	assert.Equal(t, "public", public.Name)
	assert.Equal(t, "standard public schema", public.Comment)
	assert.Equal(t, "sales", sales.Name)
	assert.Equal(t, "", sales.Comment)

	tables := db.Tables()
	users := tables[store.TableKey{Schema: "public", Table: "users"}]
	require.NotNil(t, users)
	assert.Equal(t, int64(42), users.RowCount)
	assert.Equal(t, int64(16384), users.DataSize)
	require.Len(t, users.Columns, 3)
	assert.Equal(t, "integer", users.Columns[0].Type)
	assert.Equal(t, store.IdentityAlways, users.Columns[0].IdentityGeneration)
	assert.Equal(t, store.AutoIncrement(), users.Columns[0].Default)
	assert.Equal(t, "character varying(255)", users.Columns[1].Type)
	assert.Equal(t, store.Null(), users.Columns[1].Default)
	assert.Equal(t, "login", users.Columns[1].Comment)
	assert.Equal(t, "public.user_status", users.Columns[2].Type)
	assert.Equal(t, store.Expression("'active'::public.user_status"), users.Columns[2].Default)

	require.Len(t, users.Indexes, 2)
	assert.Equal(t, "users_lower_email", users.Indexes[0].Name)
	assert.Equal(t, []string{"(lower((email)::text))"}, users.Indexes[0].Expressions)
	assert.Equal(t, []int64{-1}, users.Indexes[0].KeyLength)
	assert.True(t, users.Indexes[0].Visible)
	assert.Equal(t, "users_pkey", users.Indexes[1].Name)
	assert.True(t, users.Indexes[1].Primary)

	orders := tables[store.TableKey{Schema: "sales", Table: "orders"}]
	require.NotNil(t, orders)
	assert.Equal(t, store.Expression("nextval('sales.orders_id_seq'::regclass)"), orders.Columns[0].Default)
	require.Len(t, orders.ForeignKeys, 1)
	fk := orders.ForeignKeys[0]
	assert.Equal(t, "orders_user_id_fkey", fk.Name)
	assert.Equal(t, []string{"user_id"}, fk.Columns)
	assert.Equal(t, "public", fk.ReferencedSchema)
	assert.Equal(t, "users", fk.ReferencedTable)
	assert.Equal(t, []string{"id"}, fk.ReferencedColumns)
	assert.Equal(t, "CASCADE", fk.OnDelete)
	assert.Equal(t, "SIMPLE", fk.MatchType)

	require.Len(t, public.Views, 1)
	view := public.Views[0]
	assert.Equal(t, "active_users", view.Name)
	assert.Equal(t, "users not disabled", view.Comment)
	assert.Equal(t, []*store.DependentColumn{
		{Schema: "public", Table: "users", Column: "email"},
		{Schema: "public", Table: "users", Column: "id"},
	}, view.DependentColumns)

	require.Len(t, public.ExternalTables, 1)
	assert.Equal(t, "remote_events", public.ExternalTables[0].Name)

	require.Len(t, sales.MaterializedViews, 1)
	assert.Equal(t, "daily_totals", sales.MaterializedViews[0].Name)
	assert.Len(t, sales.MaterializedViews[0].DependentColumns, 1)

	require.Len(t, public.Functions, 1)
	assert.Equal(t, "touch", public.Functions[0].Name)
	require.Len(t, sales.Procedures, 1)
	assert.Equal(t, "archive", sales.Procedures[0].Name)
}

func TestSyncDatabase_SystemSchemaFilterArgs(t *testing.T) {
	fake := catalog()
	_, err := New(fake, "shop", adapter.Options{}, nil).SyncDatabase(context.Background())
	require.NoError(t, err)

	for _, c := range fake.Calls() {
		if c.Label != "columns" {
			continue
		}
		require.Len(t, c.Args, 2)
		assert.Contains(t, c.Args[0], "pg_catalog")
		assert.Contains(t, c.Args[1], `pg\_temp\_%`)
	}
}

func TestSyncDatabase_RollsBackOnError(t *testing.T) {
	fake := catalog().Fail("indexes", errors.New("canceling statement due to statement timeout"))
	db, err := New(fake, "shop", adapter.Options{}, nil).SyncDatabase(context.Background())

	assert.Nil(t, db)
	assert.True(t, adapter.IsKind(err, adapter.KindQuery))
	assert.Equal(t, 1, fake.Begun)
	assert.Equal(t, 0, fake.Committed)
	assert.Equal(t, 1, fake.RolledBack)
}

func TestSyncDatabase_RunsSequentially(t *testing.T) {
	fake := catalog()
	_, err := New(fake, "shop", adapter.Options{Concurrent: true}, nil).SyncDatabase(context.Background())
	require.NoError(t, err)

	// Sequential loads keep a stable query order even when concurrency is asked for.
	assert.Equal(t, []string{
		"databases", "schemas", "columns", "indexes", "foreign keys",
		"views", "materialized views", "view dependencies", "tables",
		"routines", "extensions",
	}, fake.Labels())
}

func TestSyncDatabase_MissingDatabase(t *testing.T) {
	fake := catalog()
	_, err := New(fake, "nope", adapter.Options{}, nil).SyncDatabase(context.Background())
	assert.True(t, adapter.IsKind(err, adapter.KindArgument))
	assert.Equal(t, 1, fake.RolledBack)
}

func TestSyncDatabase_UnknownRelationKind(t *testing.T) {
	fake := catalog().On("tables",
		R("schema_name", "public", "table_name", "odd", "table_type", "S", "data_size", int64(0),
			"index_size", int64(0), "estimate", int64(0), "comment", "", "owner", "app"),
	)
	_, err := New(fake, "shop", adapter.Options{}, nil).SyncDatabase(context.Background())
	require.Error(t, err)
	assert.True(t, adapter.IsKind(err, adapter.KindUnrecognizedData))
	assert.Contains(t, err.Error(), `unexpected relation kind "S" for public.odd`)
}

func TestVersion(t *testing.T) {
	tests := []struct {
		raw     any
		want    string
		wantErr bool
	}{
		{raw: "150004", want: "15.0.4"},
		{raw: "90624", want: "9.6.24"},
		{raw: " 160002 ", want: "16.0.2"},
		{raw: "fifteen", wantErr: true},
	}
	for _, tt := range tests {
		fake := executortest.New().On("version", R("server_version_num", tt.raw))
		v, err := New(fake, "shop", adapter.Options{}, nil).Version(context.Background())
		if tt.wantErr {
			assert.True(t, adapter.IsKind(err, adapter.KindUnrecognizedData), "raw %v", tt.raw)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, v.Number)
	}
}

func TestSyncInstance(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := catalog()
	inst, err := New(fake, "shop", adapter.Options{Clock: func() time.Time { return now }}, nil).
		SyncInstance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "15.0.4", inst.Version)
	assert.Equal(t, now.Unix(), inst.LastSync)
	names := make([]string, 0, len(inst.Databases))
	for _, d := range inst.Databases {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"postgres", "shop"}, names)

	require.Len(t, inst.InstanceRoles, 1)
	assert.Equal(t, "app", inst.InstanceRoles[0].Name)
	assert.Equal(t, []string{"INHERIT", "CREATEDB", "LOGIN"}, inst.InstanceRoles[0].Attributes)
	assert.Equal(t, 0, fake.Begun)
}
