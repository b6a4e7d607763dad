package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/store"
)

// fakeSource serves a fixed catalog. Each Load returns fresh values so
// successive syncs do not share state.
type fakeSource struct {
	engine  adapter.Engine
	rows    int64
	failOn  string
	calls   atomic.Int32
	roles   bool
	invalid bool
}

func (f *fakeSource) Engine() adapter.Engine { return f.engine }

func (f *fakeSource) fail(op string) error {
	f.calls.Add(1)
	if f.failOn == op {
		return adapter.QueryError(op, errors.New("connection reset"))
	}
	return nil
}

func (f *fakeSource) LoadDatabases(context.Context) ([]*store.DatabaseSchemaMetadata, error) {
	if err := f.fail("databases"); err != nil {
		return nil, err
	}
	return []*store.DatabaseSchemaMetadata{
		{Name: "app", CharacterSet: "utf8mb4", Collation: "utf8mb4_0900_ai_ci"},
		{Name: "mysql"},
		{Name: "information_schema"},
		{Name: "reporting"},
	}, nil
}

func (f *fakeSource) LoadSchemas(context.Context) ([]adapter.SchemaInfo, error) {
	if err := f.fail("schemas"); err != nil {
		return nil, err
	}
	return []adapter.SchemaInfo{{Name: ""}}, nil
}

func (f *fakeSource) LoadColumns(context.Context) (map[store.TableKey][]*store.ColumnMetadata, error) {
	if err := f.fail("columns"); err != nil {
		return nil, err
	}
	return map[store.TableKey][]*store.ColumnMetadata{
		{Table: "users"}: {
			{Name: "id", Position: 1, Type: "int", Default: store.AutoIncrement()},
			{Name: "email", Position: 2, Type: "varchar(255)", Nullable: true, Default: store.Null()},
		},
		{Table: "orders"}: {{Name: "id", Position: 1, Type: "int"}, {Name: "user_id", Position: 2, Type: "int"}},
		// Columns of a view are reported too and must not leak anywhere.
		{Table: "active_users"}: {{Name: "id", Position: 1, Type: "int"}},
	}, nil
}

func (f *fakeSource) LoadIndexes(context.Context) (map[store.TableKey][]*store.IndexMetadata, error) {
	if err := f.fail("indexes"); err != nil {
		return nil, err
	}
	idx := &store.IndexMetadata{Name: "PRIMARY", Expressions: []string{"id"}, KeyLength: []int64{-1}, Primary: true, Unique: true, Visible: true}
	if f.invalid {
		idx.KeyLength = nil
	}
	return map[store.TableKey][]*store.IndexMetadata{{Table: "users"}: {idx}}, nil
}

func (f *fakeSource) LoadForeignKeys(context.Context) (map[store.TableKey][]*store.ForeignKeyMetadata, error) {
	if err := f.fail("foreign keys"); err != nil {
		return nil, err
	}
	return map[store.TableKey][]*store.ForeignKeyMetadata{
		{Table: "orders"}: {{Name: "fk_user", Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}}},
	}, nil
}

func (f *fakeSource) LoadTablesAndViews(context.Context) (*adapter.TableSet, error) {
	if err := f.fail("tables"); err != nil {
		return nil, err
	}
	ts := adapter.NewTableSet()
	ts.Tables[""] = []*store.TableMetadata{
		{Name: "events", RowCount: f.rows},
		{Name: "orders", RowCount: f.rows * 2},
		{Name: "users", RowCount: f.rows * 3, DataSize: 16384},
	}
	ts.Views[""] = []*store.ViewMetadata{{Name: "z_view"}, {Name: "active_users", Comment: "active"}}
	return ts, nil
}

func (f *fakeSource) LoadRoutines(context.Context) (*adapter.RoutineSet, error) {
	if err := f.fail("routines"); err != nil {
		return nil, err
	}
	rs := adapter.NewRoutineSet()
	rs.Functions[""] = []*store.FunctionMetadata{{Name: "f", Definition: "CREATE FUNCTION f() RETURNS INT RETURN 1"}}
	return rs, nil
}

type roleSource struct{ *fakeSource }

func (r roleSource) LoadRoles(context.Context) ([]*store.InstanceRoleMetadata, error) {
	return []*store.InstanceRoleMetadata{{Name: "admin", Attributes: []string{"SUPERUSER"}}}, nil
}

func TestDatabase_Assembles(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		src := &fakeSource{engine: adapter.MySQL, rows: 10}
		db, err := Database(context.Background(), src, "app", adapter.Options{Concurrent: concurrent})
		require.NoError(t, err)

		assert.Equal(t, "utf8mb4", db.CharacterSet)
		require.Len(t, db.Schemas, 1)
		s := db.Schemas[0]
		assert.Equal(t, "", s.Name)
		require.Len(t, s.Tables, 3)

		tables := db.Tables()
		users := tables[store.TableKey{Table: "users"}]
		require.NotNil(t, users)
		assert.Len(t, users.Columns, 2)
		assert.Equal(t, "PRIMARY", users.Indexes[0].Name)
		assert.Empty(t, users.ForeignKeys)
		assert.NotNil(t, users.ForeignKeys, "missing entries become empty collections")

		orders := tables[store.TableKey{Table: "orders"}]
		require.Len(t, orders.ForeignKeys, 1)
		assert.Equal(t, []string{"user_id"}, orders.ForeignKeys[0].Columns)

		events := tables[store.TableKey{Table: "events"}]
		assert.NotNil(t, events.Columns)
		assert.Empty(t, events.Columns)
		assert.Empty(t, events.Indexes)

		require.Len(t, s.Views, 2)
		assert.Equal(t, "active_users", s.Views[0].Name, "views sorted by name")
		assert.Len(t, s.Functions, 1)
		assert.NotNil(t, s.Procedures)
		assert.NotNil(t, db.Extensions)
	}
}

func TestDatabase_NotFound(t *testing.T) {
	src := &fakeSource{engine: adapter.MySQL}
	db, err := Database(context.Background(), src, "missing", adapter.Options{})
	assert.Nil(t, db)
	require.Error(t, err)
	assert.True(t, adapter.IsKind(err, adapter.KindArgument))
	assert.Contains(t, err.Error(), "missing")
}

func TestDatabase_NameCase(t *testing.T) {
	tests := []struct {
		engine adapter.Engine
		found  bool
	}{
		{adapter.MySQL, true},
		{adapter.TiDB, true},
		{adapter.Postgres, false},
		{adapter.SQLite, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			db, err := Database(context.Background(), &fakeSource{engine: tt.engine}, "App", adapter.Options{})
			if !tt.found {
				assert.True(t, adapter.IsKind(err, adapter.KindArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "app", db.Name, "the catalog spelling is kept")
		})
	}
}

func TestFindDatabase_PrefersExactMatch(t *testing.T) {
	dbs := []*store.DatabaseSchemaMetadata{{Name: "shop"}, {Name: "Shop"}}
	assert.Same(t, dbs[1], findDatabase(adapter.MySQL, dbs, "Shop"))
	assert.Same(t, dbs[0], findDatabase(adapter.MySQL, dbs, "SHOP"))
	assert.Nil(t, findDatabase(adapter.Postgres, dbs, "SHOP"))
}

func TestDatabase_AnyFailureAborts(t *testing.T) {
	for _, op := range []string{"databases", "schemas", "columns", "indexes", "foreign keys", "tables", "routines"} {
		for _, concurrent := range []bool{false, true} {
			src := &fakeSource{engine: adapter.MySQL, failOn: op}
			db, err := Database(context.Background(), src, "app", adapter.Options{Concurrent: concurrent})
			assert.Nil(t, db, "no partial tree when %s fails", op)
			assert.True(t, adapter.IsKind(err, adapter.KindQuery), "%s: %v", op, err)
		}
	}
}

func TestDatabase_SequentialStopsAtFirstError(t *testing.T) {
	src := &fakeSource{engine: adapter.MySQL, failOn: "schemas"}
	_, err := Database(context.Background(), src, "app", adapter.Options{})
	require.Error(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "databases and schemas only")
}

func TestDatabase_InvariantViolation(t *testing.T) {
	src := &fakeSource{engine: adapter.MySQL, invalid: true}
	db, err := Database(context.Background(), src, "app", adapter.Options{})
	assert.Nil(t, db)
	assert.True(t, adapter.IsKind(err, adapter.KindUnrecognizedData))
}

func TestDatabase_IdempotentModuloVolatile(t *testing.T) {
	first, err := Database(context.Background(), &fakeSource{engine: adapter.MySQL, rows: 10}, "app", adapter.Options{})
	require.NoError(t, err)
	second, err := Database(context.Background(), &fakeSource{engine: adapter.MySQL, rows: 99}, "app", adapter.Options{Concurrent: true})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	first.StripVolatile()
	second.StripVolatile()
	assert.Equal(t, first, second)
}

func TestInstance(t *testing.T) {
	clock := func() time.Time { return time.Unix(1700000000, 0) }
	src := &fakeSource{engine: adapter.MySQL}

	inst, err := Instance(context.Background(), src, "8.0.32", adapter.Options{Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, "8.0.32", inst.Version)
	assert.Equal(t, int64(1700000000), inst.LastSync)

	var names []string
	for _, d := range inst.Databases {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"app", "reporting"}, names)
	assert.Empty(t, inst.InstanceRoles)
}

func TestInstance_Roles(t *testing.T) {
	src := roleSource{&fakeSource{engine: adapter.Postgres}}
	inst, err := Instance(context.Background(), src, "16.0.2", adapter.Options{})
	require.NoError(t, err)
	require.Len(t, inst.InstanceRoles, 1)
	assert.Equal(t, "admin", inst.InstanceRoles[0].Name)
	// Postgres does not treat "mysql" as a system database.
	assert.Len(t, inst.Databases, 4)
}

func TestInstance_Error(t *testing.T) {
	src := &fakeSource{engine: adapter.MySQL, failOn: "databases"}
	inst, err := Instance(context.Background(), src, "8.0.32", adapter.Options{})
	assert.Nil(t, inst)
	assert.True(t, adapter.IsKind(err, adapter.KindQuery))
}
