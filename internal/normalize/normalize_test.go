package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sadopc/dbmeta/internal/store"
)

func ptr(s string) *string { return &s }

func TestMySQL(t *testing.T) {
	tests := []struct {
		name     string
		raw      *string
		extra    string
		nullable bool
		want     store.DefaultValue
		onUpdate string
	}{
		{"current timestamp", ptr("CURRENT_TIMESTAMP"), "", false, store.Expression("CURRENT_TIMESTAMP"), ""},
		{"current timestamp precision", ptr("CURRENT_TIMESTAMP(6)"), "DEFAULT_GENERATED", false, store.Expression("CURRENT_TIMESTAMP(6)"), ""},
		{"lowercase mariadb form", ptr("current_timestamp()"), "", true, store.Expression("current_timestamp()"), ""},
		{"auto increment", nil, "auto_increment", false, store.AutoIncrement(), ""},
		{"nullable without default", nil, "", true, store.Null(), ""},
		{"not null without default", nil, "", false, store.DefaultValue{}, ""},
		{"generated", ptr("0"), "DEFAULT_GENERATED", false, store.Expression("(0)"), ""},
		{"generated unescape", ptr(`concat(\'a\',\'\\\\\')`), "DEFAULT_GENERATED", true, store.Expression(`(concat('a','\\'))`), ""},
		{"literal", ptr("active"), "", false, store.Literal("active"), ""},
		{"empty literal", ptr(""), "", true, store.Literal(""), ""},
		{"literal beats auto increment", ptr("1"), "auto_increment", true, store.Literal("1"), ""},
		{"auto increment beats nullable", nil, "AUTO_INCREMENT", true, store.AutoIncrement(), ""},
		{
			"on update",
			ptr("CURRENT_TIMESTAMP"), "DEFAULT_GENERATED on update CURRENT_TIMESTAMP", false,
			store.Expression("CURRENT_TIMESTAMP"), "CURRENT_TIMESTAMP",
		},
		{
			"on update precision",
			ptr("CURRENT_TIMESTAMP(3)"), "DEFAULT_GENERATED on update CURRENT_TIMESTAMP(3)", false,
			store.Expression("CURRENT_TIMESTAMP(3)"), "CURRENT_TIMESTAMP(3)",
		},
		{"on update only", nil, "on update CURRENT_TIMESTAMP", true, store.Null(), "CURRENT_TIMESTAMP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, onUpdate := MySQL(tt.raw, tt.extra, tt.nullable)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.onUpdate, onUpdate)
		})
	}
}

func TestMySQL_CanonicalText(t *testing.T) {
	d, _ := MySQL(nil, "auto_increment", false)
	assert.Equal(t, "AUTO_INCREMENT", d.String())
	d, _ = MySQL(nil, "", true)
	assert.Equal(t, "NULL", d.String())
	d, _ = MySQL(ptr("0"), "DEFAULT_GENERATED", false)
	assert.Equal(t, "(0)", d.String())
}

func TestIsCurrentTimestamp(t *testing.T) {
	assert.True(t, IsCurrentTimestamp("CURRENT_TIMESTAMP"))
	assert.True(t, IsCurrentTimestamp("current_timestamp"))
	assert.True(t, IsCurrentTimestamp("CURRENT_TIMESTAMP(6)"))
	assert.False(t, IsCurrentTimestamp("CURRENT_TIMESTAMP + 1"))
	assert.False(t, IsCurrentTimestamp("now()"))
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, store.IdentityAlways, Identity("ALWAYS"))
	assert.Equal(t, store.IdentityByDefault, Identity("BY DEFAULT"))
	assert.Equal(t, store.IdentityUnspecified, Identity(""))
	assert.Equal(t, store.IdentityUnspecified, Identity("NEVER"))
}

func TestPostgres(t *testing.T) {
	assert.Equal(t, store.Expression("nextval('users_id_seq'::regclass)"),
		Postgres(ptr("nextval('users_id_seq'::regclass)"), false, store.IdentityUnspecified))
	assert.Equal(t, store.Expression("'x'::text"), Postgres(ptr("'x'::text"), true, store.IdentityUnspecified))
	assert.Equal(t, store.AutoIncrement(), Postgres(nil, false, store.IdentityAlways))
	assert.Equal(t, store.Null(), Postgres(nil, true, store.IdentityUnspecified))
	assert.Equal(t, store.DefaultValue{}, Postgres(nil, false, store.IdentityUnspecified))
}

func TestPostgresType(t *testing.T) {
	n := int64(64)
	assert.Equal(t, "public.mood", PostgresType("USER-DEFINED", "public", "mood", nil))
	assert.Equal(t, "_int4", PostgresType("ARRAY", "pg_catalog", "_int4", nil))
	assert.Equal(t, "character varying(64)", PostgresType("character varying", "pg_catalog", "varchar", &n))
	assert.Equal(t, "character varying", PostgresType("character varying", "pg_catalog", "varchar", nil))
	assert.Equal(t, "integer", PostgresType("integer", "pg_catalog", "int4", &n))
}

func TestSQLite(t *testing.T) {
	assert.Equal(t, store.Expression("CURRENT_TIMESTAMP"), SQLite(ptr("CURRENT_TIMESTAMP"), false, false))
	assert.Equal(t, store.Expression("(datetime('now'))"), SQLite(ptr("(datetime('now'))"), false, false))
	assert.Equal(t, store.Literal("'draft'"), SQLite(ptr("'draft'"), false, false))
	assert.Equal(t, store.Null(), SQLite(ptr("NULL"), true, false))
	assert.Equal(t, store.AutoIncrement(), SQLite(nil, false, true))
	assert.Equal(t, store.Null(), SQLite(nil, true, false))
	assert.Equal(t, store.DefaultValue{}, SQLite(nil, false, false))
}
