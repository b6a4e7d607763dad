package dialect

import (
	"strings"

	"github.com/sadopc/dbmeta/internal/adapter"
)

// Capabilities lists the optional index catalog columns a server exposes.
type Capabilities struct {
	// HasIndexExpression is set when functional key parts report their
	// expression text.
	HasIndexExpression bool
	// HasIndexVisibility is set when indexes can be invisible. Without it
	// every index reads as visible.
	HasIndexVisibility bool
}

// Rule maps an engine, an optional set of flavors and a minimum version to
// capabilities.
type Rule struct {
	Engine adapter.Engine
	// Flavors restricts the rule; empty matches any flavor.
	Flavors []Flavor
	// Since is the lowest matching version; empty matches any version.
	Since string
	Caps  Capabilities
}

func (r Rule) matches(e adapter.Engine, v Version) bool {
	if r.Engine != e {
		return false
	}
	if len(r.Flavors) > 0 {
		ok := false
		for _, f := range r.Flavors {
			if f == v.Flavor() {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return r.Since == "" || v.AtLeast(MustParseVersion(r.Since))
}

// Rules is the capability table, first match wins. MySQL 8.0.0 shipped
// invisible indexes and 8.0.13 functional key parts; MariaDB and TiDB report
// neither column in information_schema.STATISTICS.
var Rules = []Rule{
	{Engine: adapter.MySQL, Flavors: []Flavor{MariaDB, TiDB}},
	{Engine: adapter.MySQL, Since: "8.0.13", Caps: Capabilities{HasIndexExpression: true, HasIndexVisibility: true}},
	{Engine: adapter.MySQL, Since: "8.0.0", Caps: Capabilities{HasIndexVisibility: true}},
	{Engine: adapter.MySQL},
	{Engine: adapter.TiDB},
	{Engine: adapter.Postgres, Caps: Capabilities{HasIndexExpression: true}},
	{Engine: adapter.SQLite},
	{Engine: adapter.DuckDB, Caps: Capabilities{HasIndexExpression: true}},
}

// Resolve returns the capabilities of engine e at version v.
func Resolve(e adapter.Engine, v Version) Capabilities {
	return ResolveWith(Rules, e, v)
}

// ResolveWith evaluates a custom rule table.
func ResolveWith(rules []Rule, e adapter.Engine, v Version) Capabilities {
	for _, r := range rules {
		if r.matches(e, v) {
			return r.Caps
		}
	}
	return Capabilities{}
}

var (
	mysqlSystem = []string{"information_schema", "mysql", "performance_schema", "sys"}

	systemDatabases = map[adapter.Engine][]string{
		adapter.MySQL:    mysqlSystem,
		adapter.TiDB:     append(append([]string(nil), mysqlSystem...), "metrics_schema"),
		adapter.Postgres: {"template0", "template1"},
		adapter.DuckDB:   {"system", "temp"},
	}

	systemSchemas = map[adapter.Engine][]string{
		adapter.Postgres: {"pg_catalog", "information_schema", "pg_toast"},
		adapter.DuckDB:   {"information_schema", "pg_catalog"},
	}

	systemSchemaPrefixes = map[adapter.Engine][]string{
		adapter.Postgres: {"pg_temp_", "pg_toast_temp_"},
	}
)

// SystemDatabases lists the databases excluded from instance syncs.
func SystemDatabases(e adapter.Engine) []string {
	return append([]string(nil), systemDatabases[e]...)
}

// SystemSchemas lists the schemas excluded from database syncs.
func SystemSchemas(e adapter.Engine) []string {
	return append([]string(nil), systemSchemas[e]...)
}

// SameDatabase reports whether a and b name the same database of e.
// MySQL-family names compare case-insensitively.
func SameDatabase(e adapter.Engine, a, b string) bool {
	if a == b {
		return true
	}
	return (e == adapter.MySQL || e == adapter.TiDB) && strings.EqualFold(a, b)
}

// IsSystemDatabase reports whether name is a system database of e.
func IsSystemDatabase(e adapter.Engine, name string) bool {
	for _, s := range systemDatabases[e] {
		if SameDatabase(e, s, name) {
			return true
		}
	}
	return false
}

// IsSystemSchema reports whether name is a system schema of e.
func IsSystemSchema(e adapter.Engine, name string) bool {
	for _, s := range systemSchemas[e] {
		if s == name {
			return true
		}
	}
	for _, p := range systemSchemaPrefixes[e] {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// SystemSchemaPatterns renders the system schema prefixes of e as LIKE
// patterns with literal underscores.
func SystemSchemaPatterns(e adapter.Engine) []string {
	prefixes := systemSchemaPrefixes[e]
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = strings.ReplaceAll(p, "_", `\_`) + "%"
	}
	return out
}
