package adapter

import (
	"fmt"
	"strings"
)

// Engine selects the catalog driver.
type Engine string

const (
	MySQL    Engine = "mysql"
	TiDB     Engine = "tidb"
	Postgres Engine = "postgres"
	SQLite   Engine = "sqlite"
	DuckDB   Engine = "duckdb"
)

// Engines lists every supported engine.
var Engines = []Engine{MySQL, TiDB, Postgres, SQLite, DuckDB}

// ParseEngine maps an engine tag to an Engine, case-insensitively.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql":
		return MySQL, nil
	case "tidb":
		return TiDB, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	}
	return "", ArgumentError("parse engine", "unknown engine %q (available: %s)", s, engineList())
}

// Valid reports whether e is one of the supported engines.
func (e Engine) Valid() bool {
	for _, k := range Engines {
		if k == e {
			return true
		}
	}
	return false
}

// DefaultPort is the engine's conventional TCP port, or 0 for file engines.
func (e Engine) DefaultPort() int {
	switch e {
	case MySQL:
		return 3306
	case TiDB:
		return 4000
	case Postgres:
		return 5432
	default:
		return 0
	}
}

// FileBased reports whether the engine opens a local file instead of a server.
func (e Engine) FileBased() bool { return e == SQLite || e == DuckDB }

// SingleSchema reports whether databases of this engine have exactly one
// implicit schema, so tables are keyed by bare name.
func (e Engine) SingleSchema() bool { return e == MySQL || e == TiDB || e == SQLite }

func engineList() string {
	names := make([]string, len(Engines))
	for i, e := range Engines {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

// ConnectionConfig holds the parameters needed to open a driver.
type ConnectionConfig struct {
	Engine   Engine
	Host     string
	Port     int
	Username string
	Password string
	// Database is the target database, or the file path for file engines.
	Database string
}

// Validate normalizes defaults and rejects malformed parameters.
func (c *ConnectionConfig) Validate() error {
	if !c.Engine.Valid() {
		return ArgumentError("connection config", "unknown engine %q", c.Engine)
	}
	if c.Engine.FileBased() {
		if c.Database == "" {
			return ArgumentError("connection config", "%s requires a database file", c.Engine)
		}
		return nil
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = c.Engine.DefaultPort()
	}
	if c.Port < 0 || c.Port > 65535 {
		return ArgumentError("connection config", "port %d out of range", c.Port)
	}
	if c.Database == "" {
		return ArgumentError("connection config", "%s requires a database name", c.Engine)
	}
	return nil
}

// String renders the config without the password.
func (c ConnectionConfig) String() string {
	if c.Engine.FileBased() {
		return fmt.Sprintf("%s://%s", c.Engine, c.Database)
	}
	user := ""
	if c.Username != "" {
		user = c.Username + "@"
	}
	return fmt.Sprintf("%s://%s%s:%d/%s", c.Engine, user, c.Host, c.Port, c.Database)
}
