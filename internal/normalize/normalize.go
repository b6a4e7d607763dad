// Package normalize maps per-engine default, identity and type catalog fields
// onto the canonical column representation.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sadopc/dbmeta/internal/store"
)

var (
	currentTimestampRe = regexp.MustCompile(`(?i)^current_timestamp(\(\d*\))?$`)
	onUpdateRe         = regexp.MustCompile(`(?i)on update current_timestamp(?:\((\d*)\))?`)
)

// IsCurrentTimestamp reports whether s is CURRENT_TIMESTAMP, optionally with
// a fractional-seconds precision.
func IsCurrentTimestamp(s string) bool {
	return currentTimestampRe.MatchString(s)
}

// UnescapeExpression undoes the escaping MySQL applies to generated default
// expressions in information_schema.
func UnescapeExpression(s string) string {
	s = strings.ReplaceAll(s, `\'`, `'`)
	return strings.ReplaceAll(s, `\\`, `\`)
}

// MySQL normalizes a MySQL-family column default. raw is COLUMN_DEFAULT (nil
// for SQL NULL) and extra is the EXTRA column. The second result is the
// ON UPDATE expression, or "".
func MySQL(raw *string, extra string, nullable bool) (store.DefaultValue, string) {
	return mysqlDefault(raw, extra, nullable), OnUpdate(extra)
}

func mysqlDefault(raw *string, extra string, nullable bool) store.DefaultValue {
	upper := strings.ToUpper(extra)
	if raw != nil {
		switch {
		case IsCurrentTimestamp(*raw):
			return store.Expression(*raw)
		case strings.Contains(upper, "DEFAULT_GENERATED"):
			return store.Expression("(" + UnescapeExpression(*raw) + ")")
		default:
			return store.Literal(*raw)
		}
	}
	if strings.Contains(upper, store.AutoIncrementMarker) {
		return store.AutoIncrement()
	}
	if nullable {
		return store.Null()
	}
	return store.DefaultValue{}
}

// OnUpdate extracts "CURRENT_TIMESTAMP" or "CURRENT_TIMESTAMP(n)" from an
// EXTRA value carrying an on update clause.
func OnUpdate(extra string) string {
	m := onUpdateRe.FindStringSubmatch(extra)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return fmt.Sprintf("CURRENT_TIMESTAMP(%s)", m[1])
	}
	return "CURRENT_TIMESTAMP"
}

// Identity maps information_schema.columns.identity_generation.
func Identity(s string) store.IdentityGeneration {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ALWAYS":
		return store.IdentityAlways
	case "BY DEFAULT":
		return store.IdentityByDefault
	default:
		return store.IdentityUnspecified
	}
}

// Postgres normalizes a Postgres column default. Present defaults, serial
// nextval() calls included, are expressions kept verbatim.
func Postgres(raw *string, nullable bool, identity store.IdentityGeneration) store.DefaultValue {
	switch {
	case raw != nil && *raw != "":
		return store.Expression(*raw)
	case identity != store.IdentityUnspecified:
		return store.AutoIncrement()
	case nullable:
		return store.Null()
	default:
		return store.DefaultValue{}
	}
}

// PostgresType renders information_schema type columns as a type string.
func PostgresType(dataType, udtSchema, udtName string, maxLength *int64) string {
	switch dataType {
	case "USER-DEFINED":
		return udtSchema + "." + udtName
	case "ARRAY":
		return udtName
	case "character", "character varying", "bit", "bit varying":
		if maxLength != nil {
			return fmt.Sprintf("%s(%d)", dataType, *maxLength)
		}
	}
	return dataType
}

var sqliteKeywords = map[string]bool{
	"CURRENT_TIMESTAMP": true,
	"CURRENT_DATE":      true,
	"CURRENT_TIME":      true,
}

// SQLite normalizes a pragma_table_info dflt_value. rowidAlias marks an
// INTEGER PRIMARY KEY column, which the engine fills automatically.
func SQLite(raw *string, nullable, rowidAlias bool) store.DefaultValue {
	if raw != nil {
		v := strings.TrimSpace(*raw)
		switch {
		case strings.EqualFold(v, "NULL"):
			return store.Null()
		case sqliteKeywords[strings.ToUpper(v)], strings.HasPrefix(v, "("):
			return store.Expression(v)
		default:
			return store.Literal(v)
		}
	}
	if rowidAlias {
		return store.AutoIncrement()
	}
	if nullable {
		return store.Null()
	}
	return store.DefaultValue{}
}
