package executor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sadopc/dbmeta/internal/adapter"
)

// Row is one materialized result row addressable by column name.
type Row struct {
	cols []string
	vals []any
}

// NewRow builds a row from parallel column and value slices. Values are
// normalized: byte slices become strings and integer kinds widen to int64.
func NewRow(cols []string, vals []any) Row {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = normalize(v)
	}
	return Row{cols: cols, vals: out}
}

// Columns returns the column names in result order.
func (r Row) Columns() []string { return r.cols }

// Lookup finds a column by exact name, then case-insensitively.
func (r Row) Lookup(name string) (any, bool) {
	for i, c := range r.cols {
		if c == name {
			return r.vals[i], true
		}
	}
	for i, c := range r.cols {
		if strings.EqualFold(c, name) {
			return r.vals[i], true
		}
	}
	return nil, false
}

// Has reports whether the row carries the column.
func (r Row) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Value returns the raw value of the column. A missing column is an
// UnrecognizedDataError.
func (r Row) Value(name string) (any, error) {
	v, ok := r.Lookup(name)
	if !ok {
		return nil, adapter.UnrecognizedDataError("read row", "column %q not found in result (have %s)", name, strings.Join(r.cols, ", "))
	}
	return v, nil
}

// NullString returns the column as text, or nil for SQL NULL.
func (r Row) NullString(name string) (*string, error) {
	v, err := r.Value(name)
	if err != nil || v == nil {
		return nil, err
	}
	s, err := toString(name, v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// String returns the column as text; SQL NULL reads as "".
func (r Row) String(name string) (string, error) {
	s, err := r.NullString(name)
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

// NullInt64 returns the column as an integer, or nil for SQL NULL.
func (r Row) NullInt64(name string) (*int64, error) {
	v, err := r.Value(name)
	if err != nil || v == nil {
		return nil, err
	}
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case float64:
		n = int64(x)
	case bool:
		if x {
			n = 1
		}
	case string:
		n, err = strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if ferr != nil {
				return nil, adapter.UnrecognizedDataError("read row", "column %q: %q is not a number", name, x)
			}
			n = int64(f)
		}
	default:
		return nil, adapter.UnrecognizedDataError("read row", "column %q: cannot read %T as integer", name, v)
	}
	return &n, nil
}

// Int64 returns the column as an integer; SQL NULL reads as 0.
func (r Row) Int64(name string) (int64, error) {
	n, err := r.NullInt64(name)
	if err != nil || n == nil {
		return 0, err
	}
	return *n, nil
}

// Bool returns the column as a boolean. Besides native booleans it accepts
// numeric truthiness and the catalog spellings YES/NO, Y/N, TRUE/FALSE.
// SQL NULL reads as false.
func (r Row) Bool(name string) (bool, error) {
	v, err := r.Value(name)
	if err != nil || v == nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		return ParseYesNo(name, x)
	}
	return false, adapter.UnrecognizedDataError("read row", "column %q: cannot read %T as boolean", name, v)
}

// ParseYesNo converts a catalog yes/no flag.
func ParseYesNo(name, s string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y", "1", "TRUE", "T", "ON":
		return true, nil
	case "NO", "N", "0", "FALSE", "F", "OFF", "":
		return false, nil
	}
	return false, adapter.UnrecognizedDataError("read row", "column %q: unrecognized yes/no value %q", name, s)
}

func toString(name string, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", adapter.UnrecognizedDataError("read row", "column %q: cannot read %T as text", name, v)
}

func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case uint:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

// Reader reads several columns from a row and keeps the first error, so
// mapping code can read fields in sequence and check once.
type Reader struct {
	row Row
	err error
}

// NewReader wraps row.
func NewReader(row Row) *Reader { return &Reader{row: row} }

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

func (r *Reader) String(name string) string {
	if r.err != nil {
		return ""
	}
	s, err := r.row.String(name)
	r.err = err
	return s
}

func (r *Reader) NullString(name string) *string {
	if r.err != nil {
		return nil
	}
	s, err := r.row.NullString(name)
	r.err = err
	return s
}

func (r *Reader) Int64(name string) int64 {
	if r.err != nil {
		return 0
	}
	n, err := r.row.Int64(name)
	r.err = err
	return n
}

func (r *Reader) NullInt64(name string) *int64 {
	if r.err != nil {
		return nil
	}
	n, err := r.row.NullInt64(name)
	r.err = err
	return n
}

func (r *Reader) Bool(name string) bool {
	if r.err != nil {
		return false
	}
	b, err := r.row.Bool(name)
	r.err = err
	return b
}
