// Package export serializes metadata trees for output and storage.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/dbmeta/internal/store"
)

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	// CSV writes a one-line-per-table summary and only applies to database
	// trees.
	CSV Format = "csv"
)

// ParseFormat accepts json, yaml (or yml) and csv, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json, yaml or csv)", s)
}

// Write encodes v to w in format.
func Write(w io.Writer, format Format, v any) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case CSV:
		db, ok := v.(*store.DatabaseSchemaMetadata)
		if !ok {
			return fmt.Errorf("csv output needs a database tree, got %T", v)
		}
		return TablesCSV(w, db)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteFile writes v to the file at path in format.
func WriteFile(path string, format Format, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Write(f, format, v); err != nil {
		return err
	}
	return f.Close()
}

// TablesCSV writes one row per table with its object counts and statistics.
func TablesCSV(w io.Writer, db *store.DatabaseSchemaMetadata) error {
	cw := csv.NewWriter(w)

	header := []string{"schema", "table", "columns", "indexes", "foreign_keys", "row_count", "data_size", "comment"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			row := []string{
				s.Name,
				t.Name,
				strconv.Itoa(len(t.Columns)),
				strconv.Itoa(len(t.Indexes)),
				strconv.Itoa(len(t.ForeignKeys)),
				strconv.FormatInt(t.RowCount, 10),
				strconv.FormatInt(t.DataSize, 10),
				t.Comment,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// MarshalDatabase encodes a database tree as compact JSON for storage.
func MarshalDatabase(db *store.DatabaseSchemaMetadata) ([]byte, error) {
	return json.Marshal(db)
}

// UnmarshalDatabase decodes a tree written by MarshalDatabase or by Write
// with JSON.
func UnmarshalDatabase(data []byte) (*store.DatabaseSchemaMetadata, error) {
	var db store.DatabaseSchemaMetadata
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &db, nil
}
