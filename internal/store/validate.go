package store

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants of a database tree: index
// expressions and key lengths are parallel, every foreign key has at least one
// column and as many referenced columns, and table names are unique per
// schema.
func (d *DatabaseSchemaMetadata) Validate() error {
	var errs []error
	for _, s := range d.Schemas {
		seen := make(map[string]struct{}, len(s.Tables))
		for _, t := range s.Tables {
			key := TableKey{Schema: s.Name, Table: t.Name}
			if _, dup := seen[t.Name]; dup {
				errs = append(errs, fmt.Errorf("table %s reported twice", key))
			}
			seen[t.Name] = struct{}{}
			if err := t.validate(key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t *TableMetadata) validate(key TableKey) error {
	var errs []error
	for _, idx := range t.Indexes {
		if len(idx.Expressions) != len(idx.KeyLength) {
			errs = append(errs, fmt.Errorf("index %s on %s: %d expressions but %d key lengths",
				idx.Name, key, len(idx.Expressions), len(idx.KeyLength)))
		}
	}
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.ReferencedColumns) {
			errs = append(errs, fmt.Errorf("foreign key %s on %s: %d columns but %d referenced columns",
				fk.Name, key, len(fk.Columns), len(fk.ReferencedColumns)))
		}
	}
	return errors.Join(errs...)
}

// Tables returns every table of every schema keyed by TableKey.
func (d *DatabaseSchemaMetadata) Tables() map[TableKey]*TableMetadata {
	out := make(map[TableKey]*TableMetadata)
	for _, s := range d.Schemas {
		for _, t := range s.Tables {
			out[TableKey{Schema: s.Name, Table: t.Name}] = t
		}
	}
	return out
}

// StripVolatile zeroes statistics that change between syncs of an unchanged
// database, so two snapshots can be compared structurally.
func (d *DatabaseSchemaMetadata) StripVolatile() {
	for _, s := range d.Schemas {
		for _, t := range s.Tables {
			t.RowCount = 0
			t.DataSize = 0
			t.IndexSize = 0
			t.DataFree = 0
		}
	}
}

// StripVolatile zeroes LastSync and the statistics of every database.
func (i *InstanceMetadata) StripVolatile() {
	i.LastSync = 0
	for _, d := range i.Databases {
		d.StripVolatile()
	}
}
