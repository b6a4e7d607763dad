// Package assemble folds per-key-part catalog rows into composite index and
// foreign key entities.
//
// Both folds expect rows ordered by (schema, table, name, position), which is
// what every driver's ORDER BY asks for. The order is checked rather than
// trusted. Input whose groups are not contiguous is stably re-sorted with a
// warning, and a repeated (table, name, position) triple is rejected.
package assemble

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/logging"
	"github.com/sadopc/dbmeta/internal/store"
)

// IndexPart is one key part of an index as reported by the catalog.
type IndexPart struct {
	Key   store.TableKey
	Index string
	// Seq is the 1-based key part position.
	Seq int64
	// Column is the indexed column, nil for functional key parts.
	Column *string
	// Expression is the functional key part text, without parentheses.
	Expression *string
	// SubPart is the prefix length, -1 for the whole column.
	SubPart    int64
	Type       string
	Unique     bool
	Primary    bool
	Visible    bool
	Comment    string
	Definition string
}

// ForeignKeyPart is one referencing column of a foreign key.
type ForeignKeyPart struct {
	Key              store.TableKey
	Name             string
	Ordinal          int64
	Column           string
	ReferencedSchema string
	ReferencedTable  string
	ReferencedColumn string
	OnDelete         string
	OnUpdate         string
	MatchType        string
}

// KeyPartExpression picks the expression recorded for one key part: the
// column name when present, else the parenthesized expression, else "".
func KeyPartExpression(column, expression *string) string {
	switch {
	case column != nil && *column != "":
		return *column
	case expression != nil && *expression != "":
		return "(" + *expression + ")"
	default:
		return ""
	}
}

type partKey struct {
	key  store.TableKey
	name string
	pos  int64
}

func (a partKey) less(b partKey) bool {
	if a.key != b.key {
		return a.key.Less(b.key)
	}
	if a.name != b.name {
		return a.name < b.name
	}
	return a.pos < b.pos
}

type groupKey struct {
	key  store.TableKey
	name string
}

// grouped reports whether every (table, name) group is contiguous with
// strictly increasing positions. Global order between groups does not
// matter, since catalogs sort names by their own collation.
func grouped(keys []partKey) bool {
	done := make(map[groupKey]bool)
	for i, k := range keys {
		g := groupKey{k.key, k.name}
		if i > 0 {
			prev := keys[i-1]
			pg := groupKey{prev.key, prev.name}
			if pg == g {
				if k.pos <= prev.pos {
					return false
				}
				continue
			}
			done[pg] = true
		}
		if done[g] {
			return false
		}
	}
	return true
}

// ensureOrder returns the order in which to visit keys. Grouped input is
// visited as is; anything else is stably re-sorted with a warning. A repeated
// (table, name, position) triple is an error.
func ensureOrder(op string, keys []partKey, log logrus.FieldLogger) ([]int, error) {
	perm := make([]int, len(keys))
	for i := range perm {
		perm[i] = i
	}
	if grouped(keys) {
		return perm, nil
	}
	log.WithField("rows", len(keys)).Warnf("%s: catalog rows out of order, re-sorting", op)
	sort.SliceStable(perm, func(i, j int) bool { return keys[perm[i]].less(keys[perm[j]]) })
	for i := 1; i < len(perm); i++ {
		prev, cur := keys[perm[i-1]], keys[perm[i]]
		if prev == cur {
			return nil, adapter.UnrecognizedDataError(op, "key part %d of %s on %s reported twice", cur.pos, cur.name, cur.key)
		}
	}
	return perm, nil
}

// FoldIndexes groups index parts into indexes per table. Key parts keep
// their position order and indexes within a table are sorted by name.
func FoldIndexes(parts []IndexPart, log logrus.FieldLogger) (map[store.TableKey][]*store.IndexMetadata, error) {
	if log == nil {
		log = logging.Discard()
	}
	keys := make([]partKey, len(parts))
	for i, p := range parts {
		keys[i] = partKey{key: p.Key, name: p.Index, pos: p.Seq}
	}
	perm, err := ensureOrder("fold indexes", keys, log)
	if err != nil {
		return nil, err
	}

	indexMap := make(map[groupKey]*store.IndexMetadata)
	var order []groupKey

	for _, i := range perm {
		p := parts[i]
		k := groupKey{p.Key, p.Index}
		idx, ok := indexMap[k]
		if !ok {
			idx = &store.IndexMetadata{
				Name:       p.Index,
				Type:       p.Type,
				Unique:     p.Unique,
				Primary:    p.Primary,
				Visible:    p.Visible,
				Comment:    p.Comment,
				Definition: p.Definition,
			}
			indexMap[k] = idx
			order = append(order, k)
		}
		idx.Expressions = append(idx.Expressions, KeyPartExpression(p.Column, p.Expression))
		idx.KeyLength = append(idx.KeyLength, p.SubPart)
	}

	result := make(map[store.TableKey][]*store.IndexMetadata)
	for _, k := range order {
		result[k.key] = append(result[k.key], indexMap[k])
	}
	for _, list := range result {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	return result, nil
}

// FoldForeignKeys groups referencing columns into foreign keys per table.
// It keeps one constraint under construction and flushes it whenever the
// incoming (table, name) changes.
func FoldForeignKeys(parts []ForeignKeyPart, log logrus.FieldLogger) (map[store.TableKey][]*store.ForeignKeyMetadata, error) {
	if log == nil {
		log = logging.Discard()
	}
	keys := make([]partKey, len(parts))
	for i, p := range parts {
		keys[i] = partKey{key: p.Key, name: p.Name, pos: p.Ordinal}
	}
	perm, err := ensureOrder("fold foreign keys", keys, log)
	if err != nil {
		return nil, err
	}

	result := make(map[store.TableKey][]*store.ForeignKeyMetadata)
	var (
		current    *store.ForeignKeyMetadata
		currentKey store.TableKey
	)
	flush := func() {
		if current != nil {
			result[currentKey] = append(result[currentKey], current)
		}
	}

	for _, i := range perm {
		p := parts[i]
		if current != nil && p.Key == currentKey && p.Name == current.Name {
			current.Columns = append(current.Columns, p.Column)
			current.ReferencedColumns = append(current.ReferencedColumns, p.ReferencedColumn)
			continue
		}
		flush()
		currentKey = p.Key
		current = &store.ForeignKeyMetadata{
			Name:              p.Name,
			Columns:           []string{p.Column},
			ReferencedSchema:  p.ReferencedSchema,
			ReferencedTable:   p.ReferencedTable,
			ReferencedColumns: []string{p.ReferencedColumn},
			OnDelete:          p.OnDelete,
			OnUpdate:          p.OnUpdate,
			MatchType:         p.MatchType,
		}
	}
	flush()
	return result, nil
}
