// Package detail renders the metadata behind the selected tree node in a
// scrollable viewport.
package detail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/dbmeta/internal/store"
	"github.com/sadopc/dbmeta/internal/theme"
	"github.com/sadopc/dbmeta/internal/ui/highlight"
	"github.com/sadopc/dbmeta/internal/ui/sidebar"
)

// Model is the detail pane.
type Model struct {
	vp      viewport.Model
	hl      *highlight.Highlighter
	node    *sidebar.TreeNode
	width   int
	height  int
	focused bool
}

// New creates a detail pane that highlights definitions with hl.
func New(hl *highlight.Highlighter) Model {
	return Model{vp: viewport.New(0, 0), hl: hl}
}

// SetNode shows node. Re-selecting the same node keeps the scroll position.
func (m *Model) SetNode(node *sidebar.TreeNode) {
	if node == m.node {
		return
	}
	m.node = node
	m.refresh()
	m.vp.GotoTop()
}

// Node returns the node on display.
func (m Model) Node() *sidebar.TreeNode { return m.node }

func (m *Model) refresh() {
	m.vp.SetContent(Render(m.node, theme.Current, m.hl))
}

// SetSize sets the pane dimensions including its border.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.vp.Width = max(width-2, 1)
	m.vp.Height = max(height-2, 1)
	m.refresh()
}

// Focus focuses the pane so it receives scroll keys.
func (m *Model) Focus() { m.focused = true }

// Blur unfocuses the pane.
func (m *Model) Blur() { m.focused = false }

// Focused returns whether the pane is focused.
func (m Model) Focused() bool { return m.focused }

// Update scrolls the viewport while focused.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok && !m.focused {
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// View renders the pane with its border.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	th := theme.Current
	style := th.UnfocusedBorder
	if m.focused {
		style = th.FocusedBorder
	}
	return style.Width(m.vp.Width).Height(m.vp.Height).Render(m.vp.View())
}

// Render describes node as styled text. hl may be nil, in which case
// definitions are shown verbatim.
func Render(node *sidebar.TreeNode, th *theme.Theme, hl *highlight.Highlighter) string {
	if node == nil {
		return th.MutedText.Render("Select an object in the tree.")
	}
	r := renderer{th: th, hl: hl}

	switch obj := node.Object.(type) {
	case *store.DatabaseSchemaMetadata:
		r.database(obj)
	case *store.SchemaMetadata:
		r.schema(obj)
	case *store.TableMetadata:
		r.table(node.Schema, obj)
	case *store.ColumnMetadata:
		r.column(node.Table, obj)
	case *store.IndexMetadata:
		r.index(node.Table, obj)
	case *store.ForeignKeyMetadata:
		r.foreignKey(node.Table, obj)
	case *store.ViewMetadata:
		r.view("View", node.Schema, obj.Name, obj.Comment, obj.Definition, obj.DependentColumns)
	case *store.MaterializedViewMetadata:
		r.view("Materialized view", node.Schema, obj.Name, obj.Comment, obj.Definition, obj.DependentColumns)
	case *store.FunctionMetadata:
		r.routine("Function", node.Schema, obj.Name, obj.Definition)
	case *store.ProcedureMetadata:
		r.routine("Procedure", node.Schema, obj.Name, obj.Definition)
	default:
		r.group(node)
	}
	return strings.TrimRight(r.b.String(), "\n")
}

type renderer struct {
	th *theme.Theme
	hl *highlight.Highlighter
	b  strings.Builder
}

func (r *renderer) title(kind, name string) {
	r.b.WriteString(r.th.DetailTitle.Render(strings.TrimSpace(kind + " " + name)))
	r.b.WriteString("\n\n")
}

// field writes one "key: value" line, skipping empty values.
func (r *renderer) field(key, value string) {
	if value == "" {
		return
	}
	r.b.WriteString(r.th.DetailKey.Render(key+":") + " " + r.th.DetailValue.Render(value) + "\n")
}

func (r *renderer) section(name string) {
	r.b.WriteString("\n" + r.th.DetailKey.Render(name) + "\n")
}

func (r *renderer) definition(sql string) {
	if strings.TrimSpace(sql) == "" {
		return
	}
	r.section("Definition")
	if r.hl != nil {
		sql = r.hl.Highlight(sql, r.th)
	}
	r.b.WriteString(sql + "\n")
}

func (r *renderer) grid(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.th.MutedText).
		Headers(headers...).
		Rows(rows...)
	r.b.WriteString(t.Render() + "\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func size(n int64) string {
	if n <= 0 {
		return ""
	}
	return humanize.IBytes(uint64(n))
}

func qualified(schema, name string) string {
	return store.TableKey{Schema: schema, Table: name}.String()
}

func (r *renderer) database(db *store.DatabaseSchemaMetadata) {
	r.title("Database", db.Name)
	r.field("Character set", db.CharacterSet)
	r.field("Collation", db.Collation)
	r.field("Owner", db.Owner)
	r.field("Service", db.ServiceName)
	r.field("Schemas", strconv.Itoa(len(db.Schemas)))
	r.field("Tables", strconv.Itoa(len(db.Tables())))
	if len(db.Extensions) > 0 {
		r.section("Extensions")
		rows := make([][]string, len(db.Extensions))
		for i, e := range db.Extensions {
			rows[i] = []string{e.Name, e.Schema, e.Version, e.Description}
		}
		r.grid([]string{"name", "schema", "version", "description"}, rows)
	}
}

func (r *renderer) schema(s *store.SchemaMetadata) {
	r.title("Schema", s.Name)
	r.field("Owner", s.Owner)
	r.field("Comment", s.Comment)
	r.field("Tables", strconv.Itoa(len(s.Tables)))
	r.field("Views", strconv.Itoa(len(s.Views)))
	r.field("Materialized views", strconv.Itoa(len(s.MaterializedViews)))
	r.field("Functions", strconv.Itoa(len(s.Functions)))
	r.field("Procedures", strconv.Itoa(len(s.Procedures)))
}

func (r *renderer) table(schema string, t *store.TableMetadata) {
	r.title("Table", qualified(schema, t.Name))
	r.field("Engine", t.Engine)
	r.field("Collation", t.Collation)
	r.field("Owner", t.Owner)
	if t.RowCount > 0 {
		r.field("Rows (estimate)", humanize.Comma(t.RowCount))
	}
	r.field("Data size", size(t.DataSize))
	r.field("Index size", size(t.IndexSize))
	r.field("Data free", size(t.DataFree))
	r.field("Options", t.CreateOptions)
	r.field("Comment", t.Comment)

	if len(t.Columns) > 0 {
		r.section("Columns")
		rows := make([][]string, len(t.Columns))
		for i, c := range t.Columns {
			rows[i] = []string{strconv.Itoa(c.Position), c.Name, c.Type, yesNo(c.Nullable), c.Default.String(), c.Comment}
		}
		r.grid([]string{"#", "name", "type", "null", "default", "comment"}, rows)
	}
	if len(t.Indexes) > 0 {
		r.section("Indexes")
		rows := make([][]string, len(t.Indexes))
		for i, idx := range t.Indexes {
			rows[i] = []string{idx.Name, strings.Join(idx.Expressions, ", "), idx.Type, yesNo(idx.Unique), yesNo(idx.Primary)}
		}
		r.grid([]string{"name", "keys", "type", "unique", "primary"}, rows)
	}
	if len(t.ForeignKeys) > 0 {
		r.section("Foreign keys")
		rows := make([][]string, len(t.ForeignKeys))
		for i, fk := range t.ForeignKeys {
			rows[i] = []string{fk.Name, strings.Join(fk.Columns, ", "), reference(fk), fk.OnDelete, fk.OnUpdate}
		}
		r.grid([]string{"name", "columns", "references", "on delete", "on update"}, rows)
	}
}

func reference(fk *store.ForeignKeyMetadata) string {
	return fmt.Sprintf("%s(%s)", qualified(fk.ReferencedSchema, fk.ReferencedTable), strings.Join(fk.ReferencedColumns, ", "))
}

func (r *renderer) column(table string, c *store.ColumnMetadata) {
	r.title("Column", table+"."+c.Name)
	r.field("Position", strconv.Itoa(c.Position))
	r.field("Type", c.Type)
	r.field("Nullable", yesNo(c.Nullable))
	if !c.Default.IsZero() {
		r.field("Default", fmt.Sprintf("%s (%s)", c.Default.String(), c.Default.Kind))
	}
	r.field("On update", c.OnUpdate)
	if c.IdentityGeneration != store.IdentityUnspecified {
		r.field("Identity", c.IdentityGeneration.String())
	}
	r.field("Character set", c.CharacterSet)
	r.field("Collation", c.Collation)
	r.field("Comment", c.Comment)
}

func (r *renderer) index(table string, idx *store.IndexMetadata) {
	r.title("Index", idx.Name)
	r.field("Table", table)
	r.field("Type", idx.Type)
	r.field("Unique", yesNo(idx.Unique))
	r.field("Primary", yesNo(idx.Primary))
	r.field("Visible", yesNo(idx.Visible))
	r.field("Comment", idx.Comment)

	r.section("Key parts")
	rows := make([][]string, len(idx.Expressions))
	for i, e := range idx.Expressions {
		length := ""
		if i < len(idx.KeyLength) && idx.KeyLength[i] > 0 {
			length = strconv.FormatInt(idx.KeyLength[i], 10)
		}
		rows[i] = []string{strconv.Itoa(i + 1), e, length}
	}
	r.grid([]string{"#", "expression", "length"}, rows)
	r.definition(idx.Definition)
}

func (r *renderer) foreignKey(table string, fk *store.ForeignKeyMetadata) {
	r.title("Foreign key", fk.Name)
	r.field("Table", table)
	r.field("Columns", strings.Join(fk.Columns, ", "))
	r.field("References", reference(fk))
	r.field("On delete", fk.OnDelete)
	r.field("On update", fk.OnUpdate)
	r.field("Match", fk.MatchType)
}

func (r *renderer) view(kind, schema, name, comment, def string, deps []*store.DependentColumn) {
	r.title(kind, qualified(schema, name))
	r.field("Comment", comment)
	if len(deps) > 0 {
		r.section("Depends on")
		rows := make([][]string, len(deps))
		for i, d := range deps {
			rows[i] = []string{d.Schema, d.Table, d.Column}
		}
		r.grid([]string{"schema", "table", "column"}, rows)
	}
	r.definition(def)
}

func (r *renderer) routine(kind, schema, name, def string) {
	r.title(kind, qualified(schema, name))
	r.definition(def)
}

func (r *renderer) group(node *sidebar.TreeNode) {
	r.title("", node.Label)
	for _, c := range node.Children {
		r.b.WriteString("  " + r.th.DetailValue.Render(c.Label) + "\n")
	}
}
