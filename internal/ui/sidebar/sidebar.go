package sidebar

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/sadopc/dbmeta/internal/store"
	"github.com/sadopc/dbmeta/internal/theme"
)

// useSimpleIcons returns true when running inside Neovim's terminal emulator,
// which has emoji width rendering issues in libvterm.
var useSimpleIcons = os.Getenv("NVIM") != ""

// NodeKind represents the type of tree node.
type NodeKind int

const (
	NodeDatabase NodeKind = iota
	NodeSchema
	NodeGroup
	NodeTable
	NodeView
	NodeMaterializedView
	NodeFunction
	NodeProcedure
	NodeColumn
	NodeIndex
	NodeForeignKey
)

// TreeNode is one line of the metadata tree.
type TreeNode struct {
	Label    string
	Kind     NodeKind
	Children []*TreeNode
	Expanded bool
	Depth    int
	Parent   *TreeNode

	Schema  string
	Table   string
	ColType string
	IsPK    bool

	// Object is the metadata value behind the node, nil for groups.
	Object any
}

// Model is the metadata tree pane.
type Model struct {
	db      *store.DatabaseSchemaMetadata
	nodes   []*TreeNode
	flat    []*TreeNode // flattened visible nodes
	cursor  int
	offset  int
	width   int
	height  int
	focused bool

	filter  string
	matches int
}

// New creates an empty tree.
func New() Model {
	return Model{}
}

// SetDatabase replaces the tree with db and clears any filter.
func (m *Model) SetDatabase(db *store.DatabaseSchemaMetadata) {
	m.db = db
	m.filter = ""
	m.matches = 0
	m.nodes = buildTree(db, nil)
	m.cursor = 0
	m.offset = 0
	m.flatten()
}

// SetFilter keeps only tables and views whose qualified name fuzzy-matches
// query. An empty query restores the full tree.
func (m *Model) SetFilter(query string) {
	query = strings.TrimSpace(query)
	m.filter = query
	m.cursor = 0
	m.offset = 0
	if query == "" || m.db == nil {
		m.matches = 0
		m.nodes = buildTree(m.db, nil)
		m.flatten()
		return
	}

	candidates := relationNames(m.db)
	keep := make(map[string]bool)
	for _, match := range fuzzy.Find(query, candidates) {
		keep[candidates[match.Index]] = true
	}
	m.matches = len(keep)
	m.nodes = buildTree(m.db, keep)
	m.flatten()
}

// Filter returns the active filter query.
func (m Model) Filter() string { return m.filter }

// Matches returns how many relations the active filter kept.
func (m Model) Matches() int { return m.matches }

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles navigation keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureVisible()
		}
	case "down", "j":
		if m.cursor < len(m.flat)-1 {
			m.cursor++
			m.ensureVisible()
		}
	case "pgup":
		m.cursor -= m.contentHeight()
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureVisible()
	case "pgdown":
		m.cursor += m.contentHeight()
		if m.cursor > len(m.flat)-1 {
			m.cursor = max(len(m.flat)-1, 0)
		}
		m.ensureVisible()
	case "enter", "right", "l", " ":
		m.toggle()
	case "left", "h":
		m.collapse()
	case "home", "g":
		m.cursor = 0
		m.offset = 0
	case "end", "G":
		m.cursor = max(len(m.flat)-1, 0)
		m.ensureVisible()
	}
	return m, nil
}

// Selected returns the node under the cursor, or nil for an empty tree.
func (m Model) Selected() *TreeNode {
	if m.cursor < 0 || m.cursor >= len(m.flat) {
		return nil
	}
	return m.flat[m.cursor]
}

// View renders the tree.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	th := theme.Current

	// Account for border (left + right = 2, top + bottom = 2).
	innerW := max(m.width-2, 1)
	innerH := max(m.height-2, 1)

	title := " Metadata "
	if m.filter != "" {
		title = fmt.Sprintf(" Metadata /%s (%d) ", m.filter, m.matches)
	}
	titleStyle := th.TreeTitle
	if m.focused {
		titleStyle = titleStyle.Reverse(true)
	}
	titleLine := titleStyle.Width(innerW).MaxWidth(innerW).Render(title)

	if len(m.flat) == 0 {
		hint := "  No metadata loaded."
		if m.filter != "" {
			hint = "  No table matches the filter."
		}
		content := titleLine + "\n\n" + th.MutedText.Render(hint)
		return m.borderStyle().Width(innerW).Height(innerH).Render(content)
	}

	contentHeight := max(innerH-1, 1)
	end := min(m.offset+contentHeight, len(m.flat))

	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderNode(m.flat[i], i == m.cursor, innerW, th))
	}

	content := titleLine + "\n" + strings.Join(lines, "\n")
	return m.borderStyle().Width(innerW).Height(innerH).Render(content)
}

func icon(kind NodeKind) string {
	if useSimpleIcons {
		switch kind {
		case NodeDatabase:
			return "■ "
		case NodeSchema:
			return "▪ "
		case NodeGroup:
			return "≡ "
		case NodeTable:
			return "◆ "
		case NodeView, NodeMaterializedView:
			return "◇ "
		case NodeFunction, NodeProcedure:
			return "ƒ "
		case NodeIndex:
			return "# "
		case NodeForeignKey:
			return "→ "
		}
		return "  "
	}
	switch kind {
	case NodeDatabase:
		return "🗄 "
	case NodeSchema:
		return "📁 "
	case NodeGroup:
		return "📋 "
	case NodeTable:
		return "📊 "
	case NodeView:
		return "👁 "
	case NodeMaterializedView:
		return "📄 "
	case NodeFunction, NodeProcedure:
		return "ƒ "
	case NodeIndex:
		return "# "
	case NodeForeignKey:
		return "→ "
	}
	return "  "
}

func (m Model) renderNode(node *TreeNode, selected bool, width int, th *theme.Theme) string {
	indent := strings.Repeat("  ", node.Depth)

	expandIcon := "  "
	if len(node.Children) > 0 {
		if node.Expanded {
			expandIcon = "▼ "
		} else {
			expandIcon = "▶ "
		}
	}

	label := node.Label
	if node.Kind == NodeColumn && node.ColType != "" {
		label = node.Label + " " + node.ColType
	}
	line := indent + expandIcon + icon(node.Kind) + label

	if selected {
		return th.TreeSelected.Width(width).MaxWidth(width).Render(line)
	}
	return styleFor(node, th).Width(width).MaxWidth(width).Render(line)
}

func styleFor(node *TreeNode, th *theme.Theme) lipgloss.Style {
	switch node.Kind {
	case NodeDatabase:
		return th.TreeDatabase
	case NodeSchema:
		return th.TreeSchema
	case NodeGroup:
		return th.TreeGroup
	case NodeTable:
		return th.TreeTable
	case NodeView, NodeMaterializedView:
		return th.TreeView
	case NodeFunction, NodeProcedure:
		return th.TreeRoutine
	case NodeIndex:
		return th.TreeIndex
	case NodeForeignKey:
		return th.TreeForeignKey
	case NodeColumn:
		if node.IsPK {
			return th.TreeColumn.Bold(true)
		}
	}
	return th.TreeColumn
}

func (m Model) borderStyle() lipgloss.Style {
	th := theme.Current
	if m.focused {
		return th.FocusedBorder
	}
	return th.UnfocusedBorder
}

func (m *Model) toggle() {
	node := m.Selected()
	if node == nil || len(node.Children) == 0 {
		return
	}
	node.Expanded = !node.Expanded
	m.flatten()
}

// collapse folds the node under the cursor, or moves to its parent when the
// node is already folded.
func (m *Model) collapse() {
	node := m.Selected()
	if node == nil {
		return
	}
	if node.Expanded && len(node.Children) > 0 {
		node.Expanded = false
		m.flatten()
		return
	}
	if node.Parent == nil {
		return
	}
	for i, n := range m.flat {
		if n == node.Parent {
			m.cursor = i
			m.ensureVisible()
			return
		}
	}
}

func (m *Model) flatten() {
	m.flat = nil
	for _, node := range m.nodes {
		m.flattenNode(node)
	}
	if m.cursor >= len(m.flat) {
		m.cursor = len(m.flat) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) flattenNode(node *TreeNode) {
	m.flat = append(m.flat, node)
	if node.Expanded {
		for _, child := range node.Children {
			m.flattenNode(child)
		}
	}
}

func (m Model) contentHeight() int {
	return max(m.height-3, 1)
}

func (m *Model) ensureVisible() {
	h := m.contentHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

// SetSize sets the pane dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Focus focuses the tree.
func (m *Model) Focus() { m.focused = true }

// Blur unfocuses the tree.
func (m *Model) Blur() { m.focused = false }

// Focused returns whether the tree is focused.
func (m Model) Focused() bool { return m.focused }

// relationNames lists the qualified names of every table, view and
// materialized view, which are the candidates of the fuzzy filter.
func relationNames(db *store.DatabaseSchemaMetadata) []string {
	var names []string
	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			names = append(names, qualified(s.Name, t.Name))
		}
		for _, v := range s.Views {
			names = append(names, qualified(s.Name, v.Name))
		}
		for _, v := range s.MaterializedViews {
			names = append(names, qualified(s.Name, v.Name))
		}
	}
	return names
}

func qualified(schema, name string) string {
	return store.TableKey{Schema: schema, Table: name}.String()
}

// primaryColumns returns the columns covered by the table's primary index.
func primaryColumns(t *store.TableMetadata) map[string]bool {
	pk := make(map[string]bool)
	for _, idx := range t.Indexes {
		if !idx.Primary {
			continue
		}
		for _, e := range idx.Expressions {
			pk[e] = true
		}
	}
	return pk
}

func group(label string, n int, kids []*TreeNode, expanded bool) *TreeNode {
	return &TreeNode{
		Label:    fmt.Sprintf("%s (%d)", label, n),
		Kind:     NodeGroup,
		Children: kids,
		Expanded: expanded,
	}
}

// buildTree converts db into tree nodes. A non-nil keep restricts relations
// to the qualified names it contains and drops routines.
func buildTree(db *store.DatabaseSchemaMetadata, keep map[string]bool) []*TreeNode {
	if db == nil {
		return nil
	}
	filtering := keep != nil
	root := &TreeNode{
		Label:    db.Name,
		Kind:     NodeDatabase,
		Expanded: true,
		Object:   db,
	}

	single := len(db.Schemas) == 1 && db.Schemas[0].Name == ""
	for _, s := range db.Schemas {
		groups := schemaGroups(s, keep)
		if filtering && len(groups) == 0 {
			continue
		}
		if single {
			root.Children = append(root.Children, groups...)
			continue
		}
		root.Children = append(root.Children, &TreeNode{
			Label:    s.Name,
			Kind:     NodeSchema,
			Schema:   s.Name,
			Expanded: filtering || s.Name == "public" || s.Name == "main",
			Children: groups,
			Object:   s,
		})
	}

	if filtering {
		if len(root.Children) == 0 {
			return nil
		}
		expandAll(root, NodeTable)
	}
	link(root, nil, 0)
	return []*TreeNode{root}
}

func schemaGroups(s *store.SchemaMetadata, keep map[string]bool) []*TreeNode {
	wanted := func(name string) bool {
		return keep == nil || keep[qualified(s.Name, name)]
	}

	var groups []*TreeNode

	var tables []*TreeNode
	for _, t := range s.Tables {
		if wanted(t.Name) {
			tables = append(tables, tableNode(s.Name, t))
		}
	}
	if len(tables) > 0 {
		groups = append(groups, group("Tables", len(tables), tables, true))
	}

	var views []*TreeNode
	for _, v := range s.Views {
		if wanted(v.Name) {
			views = append(views, &TreeNode{Label: v.Name, Kind: NodeView, Schema: s.Name, Table: v.Name, Object: v})
		}
	}
	if len(views) > 0 {
		groups = append(groups, group("Views", len(views), views, false))
	}

	var matviews []*TreeNode
	for _, v := range s.MaterializedViews {
		if wanted(v.Name) {
			matviews = append(matviews, &TreeNode{Label: v.Name, Kind: NodeMaterializedView, Schema: s.Name, Table: v.Name, Object: v})
		}
	}
	if len(matviews) > 0 {
		groups = append(groups, group("Materialized views", len(matviews), matviews, false))
	}

	if keep != nil {
		return groups
	}

	if len(s.Functions) > 0 {
		kids := make([]*TreeNode, len(s.Functions))
		for i, f := range s.Functions {
			kids[i] = &TreeNode{Label: f.Name, Kind: NodeFunction, Schema: s.Name, Object: f}
		}
		groups = append(groups, group("Functions", len(kids), kids, false))
	}
	if len(s.Procedures) > 0 {
		kids := make([]*TreeNode, len(s.Procedures))
		for i, p := range s.Procedures {
			kids[i] = &TreeNode{Label: p.Name, Kind: NodeProcedure, Schema: s.Name, Object: p}
		}
		groups = append(groups, group("Procedures", len(kids), kids, false))
	}
	return groups
}

func tableNode(schema string, t *store.TableMetadata) *TreeNode {
	node := &TreeNode{Label: t.Name, Kind: NodeTable, Schema: schema, Table: t.Name, Object: t}
	pk := primaryColumns(t)
	for _, c := range t.Columns {
		node.Children = append(node.Children, &TreeNode{
			Label:   c.Name,
			Kind:    NodeColumn,
			Schema:  schema,
			Table:   t.Name,
			ColType: c.Type,
			IsPK:    pk[c.Name],
			Object:  c,
		})
	}
	if len(t.Indexes) > 0 {
		kids := make([]*TreeNode, len(t.Indexes))
		for i, idx := range t.Indexes {
			kids[i] = &TreeNode{Label: idx.Name, Kind: NodeIndex, Schema: schema, Table: t.Name, Object: idx}
		}
		node.Children = append(node.Children, group("Indexes", len(kids), kids, false))
	}
	if len(t.ForeignKeys) > 0 {
		kids := make([]*TreeNode, len(t.ForeignKeys))
		for i, fk := range t.ForeignKeys {
			kids[i] = &TreeNode{Label: fk.Name, Kind: NodeForeignKey, Schema: schema, Table: t.Name, Object: fk}
		}
		node.Children = append(node.Children, group("Foreign keys", len(kids), kids, false))
	}
	return node
}

// expandAll opens every node above the given kind.
func expandAll(node *TreeNode, stop NodeKind) {
	if node.Kind == stop {
		return
	}
	node.Expanded = true
	for _, c := range node.Children {
		expandAll(c, stop)
	}
}

func link(node, parent *TreeNode, depth int) {
	node.Parent = parent
	node.Depth = depth
	for _, c := range node.Children {
		link(c, node, depth+1)
	}
}
