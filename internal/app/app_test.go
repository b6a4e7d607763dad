package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/export"
	"github.com/sadopc/dbmeta/internal/history"
	"github.com/sadopc/dbmeta/internal/store"
	"github.com/sadopc/dbmeta/internal/theme"
	"github.com/sadopc/dbmeta/internal/ui/sidebar"
)

func keyMsg(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func sampleDB(name string) *store.DatabaseSchemaMetadata {
	return &store.DatabaseSchemaMetadata{
		Name: name,
		Schemas: []*store.SchemaMetadata{{
			Name: "public",
			Tables: []*store.TableMetadata{
				{Name: "orders", Columns: []*store.ColumnMetadata{{Name: "id", Position: 1, Type: "integer"}}},
				{Name: "users", Columns: []*store.ColumnMetadata{{Name: "id", Position: 1, Type: "integer"}}},
			},
		}},
	}
}

type fakeSnapshots struct {
	trees map[int64]*store.DatabaseSchemaMetadata
}

func (f *fakeSnapshots) Recent(limit int) ([]history.Entry, error) { return nil, nil }

func (f *fakeSnapshots) Search(pattern string, limit int) ([]history.Entry, error) {
	return nil, nil
}

func (f *fakeSnapshots) Get(id int64) (*store.DatabaseSchemaMetadata, error) {
	if db, ok := f.trees[id]; ok {
		return db, nil
	}
	return nil, history.ErrNoSnapshot
}

// run executes cmd and feeds the messages it yields back into m. Commands
// returned by Update are not followed, which keeps status ticks out.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = run(t, m, c)
		}
	case nil:
	default:
		if _, ok := msg.(tea.QuitMsg); ok {
			return m
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func loaded(t *testing.T, opts Options) Model {
	t.Helper()
	m := New(opts)
	m, _ = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return run(t, m, m.Init())
}

func TestNew(t *testing.T) {
	m := New(Options{Engine: adapter.Postgres})

	if m.focusedPane != PaneTree {
		t.Errorf("focusedPane = %v, want tree", m.focusedPane)
	}
	if !m.sidebar.Focused() || m.detail.Focused() {
		t.Error("tree should start focused")
	}
	if m.opts.ExportFormat != export.JSON {
		t.Errorf("ExportFormat = %q, want json", m.opts.ExportFormat)
	}
	if m.Init() != nil {
		t.Error("Init should be nil without a tree or loader")
	}
	if m.View() != "Loading..." {
		t.Errorf("View before sizing = %q", m.View())
	}
}

func TestInitLoadsTree(t *testing.T) {
	m := loaded(t, Options{Engine: adapter.Postgres, Database: sampleDB("shop"), Source: "live"})

	if m.db == nil || m.db.Name != "shop" {
		t.Fatalf("db = %+v", m.db)
	}
	sel := m.sidebar.Selected()
	if sel == nil || sel.Kind != sidebar.NodeDatabase {
		t.Fatalf("selected = %+v", sel)
	}
	if m.detail.Node() != sel {
		t.Error("detail pane should show the selected node")
	}
	out := m.View()
	for _, want := range []string{"shop", "users", "postgres://shop"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestNavigationUpdatesDetail(t *testing.T) {
	m := loaded(t, Options{Engine: adapter.Postgres, Database: sampleDB("shop")})

	first := m.detail.Node()
	m, _ = update(m, keyMsg("j"))
	if m.detail.Node() == first {
		t.Error("moving the cursor should change the detail node")
	}
	if m.detail.Node() != m.sidebar.Selected() {
		t.Error("detail node should follow the tree cursor")
	}
}

func TestFilter(t *testing.T) {
	m := loaded(t, Options{Engine: adapter.Postgres, Database: sampleDB("shop")})

	m, _ = update(m, keyMsg("/"))
	if !m.filter.Focused() {
		t.Fatal("filter input should be focused after /")
	}
	for _, r := range "usr" {
		m, _ = update(m, keyMsg(string(r)))
	}
	if m.sidebar.Filter() != "usr" {
		t.Fatalf("sidebar filter = %q, want usr", m.sidebar.Filter())
	}
	if m.sidebar.Matches() != 1 {
		t.Errorf("Matches = %d, want 1", m.sidebar.Matches())
	}
	// Global keys are typed into the filter while it is focused.
	m, _ = update(m, keyMsg("q"))
	if m.quitting {
		t.Fatal("q should not quit while filtering")
	}

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.filter.Focused() {
		t.Error("enter should leave the filter input")
	}
	if m.sidebar.Filter() != "usrq" {
		t.Errorf("filter after enter = %q", m.sidebar.Filter())
	}

	m, _ = update(m, keyMsg("/"))
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.sidebar.Filter() != "" || m.filter.Value() != "" {
		t.Error("esc should clear the filter")
	}
}

func TestFocusSwitch(t *testing.T) {
	m := loaded(t, Options{Database: sampleDB("shop")})

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedPane != PaneDetail || !m.detail.Focused() || m.sidebar.Focused() {
		t.Fatal("tab should focus the detail pane")
	}
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.focusedPane != PaneTree || !m.sidebar.Focused() {
		t.Fatal("shift+tab should focus the tree")
	}
}

func TestQuit(t *testing.T) {
	m := loaded(t, Options{Database: sampleDB("shop")})

	m, cmd := update(m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should return tea.Quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestHelpOverlay(t *testing.T) {
	m := loaded(t, Options{Database: sampleDB("shop")})

	m, _ = update(m, keyMsg("?"))
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatal("? should show the help screen")
	}
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("esc should close the help screen")
	}
}

func TestThemeCycle(t *testing.T) {
	t.Cleanup(func() { theme.Current = theme.Default() })
	m := loaded(t, Options{Database: sampleDB("shop"), Theme: "default"})

	names := theme.Names()
	for i := 1; i <= len(names); i++ {
		m, _ = update(m, keyMsg("T"))
		if want := names[i%len(names)]; theme.Current.Name != want {
			t.Fatalf("after %d presses theme = %q, want %q", i, theme.Current.Name, want)
		}
	}
}

func TestRefresh(t *testing.T) {
	calls := 0
	loader := func(ctx context.Context) (*store.DatabaseSchemaMetadata, error) {
		calls++
		return sampleDB("fresh"), nil
	}
	m := loaded(t, Options{Engine: adapter.MySQL, Database: sampleDB("shop"), Loader: loader})

	m, cmd := update(m, keyMsg("r"))
	if !m.syncing {
		t.Error("expected syncing after r")
	}
	m = run(t, m, cmd)
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
	if m.syncing || m.db.Name != "fresh" {
		t.Errorf("db = %q syncing = %v", m.db.Name, m.syncing)
	}
}

func TestRefreshError(t *testing.T) {
	loader := func(ctx context.Context) (*store.DatabaseSchemaMetadata, error) {
		return nil, errors.New("connection refused")
	}
	m := loaded(t, Options{Database: sampleDB("shop"), Loader: loader})

	m, cmd := update(m, RefreshMsg{})
	m = run(t, m, cmd)
	if m.syncing {
		t.Error("a failed sync should clear the syncing flag")
	}
	if m.db.Name != "shop" {
		t.Error("a failed sync should keep the current tree")
	}
	if !strings.Contains(m.View(), "connection refused") {
		t.Error("expected the sync error in the status bar")
	}
}

func TestRefreshWithoutLoader(t *testing.T) {
	m := loaded(t, Options{Database: sampleDB("shop")})

	_, cmd := update(m, keyMsg("r"))
	msg, ok := cmd().(StatusMsg)
	if !ok || !msg.IsError {
		t.Fatalf("expected error status, got %#v", msg)
	}
}

func TestSelectSnapshot(t *testing.T) {
	snaps := &fakeSnapshots{trees: map[int64]*store.DatabaseSchemaMetadata{7: sampleDB("archived")}}
	m := loaded(t, Options{Engine: adapter.SQLite, Database: sampleDB("shop"), Snapshots: snaps})

	m, cmd := update(m, SelectSnapshotMsg{ID: 7})
	m = run(t, m, cmd)
	if m.db == nil || m.db.Name != "archived" {
		t.Fatalf("db = %+v", m.db)
	}
	if !strings.Contains(m.View(), "snapshot #7") {
		t.Error("status bar should name the snapshot source")
	}

	m, cmd = update(m, SelectSnapshotMsg{ID: 99})
	m = run(t, m, cmd)
	if m.db.Name != "archived" {
		t.Error("an unknown snapshot should keep the current tree")
	}
}

func TestSnapshotsOverlay(t *testing.T) {
	m := loaded(t, Options{Database: sampleDB("shop")})
	_, cmd := update(m, keyMsg("s"))
	if msg, ok := cmd().(StatusMsg); !ok || !msg.IsError {
		t.Fatal("s without a snapshot store should report an error")
	}

	m = loaded(t, Options{Database: sampleDB("shop"), Snapshots: &fakeSnapshots{}})
	m, _ = update(m, keyMsg("s"))
	if !m.snapshots.Visible() {
		t.Fatal("s should open the snapshot list")
	}
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.snapshots.Visible() {
		t.Error("esc should close the snapshot list")
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	m := loaded(t, Options{Database: sampleDB("shop"), ExportDir: dir, ExportFormat: export.YAML})

	m, cmd := update(m, keyMsg("e"))
	msg, ok := cmd().(ExportCompleteMsg)
	if !ok {
		t.Fatalf("expected ExportCompleteMsg, got %T", msg)
	}
	want := filepath.Join(dir, "shop.yaml")
	if msg.Path != want || msg.Tables != 2 {
		t.Errorf("export = %+v, want %s with 2 tables", msg, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "users") {
		t.Error("exported file should contain the users table")
	}
}

func TestExportWithoutTree(t *testing.T) {
	m := New(Options{ExportDir: t.TempDir()})
	_, cmd := update(m, keyMsg("e"))
	if msg, ok := cmd().(StatusMsg); !ok || !msg.IsError {
		t.Fatal("export without a tree should report an error")
	}
}

func TestExportPath(t *testing.T) {
	tests := []struct {
		dir, database string
		format        export.Format
		want          string
	}{
		{"out", "shop", export.JSON, filepath.Join("out", "shop.json")},
		{"out", "/data/app.db", export.CSV, filepath.Join("out", "app.csv")},
		{"", "analytics.duckdb", export.YAML, "analytics.yaml"},
		{"out", "", export.JSON, filepath.Join("out", "database.json")},
	}
	for _, tt := range tests {
		if got := ExportPath(tt.dir, tt.database, tt.format); got != tt.want {
			t.Errorf("ExportPath(%q, %q, %q) = %q, want %q", tt.dir, tt.database, tt.format, got, tt.want)
		}
	}
}
