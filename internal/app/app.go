// Package app is the root bubbletea model of the metadata browser. It lays
// out the tree, the detail pane and the status bar, and owns filtering,
// resyncing, snapshot loading and export.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/export"
	"github.com/sadopc/dbmeta/internal/store"
	"github.com/sadopc/dbmeta/internal/theme"
	"github.com/sadopc/dbmeta/internal/ui/detail"
	"github.com/sadopc/dbmeta/internal/ui/highlight"
	"github.com/sadopc/dbmeta/internal/ui/historybrowser"
	"github.com/sadopc/dbmeta/internal/ui/sidebar"
	"github.com/sadopc/dbmeta/internal/ui/statusbar"
)

// Loader produces a fresh tree of the browsed database.
type Loader func(ctx context.Context) (*store.DatabaseSchemaMetadata, error)

// SnapshotStore lists recorded snapshots and decodes one by id.
type SnapshotStore interface {
	historybrowser.Store
	Get(id int64) (*store.DatabaseSchemaMetadata, error)
}

// Options configure the browser.
type Options struct {
	Engine   adapter.Engine
	Database *store.DatabaseSchemaMetadata
	// Source labels the initial tree in the status bar.
	Source   string
	Duration time.Duration

	// Loader enables resync; nil disables it.
	Loader Loader
	// Snapshots enables the recorded snapshot list; nil disables it.
	Snapshots SnapshotStore

	ExportDir    string
	ExportFormat export.Format
	Theme        string
	// SyncTimeout bounds a resync. Zero means one minute.
	SyncTimeout time.Duration
}

// Model is the root application model.
type Model struct {
	width        int
	height       int
	sidebarWidth int
	focusedPane  Pane

	sidebar   sidebar.Model
	detail    detail.Model
	statusbar statusbar.Model
	snapshots historybrowser.Model
	filter    textinput.Model
	help      help.Model
	keyMap    KeyMap

	opts     Options
	db       *store.DatabaseSchemaMetadata
	syncing  bool
	showHelp bool
	quitting bool
}

// New creates the browser model.
func New(opts Options) Model {
	if opts.Theme != "" {
		theme.Current = theme.Get(opts.Theme)
	}
	if opts.ExportFormat == "" {
		opts.ExportFormat = export.JSON
	}
	if opts.SyncTimeout == 0 {
		opts.SyncTimeout = time.Minute
	}

	fi := textinput.New()
	fi.Prompt = "/"
	fi.Placeholder = "table name"
	fi.PromptStyle = theme.Current.FilterPrompt

	var snaps historybrowser.Store
	if opts.Snapshots != nil {
		snaps = opts.Snapshots
	}

	m := Model{
		sidebarWidth: 40,
		focusedPane:  PaneTree,
		sidebar:      sidebar.New(),
		detail:       detail.New(highlight.New(opts.Engine)),
		statusbar:    statusbar.New(),
		snapshots:    historybrowser.New(snaps),
		filter:       fi,
		help:         help.New(),
		keyMap:       DefaultKeyMap(),
		opts:         opts,
	}
	m.sidebar.Focus()
	return m
}

// Init delivers the initial tree.
func (m Model) Init() tea.Cmd {
	if m.opts.Database == nil {
		if m.opts.Loader != nil {
			return m.resync()
		}
		return nil
	}
	msg := SnapshotLoadedMsg{
		Engine:   m.opts.Engine,
		Database: m.opts.Database,
		Source:   m.opts.Source,
		Duration: m.opts.Duration,
	}
	return func() tea.Msg { return msg }
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case SnapshotLoadedMsg:
		m.syncing = false
		m.db = msg.Database
		m.filter.SetValue("")
		m.sidebar.SetDatabase(msg.Database)
		m.detail.SetNode(m.sidebar.Selected())
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		return m, cmd

	case SnapshotErrMsg:
		m.syncing = false
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		return m, cmd

	case RefreshMsg:
		cmd := m.resync()
		return m, cmd

	case SelectSnapshotMsg:
		cmd := m.loadSnapshot(msg.ID)
		return m, cmd

	case OpenSnapshotsMsg:
		cmd := m.openSnapshots()
		return m, cmd

	case StatusMsg, ExportCompleteMsg, ExportErrMsg, statusbar.ClearStatusMsg:
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.snapshots.Visible() {
			var cmd tea.Cmd
			m.snapshots, cmd = m.snapshots.Update(msg)
			return m, cmd
		}
		if m.filter.Focused() {
			cmd := m.updateFilter(msg)
			return m, cmd
		}
		if m.showHelp {
			switch msg.String() {
			case "?", "f1", "esc", "q":
				m.showHelp = false
			}
			return m, nil
		}
		if cmd, handled := m.handleGlobalKeys(msg); handled {
			return m, cmd
		}
		cmd := m.updateFocusedPane(msg)
		return m, cmd
	}

	// Non-key messages (cursor blink, viewport mouse) reach the inputs.
	var cmd tea.Cmd
	m.snapshots, cmd = m.snapshots.Update(msg)
	cmds = append(cmds, cmd)
	m.filter, cmd = m.filter.Update(msg)
	cmds = append(cmds, cmd)
	m.detail, cmd = m.detail.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	km := m.keyMap
	switch {
	case key.Matches(msg, km.Quit):
		m.quitting = true
		return tea.Quit, true

	case key.Matches(msg, km.Help):
		m.showHelp = true
		return nil, true

	case key.Matches(msg, km.FocusNext), key.Matches(msg, km.FocusPrev):
		if m.focusedPane == PaneTree {
			m.setFocus(PaneDetail)
		} else {
			m.setFocus(PaneTree)
		}
		return nil, true

	case key.Matches(msg, km.Filter):
		m.setFocus(PaneTree)
		m.filter.SetValue(m.sidebar.Filter())
		m.filter.CursorEnd()
		return m.filter.Focus(), true

	case key.Matches(msg, km.Refresh):
		return m.resync(), true

	case key.Matches(msg, km.Snapshots):
		return m.openSnapshots(), true

	case key.Matches(msg, km.Export):
		return m.exportTree(), true

	case key.Matches(msg, km.Theme):
		m.cycleTheme()
		return nil, true
	}
	return nil, false
}

// updateFilter feeds keys to the filter input, applying the query on every
// change. Enter keeps the filter, Esc drops it.
func (m *Model) updateFilter(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		m.filter.Blur()
		m.updateLayout()
		return nil
	case "esc":
		m.filter.Blur()
		m.filter.SetValue("")
		m.sidebar.SetFilter("")
		m.detail.SetNode(m.sidebar.Selected())
		m.updateLayout()
		return nil
	}

	prev := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != prev {
		m.sidebar.SetFilter(m.filter.Value())
		m.detail.SetNode(m.sidebar.Selected())
	}
	m.updateLayout()
	return cmd
}

func (m *Model) updateFocusedPane(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focusedPane {
	case PaneTree:
		m.sidebar, cmd = m.sidebar.Update(msg)
		m.detail.SetNode(m.sidebar.Selected())
	case PaneDetail:
		m.detail, cmd = m.detail.Update(msg)
	}
	return cmd
}

func (m *Model) setFocus(p Pane) {
	m.focusedPane = p
	if p == PaneTree {
		m.sidebar.Focus()
		m.detail.Blur()
	} else {
		m.sidebar.Blur()
		m.detail.Focus()
	}
	m.statusbar.SetPane(p)
}

func (m *Model) cycleTheme() {
	names := theme.Names()
	next := names[0]
	for i, n := range names {
		if n == theme.Current.Name {
			next = names[(i+1)%len(names)]
			break
		}
	}
	theme.Current = theme.Get(next)
	m.filter.PromptStyle = theme.Current.FilterPrompt
	// Re-render the detail content with the new token colors.
	m.updateLayout()
}

func (m *Model) openSnapshots() tea.Cmd {
	if m.opts.Snapshots == nil {
		return status("snapshot history is disabled", true)
	}
	m.snapshots.Show()
	return nil
}

func status(text string, isError bool) tea.Cmd {
	return func() tea.Msg { return StatusMsg{Text: text, IsError: isError} }
}

func (m *Model) resync() tea.Cmd {
	if m.opts.Loader == nil {
		return status("resync is not available for recorded snapshots", true)
	}
	if m.syncing {
		return nil
	}
	m.syncing = true
	load := m.opts.Loader
	engine := m.opts.Engine
	timeout := m.opts.SyncTimeout
	return tea.Batch(
		status("syncing...", false),
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			start := time.Now()
			db, err := load(ctx)
			if err != nil {
				return SnapshotErrMsg{Err: err}
			}
			return SnapshotLoadedMsg{Engine: engine, Database: db, Source: "live", Duration: time.Since(start)}
		},
	)
}

func (m *Model) loadSnapshot(id int64) tea.Cmd {
	snaps := m.opts.Snapshots
	if snaps == nil {
		return nil
	}
	engine := m.opts.Engine
	return func() tea.Msg {
		db, err := snaps.Get(id)
		if err != nil {
			return SnapshotErrMsg{Err: fmt.Errorf("load snapshot #%d: %w", id, err)}
		}
		return SnapshotLoadedMsg{Engine: engine, Database: db, Source: fmt.Sprintf("snapshot #%d", id)}
	}
}

// ExportPath is the file the tree of database is exported to. File-based
// databases are named after the file without its extension.
func ExportPath(dir, database string, format export.Format) string {
	name := strings.TrimSuffix(filepath.Base(database), filepath.Ext(database))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "database"
	}
	return filepath.Join(dir, name+"."+string(format))
}

func (m *Model) exportTree() tea.Cmd {
	db := m.db
	if db == nil {
		return status("nothing to export", true)
	}
	path := ExportPath(m.opts.ExportDir, db.Name, m.opts.ExportFormat)
	format := m.opts.ExportFormat
	return func() tea.Msg {
		if err := export.WriteFile(path, format, db); err != nil {
			return ExportErrMsg{Err: fmt.Errorf("export %s: %w", path, err)}
		}
		return ExportCompleteMsg{Path: path, Tables: len(db.Tables())}
	}
}

// View renders the entire application.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	th := theme.Current

	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderHelpScreen(th))
	}
	if m.snapshots.Visible() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.snapshots.View())
	}

	parts := make([]string, 0, 3)
	if m.filterVisible() {
		parts = append(parts, m.filter.View())
	}
	parts = append(parts,
		lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), m.detail.View()),
		m.statusbar.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) filterVisible() bool {
	return m.filter.Focused() || m.sidebar.Filter() != ""
}

func (m *Model) updateLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.statusbar.SetSize(m.width)
	m.snapshots.SetSize(m.width, m.height)
	m.help.Width = m.width
	m.filter.Width = max(m.width-4, 10)

	mainHeight := m.height - 1 // status bar
	if m.filterVisible() {
		mainHeight--
	}
	mainHeight = max(mainHeight, 3)

	treeWidth := min(m.sidebarWidth, m.width/2)
	m.sidebar.SetSize(treeWidth, mainHeight)
	m.detail.SetSize(m.width-treeWidth, mainHeight)
}

func (m *Model) renderHelpScreen(th *theme.Theme) string {
	var b strings.Builder
	b.WriteString(th.DialogTitle.Render("dbmeta - Keyboard Shortcuts"))
	b.WriteString("\n\n")
	b.WriteString(m.help.FullHelpView(m.keyMap.FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(th.MutedText.Render("Press ? / Esc to close"))
	return th.DialogBorder.Render(b.String())
}
