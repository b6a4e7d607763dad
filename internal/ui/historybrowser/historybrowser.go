// Package historybrowser is the modal list of recorded snapshots.
package historybrowser

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/dbmeta/internal/history"
	appmsg "github.com/sadopc/dbmeta/internal/msg"
	"github.com/sadopc/dbmeta/internal/theme"
)

// Store is the part of the history store the list reads from.
type Store interface {
	Recent(limit int) ([]history.Entry, error)
	Search(pattern string, limit int) ([]history.Entry, error)
}

const listLimit = 200

// chrome is the number of rows the title, search box, footer and border use.
const chrome = 8

type keyMap struct {
	Close, Up, Down, PageUp, PageDown, Open key.Binding
}

var keys = keyMap{
	Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	Up:       key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("up", "previous")),
	Down:     key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("down", "next")),
	PageUp:   key.NewBinding(key.WithKeys("pgup")),
	PageDown: key.NewBinding(key.WithKeys("pgdown")),
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
}

// Model is the snapshot list modal.
type Model struct {
	hist    Store
	entries []history.Entry
	cursor  int
	top     int
	shown   bool
	width   int
	height  int
	filter  textinput.Model
	err     error
}

// New returns a hidden list reading from hist. A nil hist lists nothing.
func New(hist Store) Model {
	ti := textinput.New()
	ti.Placeholder = "Filter by database or engine..."
	ti.Prompt = "  > "
	ti.Width = 50
	return Model{hist: hist, filter: ti}
}

// Show clears the filter, reloads entries and opens the list.
func (m *Model) Show() {
	m.shown = true
	m.cursor, m.top = 0, 0
	m.filter.SetValue("")
	m.filter.Focus()
	m.reload()
}

func (m *Model) Hide() {
	m.shown = false
	m.filter.Blur()
}

func (m Model) Visible() bool { return m.shown }

func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
}

// Update handles keys while the list is open. Keys that are not bindings
// edit the filter.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.shown {
		return m, nil
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(km, keys.Close):
		m.Hide()
		return m, nil
	case key.Matches(km, keys.Up):
		m.move(-1)
		return m, nil
	case key.Matches(km, keys.Down):
		m.move(1)
		return m, nil
	case key.Matches(km, keys.PageUp):
		m.move(-m.pageSize())
		return m, nil
	case key.Matches(km, keys.PageDown):
		m.move(m.pageSize())
		return m, nil
	case key.Matches(km, keys.Open):
		return m.open()
	}

	before := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(km)
	if m.filter.Value() != before {
		m.cursor, m.top = 0, 0
		m.reload()
	}
	return m, cmd
}

func (m Model) open() (Model, tea.Cmd) {
	if m.cursor >= len(m.entries) {
		return m, nil
	}
	e := m.entries[m.cursor]
	if e.IsError {
		return m, func() tea.Msg {
			return appmsg.StatusMsg{Text: "failed runs have no snapshot", IsError: true}
		}
	}
	m.Hide()
	return m, func() tea.Msg { return appmsg.SelectSnapshotMsg{ID: e.ID} }
}

// move shifts the cursor by delta, clamped to the entries, and scrolls so
// the cursor stays on screen.
func (m *Model) move(delta int) {
	if len(m.entries) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.entries)-1)
	page := m.pageSize()
	switch {
	case m.cursor < m.top:
		m.top = m.cursor
	case m.cursor >= m.top+page:
		m.top = m.cursor - page + 1
	}
}

func (m Model) pageSize() int {
	return max(m.height-chrome, 3)
}

func (m Model) View() string {
	if !m.shown {
		return ""
	}
	th := theme.Current
	w := 80
	if m.width > 0 {
		w = min(w, m.width-4)
	}

	body := m.rows(w - 6)
	switch {
	case m.err != nil:
		body = append(body, th.ErrorText.Render("  "+m.err.Error()))
	case len(m.entries) == 0:
		body = append(body, th.MutedText.Render("  No snapshots recorded"))
	}

	footer := th.MutedText.Render(fmt.Sprintf("  %d entries\n  %s:%s  %s:%s  up/down:navigate",
		len(m.entries),
		keys.Open.Help().Key, keys.Open.Help().Desc,
		keys.Close.Help().Key, keys.Close.Help().Desc))

	return th.DialogBorder.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		th.DialogTitle.Render("  Recorded snapshots  "),
		"  "+m.filter.View(),
		"",
		strings.Join(body, "\n"),
		"",
		footer,
	))
}

func (m Model) rows(width int) []string {
	th := theme.Current
	end := min(m.top+m.pageSize(), len(m.entries))
	out := make([]string, 0, end-m.top)
	for i := m.top; i < end; i++ {
		e := m.entries[i]
		line := formatEntry(e, width)
		switch {
		case i == m.cursor:
			out = append(out, th.TreeSelected.Render("> "+line))
		case e.IsError:
			out = append(out, th.ErrorText.Render("  "+line))
		default:
			out = append(out, "  "+line)
		}
	}
	return out
}

func (m *Model) reload() {
	m.entries, m.err = nil, nil
	if m.hist == nil {
		return
	}
	var (
		entries []history.Entry
		err     error
	)
	if text := strings.TrimSpace(m.filter.Value()); text != "" {
		entries, err = m.hist.Search("%"+text+"%", listLimit)
	} else {
		entries, err = m.hist.Recent(listLimit)
	}
	if err != nil {
		m.err = err
		return
	}
	m.entries = entries
}

func formatEntry(e history.Entry, width int) string {
	name := fmt.Sprintf("#%d %s/%s", e.ID, e.Engine, e.DatabaseName)
	nameMax := max(width-34, 10)
	if len(name) > nameMax {
		name = name[:nameMax-3] + "..."
	}

	meta := []string{fmt.Sprintf("%d tables", e.TableCount)}
	if e.IsError {
		meta[0] = "failed"
	}
	if e.DurationMS > 0 {
		meta = append(meta, (time.Duration(e.DurationMS) * time.Millisecond).String())
	}
	meta = append(meta, RelativeTime(e.SyncedAt))

	return fmt.Sprintf("%-*s  %s", nameMax, name, strings.Join(meta, " | "))
}

// RelativeTime renders t relative to now, e.g. "5 minutes ago".
func RelativeTime(t time.Time) string {
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}
