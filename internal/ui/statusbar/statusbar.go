package statusbar

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appmsg "github.com/sadopc/dbmeta/internal/msg"
	"github.com/sadopc/dbmeta/internal/theme"
)

// ClearStatusMsg is sent after a timeout to revert the status bar to key hints.
type ClearStatusMsg struct{}

// Model is the status bar component.
type Model struct {
	width    int
	engine   string
	database string
	source   string
	tables   int
	syncTime time.Duration
	pane     appmsg.Pane
	message  string
	isError  bool
	loaded   bool
}

// New creates a new status bar.
func New() Model {
	return Model{}
}

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// flashFor is how long a message replaces the key hints.
const flashFor = 5 * time.Second

var hints = [][2]string{
	{"/", "Filter"},
	{"Tab", "Switch pane"},
	{"?", "Help"},
	{"q", "Quit"},
}

// flash shows text in place of the key hints until a ClearStatusMsg arrives.
func (m *Model) flash(text string, isErr bool) tea.Cmd {
	m.message, m.isError = text, isErr
	return tea.Tick(flashFor, func(time.Time) tea.Msg { return ClearStatusMsg{} })
}

// Update tracks the loaded tree and flashes sync, export and status results.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appmsg.SnapshotLoadedMsg:
		m.loaded = msg.Database != nil
		m.engine, m.source, m.syncTime = string(msg.Engine), msg.Source, msg.Duration
		m.database, m.tables = "", 0
		if msg.Database != nil {
			m.database, m.tables = msg.Database.Name, len(msg.Database.Tables())
		}
		m.message, m.isError = "", false
	case appmsg.SnapshotErrMsg:
		cmd := m.flash(errText(msg.Err), true)
		return m, cmd
	case appmsg.ExportErrMsg:
		cmd := m.flash(errText(msg.Err), true)
		return m, cmd
	case appmsg.ExportCompleteMsg:
		cmd := m.flash(fmt.Sprintf("exported %d tables to %s", msg.Tables, msg.Path), false)
		return m, cmd
	case appmsg.StatusMsg:
		if msg.Duration > 0 {
			m.syncTime = msg.Duration
		}
		cmd := m.flash(msg.Text, msg.IsError)
		return m, cmd
	case ClearStatusMsg:
		m.message, m.isError = "", false
	}
	return m, nil
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// View lays out the target on the left, the message or key hints in the
// middle and the tree summary on the right.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	th := theme.Current

	target := "no metadata"
	if m.loaded {
		target = m.engine + "://" + m.database
	}
	left := th.StatusBarKey.Render(target)

	var center string
	if m.message != "" {
		style := th.StatusBarSuccess
		if m.isError {
			style = th.StatusBarError
		}
		center = style.Render(" " + truncate(m.message, m.width/2) + " ")
	} else {
		var b strings.Builder
		for _, h := range hints {
			b.WriteString(th.StatusBarValue.Render(h[0]))
			b.WriteString(th.StatusBar.Render(" " + h[1] + " "))
		}
		center = b.String()
	}

	var summary []string
	if m.loaded {
		summary = append(summary, fmt.Sprintf("%d tables", m.tables))
		if m.syncTime > 0 {
			summary = append(summary, formatDuration(m.syncTime))
		}
		if m.source != "" {
			summary = append(summary, m.source)
		}
	}
	summary = append(summary, m.pane.String())
	right := th.StatusBarKey.Render(strings.Join(summary, " | "))

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(center)-lipgloss.Width(right), 0)
	pad := func(n int) string { return th.StatusBar.Render(strings.Repeat(" ", n)) }

	return th.StatusBar.Width(m.width).Render(left + pad(gap/2) + center + pad(gap-gap/2) + right)
}

// SetSize sets the status bar width.
func (m *Model) SetSize(width int) {
	m.width = width
}

// SetPane updates the focused pane indicator.
func (m *Model) SetPane(p appmsg.Pane) {
	m.pane = p
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		return s
	}
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
