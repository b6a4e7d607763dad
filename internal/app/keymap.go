package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the browser keybindings.
type KeyMap struct {
	FocusNext key.Binding
	FocusPrev key.Binding
	Filter    key.Binding
	Refresh   key.Binding
	Snapshots key.Binding
	Export    key.Binding
	Theme     key.Binding
	Help      key.Binding
	Quit      key.Binding

	// Tree navigation, handled by the sidebar; listed here for help.
	Up       key.Binding
	Down     key.Binding
	Expand   key.Binding
	Collapse key.Binding
}

// DefaultKeyMap returns the browser keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		FocusNext: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		FocusPrev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev pane"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter tables"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "resync"),
		),
		Snapshots: key.NewBinding(
			key.WithKeys("s", "ctrl+h"),
			key.WithHelp("s", "snapshots"),
		),
		Export: key.NewBinding(
			key.WithKeys("e", "ctrl+e"),
			key.WithHelp("e", "export"),
		),
		Theme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "next theme"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "f1"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "ctrl+q"),
			key.WithHelp("q", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Expand: key.NewBinding(
			key.WithKeys("enter", "right", "l"),
			key.WithHelp("enter/→", "expand"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "collapse / parent"),
		),
	}
}

// ShortHelp returns keybindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Filter, k.FocusNext, k.Snapshots, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Expand, k.Collapse},
		{k.FocusNext, k.FocusPrev, k.Filter},
		{k.Refresh, k.Snapshots, k.Export, k.Theme},
		{k.Help, k.Quit},
	}
}
