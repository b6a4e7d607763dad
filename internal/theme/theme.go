// Package theme provides the styles used by the dbmeta terminal browser.
// Every visual element references a lipgloss.Style held in a Theme so that
// the look can be swapped at runtime.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme holds lipgloss.Style values for every element of the browser.
type Theme struct {
	Name string

	// Metadata tree
	TreeTitle      lipgloss.Style
	TreeDatabase   lipgloss.Style
	TreeSchema     lipgloss.Style
	TreeGroup      lipgloss.Style
	TreeTable      lipgloss.Style
	TreeView       lipgloss.Style
	TreeRoutine    lipgloss.Style
	TreeColumn     lipgloss.Style
	TreeColumnType lipgloss.Style
	TreeIndex      lipgloss.Style
	TreeForeignKey lipgloss.Style
	TreeSelected   lipgloss.Style

	// Detail pane
	DetailTitle lipgloss.Style
	DetailKey   lipgloss.Style
	DetailValue lipgloss.Style

	// SQL syntax highlighting
	SQLKeyword    lipgloss.Style
	SQLString     lipgloss.Style
	SQLNumber     lipgloss.Style
	SQLComment    lipgloss.Style
	SQLOperator   lipgloss.Style
	SQLFunction   lipgloss.Style
	SQLType       lipgloss.Style
	SQLIdentifier lipgloss.Style

	// Status bar
	StatusBar        lipgloss.Style
	StatusBarKey     lipgloss.Style
	StatusBarValue   lipgloss.Style
	StatusBarError   lipgloss.Style
	StatusBarSuccess lipgloss.Style

	// Filter prompt and snapshot list
	FilterPrompt lipgloss.Style
	DialogBorder lipgloss.Style
	DialogTitle  lipgloss.Style

	// General
	FocusedBorder   lipgloss.Style
	UnfocusedBorder lipgloss.Style
	ErrorText       lipgloss.Style
	SuccessText     lipgloss.Style
	WarningText     lipgloss.Style
	MutedText       lipgloss.Style
}

// palette is the small set of colors a theme is derived from.
type palette struct {
	border, accent, text, muted     string
	selectedFg, selectedBg          string
	database, schema, table, view   string
	keyword, str, number, comment   string
	function, typ, ident, operator  string
	barFg, barBg, barKeyFg, barKey  string
	valueFg, valueBg                string
	errColor, okColor, warnColor    string
	errBarFg, okBarFg               string
}

func color(c string) lipgloss.Color { return lipgloss.Color(c) }

func fg(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(color(c)) }

func border(c string) lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color(c))
}

func build(name string, p palette) *Theme {
	return &Theme{
		Name: name,

		TreeTitle:      fg(p.accent).Bold(true).PaddingLeft(1),
		TreeDatabase:   fg(p.database).Bold(true),
		TreeSchema:     fg(p.schema),
		TreeGroup:      fg(p.muted).Bold(true),
		TreeTable:      fg(p.table),
		TreeView:       fg(p.view),
		TreeRoutine:    fg(p.function),
		TreeColumn:     fg(p.text),
		TreeColumnType: fg(p.muted).Italic(true),
		TreeIndex:      fg(p.number),
		TreeForeignKey: fg(p.str),
		TreeSelected: fg(p.selectedFg).
			Bold(true).
			Background(color(p.selectedBg)),

		DetailTitle: fg(p.accent).Bold(true).Underline(true),
		DetailKey:   fg(p.ident).Bold(true),
		DetailValue: fg(p.text),

		SQLKeyword:    fg(p.keyword).Bold(true),
		SQLString:     fg(p.str),
		SQLNumber:     fg(p.number),
		SQLComment:    fg(p.comment).Italic(true),
		SQLOperator:   fg(p.operator),
		SQLFunction:   fg(p.function),
		SQLType:       fg(p.typ),
		SQLIdentifier: fg(p.ident),

		StatusBar: fg(p.barFg).Background(color(p.barBg)),
		StatusBarKey: fg(p.barKeyFg).
			Bold(true).
			Background(color(p.barKey)).
			PaddingLeft(1).
			PaddingRight(1),
		StatusBarValue: fg(p.valueFg).
			Background(color(p.valueBg)).
			PaddingLeft(1).
			PaddingRight(1),
		StatusBarError: fg(p.errBarFg).
			Bold(true).
			Background(color(p.errColor)),
		StatusBarSuccess: fg(p.okBarFg).
			Background(color(p.okColor)),

		FilterPrompt: fg(p.accent).Bold(true),
		DialogBorder: border(p.accent).Padding(0, 1),
		DialogTitle:  fg(p.accent).Bold(true),

		FocusedBorder:   border(p.accent),
		UnfocusedBorder: border(p.border),
		ErrorText:       fg(p.errColor).Bold(true),
		SuccessText:     fg(p.okColor),
		WarningText:     fg(p.warnColor),
		MutedText:       fg(p.muted),
	}
}

var defaultPalette = palette{
	border: "#3C3C3C", accent: "#569CD6", text: "#D4D4D4", muted: "#808080",
	selectedFg: "#FFFFFF", selectedBg: "#264F78",
	database: "#DCDCAA", schema: "#9CDCFE", table: "#4EC9B0", view: "#C586C0",
	keyword: "#569CD6", str: "#CE9178", number: "#B5CEA8", comment: "#6A9955",
	function: "#DCDCAA", typ: "#4EC9B0", ident: "#9CDCFE", operator: "#D4D4D4",
	barFg: "#FFFFFF", barBg: "#007ACC", barKeyFg: "#FFFFFF", barKey: "#007ACC",
	valueFg: "#D4D4D4", valueBg: "#1E1E1E",
	errColor: "#F44747", okColor: "#6A9955", warnColor: "#CCA700",
	errBarFg: "#FFFFFF", okBarFg: "#FFFFFF",
}

var lightPalette = palette{
	border: "#D4D4D4", accent: "#0451A5", text: "#1E1E1E", muted: "#A0A0A0",
	selectedFg: "#FFFFFF", selectedBg: "#0060C0",
	database: "#795E26", schema: "#001080", table: "#267F99", view: "#AF00DB",
	keyword: "#0000FF", str: "#A31515", number: "#098658", comment: "#008000",
	function: "#795E26", typ: "#267F99", ident: "#001080", operator: "#1E1E1E",
	barFg: "#FFFFFF", barBg: "#0060C0", barKeyFg: "#FFFFFF", barKey: "#0060C0",
	valueFg: "#1E1E1E", valueBg: "#F3F3F3",
	errColor: "#E51400", okColor: "#16825D", warnColor: "#BF8803",
	errBarFg: "#FFFFFF", okBarFg: "#FFFFFF",
}

var monokaiPalette = palette{
	border: "#49483E", accent: "#F92672", text: "#F8F8F2", muted: "#75715E",
	selectedFg: "#F8F8F2", selectedBg: "#49483E",
	database: "#E6DB74", schema: "#66D9EF", table: "#A6E22E", view: "#AE81FF",
	keyword: "#F92672", str: "#E6DB74", number: "#AE81FF", comment: "#75715E",
	function: "#A6E22E", typ: "#66D9EF", ident: "#F8F8F2", operator: "#F92672",
	barFg: "#F8F8F2", barBg: "#75715E", barKeyFg: "#272822", barKey: "#A6E22E",
	valueFg: "#F8F8F2", valueBg: "#3E3D32",
	errColor: "#F92672", okColor: "#A6E22E", warnColor: "#E6DB74",
	errBarFg: "#F8F8F2", okBarFg: "#272822",
}

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": build("default", defaultPalette),
	"light":   build("light", lightPalette),
	"monokai": build("monokai", monokaiPalette),
}

// Current is the active theme. It is initialized to Default.
var Current = Themes["default"]

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme identified by name, falling back to the default
// theme for unknown names.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Names lists the registered themes in a stable order.
func Names() []string {
	return []string{"default", "light", "monokai"}
}
