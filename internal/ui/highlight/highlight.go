// Package highlight renders object definitions with chroma token colors
// mapped onto the active theme.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/theme"
)

// Highlighter tokenises SQL with a chroma lexer chosen for one engine.
type Highlighter struct {
	lexer chroma.Lexer
}

// lexerName picks the chroma lexer closest to the engine's SQL dialect.
func lexerName(engine adapter.Engine) string {
	switch engine {
	case adapter.MySQL, adapter.TiDB:
		return "MySQL"
	case adapter.Postgres, adapter.DuckDB:
		return "PostgreSQL"
	default:
		return "SQL"
	}
}

// New returns a Highlighter for the engine, falling back to the generic SQL
// lexer and then to plain text.
func New(engine adapter.Engine) *Highlighter {
	l := lexers.Get(lexerName(engine))
	if l == nil {
		l = lexers.Get("SQL")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// Highlight styles each token of sql with the theme. Newlines are emitted
// unstyled so multi-line definitions keep their layout in a viewport.
func (h *Highlighter) Highlight(sql string, th *theme.Theme) string {
	if th == nil || sql == "" {
		return sql
	}

	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) * 2)

	for _, tok := range iter.Tokens() {
		if tok.Value == "" {
			continue
		}
		style, ok := styleFor(tok.Type, th)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		lines := strings.Split(tok.Value, "\n")
		for i, line := range lines {
			if line != "" {
				b.WriteString(style.Render(line))
			}
			if i < len(lines)-1 {
				b.WriteByte('\n')
			}
		}
	}

	return b.String()
}

// styleFor maps a chroma token type to a theme style. The second result is
// false for tokens that pass through unstyled.
func styleFor(tt chroma.TokenType, th *theme.Theme) (lipgloss.Style, bool) {
	switch {
	// KeywordType is a subtype of Keyword; check it first.
	case tt == chroma.KeywordType:
		return th.SQLType, true
	case tt == chroma.NameFunction || tt == chroma.NameBuiltin:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	case tt == chroma.Operator || tt == chroma.OperatorWord:
		return th.SQLOperator, true
	case tt == chroma.NameVariable:
		return th.SQLIdentifier, true
	default:
		return lipgloss.Style{}, false
	}
}
