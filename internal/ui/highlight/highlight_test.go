package highlight

import (
	"strings"
	"testing"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/theme"
)

// lipgloss renders styles as no-ops without a TTY, so these tests check that
// content and layout survive rather than looking for escape codes.

func TestNew(t *testing.T) {
	for _, e := range []adapter.Engine{adapter.MySQL, adapter.TiDB, adapter.Postgres, adapter.SQLite, adapter.DuckDB} {
		h := New(e)
		if h == nil || h.lexer == nil {
			t.Fatalf("New(%s) returned no lexer", e)
		}
	}
}

func TestLexerName(t *testing.T) {
	tests := []struct {
		engine adapter.Engine
		want   string
	}{
		{adapter.MySQL, "MySQL"},
		{adapter.TiDB, "MySQL"},
		{adapter.Postgres, "PostgreSQL"},
		{adapter.DuckDB, "PostgreSQL"},
		{adapter.SQLite, "SQL"},
	}
	for _, tt := range tests {
		if got := lexerName(tt.engine); got != tt.want {
			t.Errorf("lexerName(%s) = %q, want %q", tt.engine, got, tt.want)
		}
	}
}

func TestHighlight_PreservesContent(t *testing.T) {
	h := New(adapter.Postgres)
	def := " SELECT u.id,\n    lower(u.email) AS email\n   FROM users u\n  WHERE u.active = true;"

	got := h.Highlight(def, theme.Default())
	for _, want := range []string{"SELECT", "lower", "users", "WHERE", "true"} {
		if !strings.Contains(got, want) {
			t.Errorf("highlighted output missing %q", want)
		}
	}
	if strings.Count(got, "\n") != strings.Count(def, "\n") {
		t.Errorf("newline count changed: got %d, want %d", strings.Count(got, "\n"), strings.Count(def, "\n"))
	}
}

func TestHighlight_NilThemeAndEmpty(t *testing.T) {
	h := New(adapter.MySQL)
	if got := h.Highlight("SELECT 1", nil); got != "SELECT 1" {
		t.Errorf("Highlight(nil theme) = %q", got)
	}
	if got := h.Highlight("", theme.Default()); got != "" {
		t.Errorf("Highlight(\"\") = %q", got)
	}
}

func TestHighlight_Routine(t *testing.T) {
	h := New(adapter.MySQL)
	def := "CREATE FUNCTION `add_one`(x INT) RETURNS int\n    DETERMINISTIC\nRETURN x + 1"
	got := h.Highlight(def, theme.Get("monokai"))
	if !strings.Contains(got, "add_one") || !strings.Contains(got, "RETURN") {
		t.Errorf("Highlight() = %q", got)
	}
}
