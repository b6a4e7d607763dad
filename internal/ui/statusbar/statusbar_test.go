package statusbar

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/dbmeta/internal/adapter"
	appmsg "github.com/sadopc/dbmeta/internal/msg"
	"github.com/sadopc/dbmeta/internal/store"
	"github.com/sadopc/dbmeta/internal/theme"
)

func init() {
	theme.Current = theme.Default()
}

func loaded() appmsg.SnapshotLoadedMsg {
	return appmsg.SnapshotLoadedMsg{
		Engine: adapter.Postgres,
		Database: &store.DatabaseSchemaMetadata{
			Name: "shop",
			Schemas: []*store.SchemaMetadata{{
				Name:   "public",
				Tables: []*store.TableMetadata{{Name: "users"}, {Name: "orders"}},
			}},
		},
		Source:   "live",
		Duration: 250 * time.Millisecond,
	}
}

func TestNew(t *testing.T) {
	m := New()
	if m.loaded {
		t.Fatal("expected loaded=false")
	}
	if m.message != "" {
		t.Fatalf("expected empty message, got %q", m.message)
	}
}

func TestUpdate_SnapshotLoaded(t *testing.T) {
	m := New()
	m, _ = m.Update(loaded())

	if !m.loaded || m.engine != "postgres" || m.database != "shop" {
		t.Fatalf("unexpected state %+v", m)
	}
	if m.tables != 2 {
		t.Errorf("tables = %d, want 2", m.tables)
	}
	if m.syncTime != 250*time.Millisecond {
		t.Errorf("syncTime = %v", m.syncTime)
	}
}

func TestUpdate_ErrorsSetMessageAndScheduleClear(t *testing.T) {
	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"sync error", appmsg.SnapshotErrMsg{Err: errors.New("connection refused")}, "connection refused"},
		{"export error", appmsg.ExportErrMsg{Err: errors.New("disk full")}, "disk full"},
		{"nil error", appmsg.SnapshotErrMsg{}, "unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := New().Update(tt.msg)
			if !m.isError || m.message != tt.want {
				t.Errorf("message = %q (error=%v), want %q", m.message, m.isError, tt.want)
			}
			if cmd == nil {
				t.Error("expected a clear command")
			}
		})
	}
}

func TestUpdate_ExportComplete(t *testing.T) {
	m, _ := New().Update(appmsg.ExportCompleteMsg{Path: "shop.json", Tables: 4})
	if m.isError || m.message != "exported 4 tables to shop.json" {
		t.Errorf("message = %q", m.message)
	}
}

func TestUpdate_ClearStatus(t *testing.T) {
	m, _ := New().Update(appmsg.StatusMsg{Text: "hello", IsError: true})
	m, _ = m.Update(ClearStatusMsg{})
	if m.message != "" || m.isError {
		t.Errorf("expected cleared status, got %q", m.message)
	}
}

func TestView(t *testing.T) {
	m := New()
	if m.View() != "" {
		t.Fatal("expected empty view with zero width")
	}

	m.SetSize(120)
	if !strings.Contains(m.View(), "no metadata") {
		t.Error("expected placeholder before load")
	}

	m, _ = m.Update(loaded())
	m.SetPane(appmsg.PaneDetail)
	out := m.View()
	for _, want := range []string{"postgres://shop", "2 tables", "250ms", "live", "detail", "Filter"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q: %q", want, out)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500µs"},
		{42 * time.Millisecond, "42ms"},
		{1500 * time.Millisecond, "1.5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 2); got != "abc" {
		t.Errorf("truncate with tiny max = %q", got)
	}
}
