// Package audit appends a JSON Lines record of every sync run.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sadopc/dbmeta/internal/adapter"
)

// Entry is a single audit log record describing one sync run.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Operation  string    `json:"operation"`
	Engine     string    `json:"engine"`
	Database   string    `json:"database"`
	Target     string    `json:"target"`
	DurationMS int64     `json:"duration_ms"`
	TableCount int       `json:"table_count"`
	IsError    bool      `json:"is_error"`
	Error      string    `json:"error,omitempty"`
}

// NewEntry describes a sync of cfg that started at start. The target is the
// redacted connection string.
func NewEntry(op string, cfg adapter.ConnectionConfig, start time.Time, tables int, err error) Entry {
	e := Entry{
		Timestamp:  start.UTC(),
		Operation:  op,
		Engine:     string(cfg.Engine),
		Database:   cfg.Database,
		Target:     Redact(cfg),
		DurationMS: time.Since(start).Milliseconds(),
		TableCount: tables,
	}
	if err != nil {
		e.IsError = true
		e.Error = err.Error()
	}
	return e
}

// Logger appends entries to a JSON Lines file. Once the file grows past
// the size limit it is renamed to path.1 and a fresh file is started.
type Logger struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	limit   int64
	written int64
}

// New opens path for appending, creating missing directories with 0o700
// and the file with 0o600. maxSizeMB <= 0 disables rollover.
func New(path string, maxSizeMB int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	l := &Logger{path: path}
	if maxSizeMB > 0 {
		l.limit = int64(maxSizeMB) << 20
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("audit: stat file: %w", err)
	}
	l.f = f
	l.written = info.Size()
	return nil
}

// Log appends e. A nil Logger discards entries, so callers need not check
// whether auditing is enabled. Write failures are dropped.
func (l *Logger) Log(e Entry) {
	if l == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	n, _ := l.f.Write(line)
	l.written += int64(n)
	if l.limit > 0 && l.written >= l.limit {
		l.rollover()
	}
}

// rollover keeps one previous generation at path.1.
func (l *Logger) rollover() {
	_ = l.f.Close()
	l.f = nil
	_ = os.Rename(l.path, l.path+".1")
	_ = l.open()
}

// Close is safe on a nil Logger.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Redact renders cfg as engine://user@host:port/database, never including
// the password.
func Redact(cfg adapter.ConnectionConfig) string {
	return cfg.String()
}
