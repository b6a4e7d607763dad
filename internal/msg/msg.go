// Package msg holds the bubbletea messages shared by the browser panes.
package msg

import (
	"time"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/store"
)

// Pane focus targets.
type Pane int

const (
	PaneTree Pane = iota
	PaneDetail
)

func (p Pane) String() string {
	if p == PaneDetail {
		return "detail"
	}
	return "tree"
}

// SnapshotLoadedMsg is sent when a metadata tree is ready to browse.
type SnapshotLoadedMsg struct {
	Engine   adapter.Engine
	Database *store.DatabaseSchemaMetadata
	// Source describes where the tree came from, e.g. "live" or "snapshot #3".
	Source   string
	Duration time.Duration
}

// SnapshotErrMsg is sent when loading a tree fails.
type SnapshotErrMsg struct {
	Err error
}

// RefreshMsg requests a fresh sync of the current database.
type RefreshMsg struct{}

// OpenSnapshotsMsg opens the recorded snapshot list.
type OpenSnapshotsMsg struct{}

// SelectSnapshotMsg is sent when the user picks a recorded snapshot.
type SelectSnapshotMsg struct {
	ID int64
}

// StatusMsg updates the status bar text.
type StatusMsg struct {
	Text     string
	IsError  bool
	Duration time.Duration
}

// ExportCompleteMsg is sent when the tree was written to a file.
type ExportCompleteMsg struct {
	Path   string
	Tables int
}

// ExportErrMsg is sent when an export fails.
type ExportErrMsg struct {
	Err error
}
