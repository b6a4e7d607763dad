package app

import appmsg "github.com/sadopc/dbmeta/internal/msg"

// Aliases for the shared pane messages used throughout this package.
type (
	Pane              = appmsg.Pane
	SnapshotLoadedMsg = appmsg.SnapshotLoadedMsg
	SnapshotErrMsg    = appmsg.SnapshotErrMsg
	RefreshMsg        = appmsg.RefreshMsg
	OpenSnapshotsMsg  = appmsg.OpenSnapshotsMsg
	SelectSnapshotMsg = appmsg.SelectSnapshotMsg
	StatusMsg         = appmsg.StatusMsg
	ExportCompleteMsg = appmsg.ExportCompleteMsg
	ExportErrMsg      = appmsg.ExportErrMsg
)

const (
	PaneTree   = appmsg.PaneTree
	PaneDetail = appmsg.PaneDetail
)
