package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sadopc/dbmeta/internal/adapter"
	"github.com/sadopc/dbmeta/internal/app"
	"github.com/sadopc/dbmeta/internal/audit"
	"github.com/sadopc/dbmeta/internal/history"
	"github.com/sadopc/dbmeta/internal/store"
	"github.com/sadopc/dbmeta/internal/ui/historybrowser"
)

func newInstanceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "instance [dsn]",
		Short: "Print the server version, roles and user databases",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.connection(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), e.flags.timeout)
			defer cancel()

			drv, err := adapter.Open(ctx, cfg, e.options())
			if err != nil {
				return err
			}
			defer drv.Close()

			start := time.Now()
			inst, err := drv.SyncInstance(ctx)
			e.logAudit("sync_instance", cfg, start, 0, err)
			if err != nil {
				return err
			}
			e.log.WithFields(logrus.Fields{
				"engine":    cfg.Engine,
				"version":   inst.Version,
				"databases": len(inst.Databases),
			}).Debug("instance synced")
			return e.emit(inst)
		},
	}
}

func newDatabaseCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "database [dsn]",
		Short: "Print the metadata tree of one database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.connection(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), e.flags.timeout)
			defer cancel()

			drv, err := adapter.Open(ctx, cfg, e.options())
			if err != nil {
				return err
			}
			defer drv.Close()

			db, _, err := e.syncDatabase(ctx, cfg, drv)
			if err != nil {
				return err
			}
			return e.emit(db)
		},
	}
}

func newBrowseCmd(e *env) *cobra.Command {
	var (
		snapshotID int64
		latest     bool
	)

	cmd := &cobra.Command{
		Use:   "browse [dsn]",
		Short: "Browse a metadata tree in the terminal",
		Long: `browse syncs one database and opens it in a terminal tree browser.
With --snapshot it opens a recorded snapshot instead and needs no connection.
With --latest it opens the newest successful snapshot of the target without
connecting to it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := e.format()
			if err != nil {
				return err
			}
			opts := app.Options{
				ExportDir:    ".",
				ExportFormat: format,
				Theme:        e.cfg.Theme,
				SyncTimeout:  e.flags.timeout,
			}
			if e.hist != nil {
				opts.Snapshots = e.hist
			}

			if snapshotID > 0 || latest {
				opts.Database, opts.Engine, opts.Source, err = e.storedSnapshot(args, snapshotID)
				if err != nil {
					return err
				}
				return e.runBrowser(opts)
			}

			cfg, err := e.connection(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), e.flags.timeout)
			defer cancel()

			drv, err := adapter.Open(ctx, cfg, e.options())
			if err != nil {
				return err
			}
			defer drv.Close()

			db, took, err := e.syncDatabase(ctx, cfg, drv)
			if err != nil {
				return err
			}
			opts.Engine = cfg.Engine
			opts.Database = db
			opts.Source = "live"
			opts.Duration = took
			opts.Loader = func(ctx context.Context) (*store.DatabaseSchemaMetadata, error) {
				db, _, err := e.syncDatabase(ctx, cfg, drv)
				return db, err
			}
			return e.runBrowser(opts)
		},
	}
	cmd.Flags().Int64Var(&snapshotID, "snapshot", 0, "Open the recorded snapshot with this id")
	cmd.Flags().BoolVar(&latest, "latest", false, "Open the newest successful snapshot of the target")
	cmd.MarkFlagsMutuallyExclusive("snapshot", "latest")
	return cmd
}

// storedSnapshot loads a tree from the history: snapshot id when id > 0,
// otherwise the newest successful snapshot of the connection args resolve to.
func (e *env) storedSnapshot(args []string, id int64) (*store.DatabaseSchemaMetadata, adapter.Engine, string, error) {
	if e.hist == nil {
		return nil, "", "", fmt.Errorf("snapshot history is disabled")
	}
	if id > 0 {
		db, err := e.hist.Get(id)
		if err != nil {
			return nil, "", "", fmt.Errorf("snapshot #%d: %w", id, err)
		}
		engine, _ := adapter.ParseEngine(e.flags.engine)
		return db, engine, fmt.Sprintf("snapshot #%d", id), nil
	}

	cfg, err := e.connection(args)
	if err != nil {
		return nil, "", "", err
	}
	db, err := e.hist.Latest(string(cfg.Engine), cfg.Database)
	if err != nil {
		return nil, "", "", fmt.Errorf("latest snapshot of %s: %w", audit.Redact(cfg), err)
	}
	return db, cfg.Engine, "latest snapshot", nil
}

// runBrowser blocks until the browser exits. Log output is muted while the
// program owns the terminal.
func (e *env) runBrowser(opts app.Options) error {
	out := e.log.Out
	e.log.SetOutput(io.Discard)
	defer e.log.SetOutput(out)

	p := tea.NewProgram(
		app.New(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running browser: %w", err)
	}
	return nil
}

func newSnapshotsCmd(e *env) *cobra.Command {
	var (
		limit    int
		search   string
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List recorded database syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.hist == nil {
				return fmt.Errorf("snapshot history is disabled")
			}
			if clearAll {
				if err := e.hist.Clear(); err != nil {
					return err
				}
				e.log.Info("snapshot history cleared")
				return nil
			}

			var (
				entries []history.Entry
				err     error
			)
			if search != "" {
				entries, err = e.hist.Search("%"+search+"%", limit)
			} else {
				entries, err = e.hist.Recent(limit)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tENGINE\tDATABASE\tTABLES\tDURATION\tSYNCED\tSTATUS")
			for _, en := range entries {
				status := "ok"
				if en.IsError {
					status = "failed"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%dms\t%s\t%s\n",
					en.ID, en.Engine, en.DatabaseName, en.TableCount, en.DurationMS,
					historybrowser.RelativeTime(en.SyncedAt), status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	cmd.Flags().StringVar(&search, "search", "", "Only entries whose database or engine contains this text")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all recorded snapshots")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a recorded snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.hist == nil {
				return fmt.Errorf("snapshot history is disabled")
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid snapshot id %q", args[0])
			}
			db, err := e.hist.Get(id)
			if err != nil {
				return fmt.Errorf("snapshot #%d: %w", id, err)
			}
			return e.emit(db)
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dbmeta %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nSupported engines:")
			for _, name := range adapter.Registered() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
		},
	}
}

// syncDatabase runs one database sync and records it in the audit log and,
// with --record, the snapshot history.
func (e *env) syncDatabase(ctx context.Context, cfg adapter.ConnectionConfig, drv adapter.Driver) (*store.DatabaseSchemaMetadata, time.Duration, error) {
	start := time.Now()
	db, err := drv.SyncDatabase(ctx)
	took := time.Since(start)

	tables := 0
	if db != nil {
		tables = len(db.Tables())
	}
	e.logAudit("sync_database", cfg, start, tables, err)

	if e.flags.record && e.hist != nil {
		entry, herr := history.NewEntry(string(cfg.Engine), cfg.Database, db, start, took, err)
		if herr == nil {
			_, herr = e.hist.Add(entry)
		}
		if herr != nil {
			e.log.WithError(herr).Warn("could not record snapshot")
		}
	}

	if err != nil {
		return nil, took, err
	}
	e.log.WithFields(logrus.Fields{
		"engine":   cfg.Engine,
		"database": cfg.Database,
		"tables":   tables,
		"took":     took.String(),
	}).Info("database synced")
	return db, took, nil
}

func (e *env) logAudit(op string, cfg adapter.ConnectionConfig, start time.Time, tables int, err error) {
	if e.audit == nil {
		return
	}
	e.audit.Log(audit.NewEntry(op, cfg, start, tables, err))
}
