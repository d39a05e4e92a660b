package cli

import (
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/poitiers-events/internal/history"
	"github.com/pfrederiksen/poitiers-events/internal/storage"
)

var (
	flagHistoryLimit int
	flagHistoryDB    string
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs recorded in the history database",
		RunE:  runHistory,
	}
	cmd.Flags().IntVar(&flagHistoryLimit, "limit", 10, "Number of runs to show")
	cmd.Flags().StringVar(&flagHistoryDB, "db", "", "History database (default from configuration)")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, format, err := setup()
	if err != nil {
		return err
	}

	path := cfg.HistoryDB
	if flagHistoryDB != "" {
		path = flagHistoryDB
	}
	if path == "" {
		return errors.New("no history database: set history_db in the configuration or pass --db")
	}
	path, err = storage.ExpandPath(path)
	if err != nil {
		return err
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close() // nolint:errcheck

	runs, err := store.Recent(cmd.Context(), flagHistoryLimit)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Run", "Generated at", "Collected", "Written", "Failed sources"})
	for _, run := range runs {
		failed := strings.Join(run.Failed(), ", ")
		if failed == "" {
			failed = "-"
		}
		t.AppendRow(table.Row{shortID(run.ID), run.GeneratedAt.Format("2006-01-02 15:04:05Z07:00"), run.Collected, run.Written, failed})
	}
	t.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
