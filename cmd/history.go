package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fbzone/internal/config"
	"fbzone/internal/history"
	"fbzone/internal/ui"
)

var (
	flagLimit int
	flagClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent resolutions",
	RunE:  historyRun,
}

func init() {
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "l", 20, "Number of entries to show")
	historyCmd.Flags().BoolVar(&flagClear, "clear", false, "Delete all recorded entries")
}

func historyRun(cmd *cobra.Command, args []string) error {
	path, err := config.HistoryPath()
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	if flagClear {
		if err := store.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		return nil
	}

	entries, err := store.Recent(cmd.Context(), flagLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), entries)
	}
	ui.New(cmd.OutOrStdout()).History(entries)
	return nil
}
