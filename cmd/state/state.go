// Package state implements the state command for inspecting and clearing
// the resumable checkpoint.
package state

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/finfetch/cmd/common"
	"github.com/jonesrussell/finfetch/internal/checkpoint"
	"github.com/jonesrussell/finfetch/internal/domain"
)

// Command creates the state command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or clear the resumable checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(statsCommand())
	cmd.AddCommand(clearCommand())

	return cmd
}

// statsCommand shows the checkpoint counters and recorded downloads.
func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show checkpoint statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			store := checkpoint.New(deps.CheckpointPath(), deps.Logger)
			if loadErr := store.Load(); loadErr != nil {
				return loadErr
			}

			renderStats(store)
			return nil
		},
	}
}

// clearCommand discards the checkpoint.
func clearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard the checkpoint so the next run starts fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			if !yes {
				return fmt.Errorf("refusing to clear %s without --yes", deps.CheckpointPath())
			}

			store := checkpoint.New(deps.CheckpointPath(), deps.Logger)
			return store.Clear()
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing the checkpoint")

	return cmd
}

// renderStats prints the counters and per-record status table.
func renderStats(store *checkpoint.Store) {
	stats := store.Stats()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Counter", "Value"})
	t.AppendRow(table.Row{"Downloaded URLs", stats.TotalDownloaded})
	t.AppendRow(table.Row{"Visited pages", stats.TotalVisited})
	t.AppendRow(table.Row{"Filter iterations", stats.TotalFilterIterations})
	t.Render()

	records := store.Records()
	if len(records) == 0 {
		return
	}

	rt := table.NewWriter()
	rt.SetOutputMirror(os.Stdout)
	rt.SetStyle(table.StyleLight)
	rt.AppendHeader(table.Row{"URL", "Status", "Attempts", "Local path"})
	for _, rec := range records {
		rt.AppendRow(table.Row{rec.URL, rec.Status, rec.Attempts, localPath(rec)})
	}
	rt.Render()
}

func localPath(rec domain.DownloadRecord) string {
	if rec.LocalPath == nil {
		return ""
	}
	return *rec.LocalPath
}
