// Package organize implements the organize command, which re-buckets an
// existing download tree after classification rules change.
package organize

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/finfetch/cmd/common"
	"github.com/jonesrussell/finfetch/internal/classify"
	internalorganize "github.com/jonesrussell/finfetch/internal/organize"
	"github.com/jonesrussell/finfetch/internal/report"
)

// move is one planned relocation.
type move struct {
	from string
	to   string
}

// Command creates the organize command.
func Command() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Re-bucket downloaded files by classification",
		Long: `Recompute the company/year/period bucket for every downloaded file
and show where each would move. Files move only with --apply; the default
is a dry run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}
			return run(deps, apply)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "perform the moves instead of printing them")

	return cmd
}

func run(deps common.CommandDeps, apply bool) error {
	cfg := deps.Config
	log := deps.Logger
	root := cfg.Downloads.Directory

	summary, genErr := report.Generate(root)
	if genErr != nil {
		return genErr
	}

	classifier := classify.New(cfg.Company)
	organizer := internalorganize.New(classifier, cfg.Downloads.MaxFilenameLength)

	var moves []move
	for _, f := range summary.Files {
		target := organizer.Path(f.Filename, "")
		if filepath.ToSlash(target) == filepath.ToSlash(f.Path) {
			continue
		}
		moves = append(moves, move{from: f.Path, to: target})
	}

	if len(moves) == 0 {
		log.Info("all files already in their computed buckets", "files", summary.TotalFiles)
		return nil
	}

	renderMoves(moves, apply)

	if !apply {
		log.Info("dry run complete, rerun with --apply to move files", "moves", len(moves))
		return nil
	}

	for _, m := range moves {
		if err := relocate(root, m); err != nil {
			return err
		}
		log.Info("moved", "from", m.from, "to", m.to)
	}
	log.Info("reorganization complete", "moved", len(moves))
	return nil
}

// relocate moves one file, refusing to overwrite an existing target.
func relocate(root string, m move) error {
	src := filepath.Join(root, m.from)
	dst := filepath.Join(root, m.to)

	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("target already exists: %s", m.to)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", m.to, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", m.from, err)
	}
	return nil
}

// renderMoves prints the planned moves as a table.
func renderMoves(moves []move, apply bool) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	header := "Would move to"
	if apply {
		header = "Moving to"
	}
	t.AppendHeader(table.Row{"Current path", header})
	for _, m := range moves {
		t.AppendRow(table.Row{m.from, m.to})
	}
	t.Render()
}
