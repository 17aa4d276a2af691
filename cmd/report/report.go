// Package report implements the report command, which summarizes the
// organized download tree.
package report

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/finfetch/cmd/common"
	internalreport "github.com/jonesrussell/finfetch/internal/report"
)

// Command creates the report command.
func Command() *cobra.Command {
	var jsonPath string
	var listFiles bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize downloaded documents",
		Long: `Walk the download directory and print aggregate counts by company,
year, period and file type. Optionally write the full report as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}
			return run(deps, jsonPath, listFiles)
		},
	}

	cmd.Flags().StringVar(&jsonPath, "json", "", "also write the report to this JSON file")
	cmd.Flags().BoolVar(&listFiles, "files", false, "list every file instead of the summary")

	return cmd
}

func run(deps common.CommandDeps, jsonPath string, listFiles bool) error {
	root := deps.Config.Downloads.Directory

	summary, err := internalreport.Generate(root)
	if err != nil {
		return err
	}

	if summary.TotalFiles == 0 {
		deps.Logger.Info("no downloaded documents found", "root", root)
		return nil
	}

	renderer := internalreport.NewTableRenderer(nil)
	if listFiles {
		renderer.RenderFiles(summary)
	} else {
		renderer.RenderSummary(summary)
	}

	if jsonPath != "" {
		if saveErr := summary.Save(jsonPath); saveErr != nil {
			return saveErr
		}
		deps.Logger.Info("report written", "path", jsonPath)
	}
	return nil
}
