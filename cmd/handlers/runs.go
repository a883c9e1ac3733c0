package handlers

import (
	"context"
	"fmt"
	"os"

	"curateai/internal/store"

	"github.com/spf13/cobra"
)

// NewRunsCmd creates the run-history command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		Run:   showRuns,
	}

	cmd.Flags().Int("limit", 10, "Number of runs to show")

	return cmd
}

func showRuns(cmd *cobra.Command, _ []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	runs, err := st.RecentRuns(context.Background(), limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		os.Exit(1)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %s  %-9s  %.1fs  config=%s",
			run.StartedAt.Format("2006-01-02 15:04"),
			run.ID[:8],
			run.Status,
			run.DurationSeconds,
			run.ConfigHash,
		)
		if run.Error != "" {
			line += fmt.Sprintf("  error=%s", run.Error)
		}
		fmt.Println(line)
	}
}
