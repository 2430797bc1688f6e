package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-flight/internal/app"
)

var (
	runsLimit       int
	runsPruneBefore string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.RunsOptions{Limit: runsLimit}
		if runsPruneBefore != "" {
			before, err := time.Parse(time.RFC3339, runsPruneBefore)
			if err != nil {
				return fmt.Errorf("invalid --prune-before value: %w", err)
			}
			opts.PruneBefore = &before
		}

		return getApp().Runs(cmd.Context(), opts)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to display")
	runsCmd.Flags().StringVar(&runsPruneBefore, "prune-before", "", "Delete runs created before this RFC3339 timestamp first")
}
