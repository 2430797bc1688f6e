package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-flight/internal/app"
)

var (
	showIn    string
	showRun   int64
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display frames and a summary from JSONL or a stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}

		opts := app.ShowOptions{
			In:    showIn,
			RunID: showRun,
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showIn, "in", "", "JSONL location: path, - for stdin, or http(s) URL")
	showCmd.Flags().Int64Var(&showRun, "run", 0, "Stored run id")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of frames to display (0 for all)")
}
