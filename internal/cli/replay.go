package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-flight/internal/app"
)

var (
	replayIn           string
	replayRun          int64
	replayLoops        int
	replaySpeed        float64
	replayPilot        string
	replayDeviationOut string
	replayFrom         int
	replayFlags        bool
	replayReverse      bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Play a sequence headlessly, optionally flying a pilot alongside it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayLoops < 0 {
			return fmt.Errorf("--loops must not be negative")
		}
		if replayFrom < 0 {
			return fmt.Errorf("--from must not be negative")
		}
		if replayReverse && !replayFlags {
			return fmt.Errorf("--reverse requires --flags")
		}

		opts := app.ReplayOptions{
			In:           replayIn,
			RunID:        replayRun,
			Loops:        replayLoops,
			Speed:        replaySpeed,
			Controls:     replayPilot,
			DeviationOut: replayDeviationOut,
			From:         replayFrom,
			FlagTour:     replayFlags,
			Reverse:      replayReverse,
		}

		return getApp().Replay(cmd.Context(), opts)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayIn, "in", "", "JSONL location: path, - for stdin, or http(s) URL")
	replayCmd.Flags().Int64Var(&replayRun, "run", 0, "Stored run id")
	replayCmd.Flags().IntVar(&replayLoops, "loops", 1, "Stop after this many passes (0 runs until interrupted)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Playback speed multiplier (defaults to config)")
	replayCmd.Flags().StringVar(&replayPilot, "pilot", "", "Held pilot controls, e.g. w,q")
	replayCmd.Flags().StringVar(&replayDeviationOut, "deviation-out", "", "JSONL path for the pilot deviation path")
	replayCmd.Flags().IntVar(&replayFrom, "from", 0, "Frame index to start from")
	replayCmd.Flags().BoolVar(&replayFlags, "flags", false, "Step through flagged frames instead of playing")
	replayCmd.Flags().BoolVar(&replayReverse, "reverse", false, "With --flags, step backwards")
}
