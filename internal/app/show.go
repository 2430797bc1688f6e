package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"market-flight/internal/telemetry"
)

// Show prints a frame table followed by a summary.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	frames, err := a.loadFrames(ctx, opts.In, opts.RunID)
	if err != nil {
		return err
	}
	defer a.flushMetrics()

	if len(frames) == 0 {
		fmt.Fprintln(a.Stdout, "no frames found")
		return nil
	}

	rows := frames
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	writer := tabwriter.NewWriter(a.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tT\tSpot\tIV\tHV\tX\tY\tZ\tRegime\tFlags")
	for i, f := range rows {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i,
			formatFloat(f.Timestamp, 2),
			formatFloat(f.Spot, 2),
			formatFloat(f.IV, 4),
			formatFloat(f.HV, 4),
			formatFloat(f.X, 3),
			formatFloat(f.Y, 3),
			formatFloat(f.Z, 3),
			f.Regime,
			strings.Join(f.FlagNames(), ","),
		)
	}
	writer.Flush()

	if len(rows) < len(frames) {
		fmt.Fprintf(a.Stdout, "... %d more frames\n", len(frames)-len(rows))
	}
	writeSummary(a.Stdout, telemetry.Summarize(frames))
	return nil
}

func writeSummary(w io.Writer, s telemetry.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Frames\t%d\n", s.Frames)
	fmt.Fprintf(tw, "Spot range\t%s - %s\n", formatFloat(s.MinSpot, 2), formatFloat(s.MaxSpot, 2))
	for _, r := range telemetry.Regimes {
		fmt.Fprintf(tw, "%s\t%d\n", r, s.ByRegime[r])
	}
	for _, f := range telemetry.Flags {
		fmt.Fprintf(tw, "%s\t%d\n", f, s.ByFlag[f])
	}
	if s.Breached() {
		fmt.Fprintf(tw, "First breach\tframe %d\n", s.FirstBreach)
	} else {
		fmt.Fprintln(tw, "First breach\tnone")
	}
	tw.Flush()
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
