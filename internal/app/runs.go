package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"market-flight/internal/storage"
)

// Runs lists recent stored runs, pruning older ones first when asked.
func (a *App) Runs(ctx context.Context, opts RunsOptions) error {
	store, closeStore, err := a.requireStore(ctx, "list runs")
	if err != nil {
		return err
	}
	defer closeStore()

	return a.listRuns(ctx, store, opts)
}

func (a *App) listRuns(ctx context.Context, store storage.RunStore, opts RunsOptions) error {
	if opts.PruneBefore != nil {
		deleted, err := store.DeleteRunsBefore(ctx, opts.PruneBefore.UTC())
		if err != nil {
			return err
		}
		a.Logger.Info().Int64("deleted", deleted).Time("before", *opts.PruneBefore).Msg("pruned runs")
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tCreated (UTC)\tLabel\tMode\tScenario\tSeed\tFrames\tFirst breach")
	for _, run := range runs {
		breach := "-"
		if run.FirstBreach != nil {
			breach = strconv.Itoa(*run.FirstBreach)
		}
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			run.ID,
			run.CreatedAt.UTC().Format(time.RFC3339),
			sanitizeInline(run.Label),
			run.Mode,
			run.ScenarioType,
			run.Seed,
			run.FrameCount,
			breach,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
