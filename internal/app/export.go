package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"market-flight/internal/telemetry"
)

var errTooFewPoints = errors.New("png export needs at least two frames")

// Export renders a sequence as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	frames, err := a.loadFrames(ctx, opts.In, opts.RunID)
	if err != nil {
		return err
	}
	defer a.flushMetrics()

	if len(frames) == 0 {
		a.Logger.Info().Msg("no frames found for export")
		return nil
	}

	downsampled := downsampleFrames(frames, opts.MaxPoints)
	a.Logger.Info().Int("total", len(frames)).Int("exported", len(downsampled)).Msg("exporting frames")

	if opts.CSVPath != "" {
		if err := writeFramesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(downsampled) < 2 {
			return errTooFewPoints
		}
		if err := writeFramesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleFrames(frames []telemetry.Frame, max int) []telemetry.Frame {
	if max <= 0 || len(frames) <= max {
		return frames
	}
	if max == 1 {
		return frames[:1]
	}

	result := make([]telemetry.Frame, 0, max)
	step := float64(len(frames)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(frames) {
			idx = len(frames) - 1
		}
		result = append(result, frames[idx])
	}
	return result
}

func writeFramesCSV(path string, frames []telemetry.Frame) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "spot", "iv", "hv", "x", "y", "z", "regime", "flags"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, f := range frames {
		record := []string{
			formatFloat(f.Timestamp, 4),
			formatFloat(f.Spot, 4),
			formatFloat(f.IV, 6),
			formatFloat(f.HV, 6),
			formatFloat(f.X, 6),
			formatFloat(f.Y, 6),
			formatFloat(f.Z, 6),
			f.Regime.String(),
			strings.Join(f.FlagNames(), "|"),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeFramesPNG(path string, frames []telemetry.Frame) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	t := make([]float64, len(frames))
	xs := make([]float64, len(frames))
	ys := make([]float64, len(frames))
	zs := make([]float64, len(frames))
	spot := make([]float64, len(frames))

	for i, f := range frames {
		t[i] = f.Timestamp
		xs[i] = f.X
		ys[i] = f.Y
		zs[i] = f.Z
		spot[i] = f.Spot
	}

	axisFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: axisFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Coordinates (x/y/z)",
			ValueFormatter: axisFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Spot",
			ValueFormatter: axisFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Airspeed (x)",
				XValues: t,
				YValues: xs,
				Style: chart.Style{
					StrokeWidth: 1.5,
					DotWidth:    3,
					DotColorProvider: func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
						return regimeColor(frames[index].Regime)
					},
				},
			},
			thresholdSeries("Cruise plane (x=1)", t, telemetry.CruiseThresholdX, telemetry.RegimeCruise),
			thresholdSeries("Rupture plane (x=3)", t, telemetry.RuptureThresholdX, telemetry.RegimeRupture),
			chart.ContinuousSeries{
				Name:    "Load (y)",
				XValues: t,
				YValues: ys,
			},
			chart.ContinuousSeries{
				Name:    "Wall proximity (z)",
				XValues: t,
				YValues: zs,
			},
			chart.ContinuousSeries{
				Name:    "Spot",
				XValues: t,
				YValues: spot,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// thresholdSeries draws a dashed horizontal line at level across the time range.
func thresholdSeries(name string, t []float64, level float64, regime telemetry.Regime) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: []float64{t[0], t[len(t)-1]},
		YValues: []float64{level, level},
		Style: chart.Style{
			StrokeColor:     regimeColor(regime),
			StrokeWidth:     1,
			StrokeDashArray: []float64{6, 4},
		},
	}
}

func regimeColor(r telemetry.Regime) drawing.Color {
	rgb := r.Color()
	return drawing.Color{
		R: uint8(rgb >> 16),
		G: uint8(rgb >> 8),
		B: uint8(rgb),
		A: 255,
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
