package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"market-flight/internal/app"
	"market-flight/internal/generator"
)

// runFlags are shared by generate and scenario.
type runFlags struct {
	seed    uint64
	out     string
	label   string
	persist bool
}

func (r *runFlags) bind(fs *pflag.FlagSet) {
	fs.Uint64Var(&r.seed, "seed", 0, "Random seed (0 draws a fresh one)")
	fs.StringVarP(&r.out, "out", "o", "-", "JSONL output path (- for stdout)")
	fs.StringVar(&r.label, "label", "", "Label stored with the run")
	fs.BoolVar(&r.persist, "persist", false, "Persist the run to PostgreSQL")
}

func (r *runFlags) options() app.GenerateOptions {
	return app.GenerateOptions{Seed: r.seed, Out: r.out, Label: r.label, Persist: r.persist}
}

// levelFlags hold price levels shared by both generators.
type levelFlags struct {
	spot, atr, flip, putWall, callWall float64
}

func (l *levelFlags) bind(fs *pflag.FlagSet) {
	fs.Float64Var(&l.spot, "spot", 0, "Starting spot (defaults to config)")
	fs.Float64Var(&l.atr, "atr", 0, "Average true range (defaults to config)")
	fs.Float64Var(&l.flip, "flip", 0, "Gamma flip level (defaults to config)")
	fs.Float64Var(&l.putWall, "put-wall", 0, "Put wall level (defaults to config)")
	fs.Float64Var(&l.callWall, "call-wall", 0, "Call wall level (defaults to config)")
}

func overrideFloat(fs *pflag.FlagSet, name string, dst *float64, v float64) {
	if fs.Changed(name) {
		*dst = v
	}
}

var (
	walkRun    runFlags
	walkLevels levelFlags
	walkSteps  int
	walkIV     float64
	walkTarget float64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a free-walk telemetry sequence as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		fs := cmd.Flags()

		p := a.WalkParams()
		if fs.Changed("steps") {
			p.Steps = walkSteps
		}
		overrideFloat(fs, "spot", &p.StartSpot, walkLevels.spot)
		overrideFloat(fs, "atr", &p.ATR, walkLevels.atr)
		overrideFloat(fs, "flip", &p.Flip, walkLevels.flip)
		overrideFloat(fs, "put-wall", &p.PutWall, walkLevels.putWall)
		overrideFloat(fs, "call-wall", &p.CallWall, walkLevels.callWall)
		overrideFloat(fs, "iv", &p.StartIV, walkIV)
		overrideFloat(fs, "target-iv", &p.TargetIV, walkTarget)

		opts := walkRun.options()
		opts.Walk = p
		return a.Generate(cmd.Context(), opts)
	},
}

var (
	scenRun      runFlags
	scenLevels   levelFlags
	scenType     string
	scenIV       float64
	scenHV       float64
	scenFrames   int
	scenDuration float64
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Generate a scripted scenario (hold, false_breakdown, breakout, mean_revert)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		fs := cmd.Flags()

		p := a.ScenarioParams()
		if fs.Changed("type") {
			p.ScenarioType = generator.ScenarioType(scenType)
		}
		if fs.Changed("frames") {
			p.FrameCount = scenFrames
		}
		overrideFloat(fs, "spot", &p.Spot, scenLevels.spot)
		overrideFloat(fs, "atr", &p.ATR, scenLevels.atr)
		overrideFloat(fs, "flip", &p.Flip, scenLevels.flip)
		overrideFloat(fs, "put-wall", &p.PutWall, scenLevels.putWall)
		overrideFloat(fs, "call-wall", &p.CallWall, scenLevels.callWall)
		overrideFloat(fs, "iv", &p.IV, scenIV)
		overrideFloat(fs, "hv", &p.HV, scenHV)
		overrideFloat(fs, "duration", &p.DurationMinutes, scenDuration)

		opts := scenRun.options()
		opts.Scenario = p
		return a.Scenario(cmd.Context(), opts)
	},
}

func init() {
	gf := generateCmd.Flags()
	walkRun.bind(gf)
	walkLevels.bind(gf)
	gf.IntVar(&walkSteps, "steps", 0, "Number of frames (defaults to config)")
	gf.Float64Var(&walkIV, "iv", 0, "Starting implied volatility as a fraction")
	gf.Float64Var(&walkTarget, "target-iv", 0, "Implied volatility the walk reverts toward")

	sf := scenarioCmd.Flags()
	scenRun.bind(sf)
	scenLevels.bind(sf)
	sf.StringVar(&scenType, "type", "", "Scenario type (defaults to config)")
	sf.Float64Var(&scenIV, "iv", 0, "Implied volatility in percent")
	sf.Float64Var(&scenHV, "hv", 0, "Historical volatility in percent")
	sf.IntVar(&scenFrames, "frames", 0, "Number of frames (defaults to config)")
	sf.Float64Var(&scenDuration, "duration", 0, "Session length in minutes")
}
