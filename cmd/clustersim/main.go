package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/spf13/cobra"
)

// app holds the persistent flags shared by every command.
type app struct {
	dataDir   string
	verbosity int
}

// launchFlags are the flags of the commands that start a simulation.
type launchFlags struct {
	configFile    string
	preset        string
	ic            string
	seed          uint64
	n             int
	dim           int
	workers       int
	snapshotEvery int
	dt            float64
	end           float64
	mass          float64
	radius        float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "clustersim",
		Short:        "Hermite N-body integrator for star clusters",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.dataDir, "data", config.DefaultDataDir, "data directory")
	root.PersistentFlags().IntVar(&a.verbosity, "v", 0, "log verbosity")

	root.AddCommand(
		a.runCmd(),
		a.scenarioCmd(),
		a.sweepCmd(),
		a.listCmd(),
		a.plotCmd(),
		a.analyzeCmd(),
		a.exportCSVCmd(),
		a.exportJSONCmd(),
		a.snapshotCmd(),
		a.benchCmd(),
		a.presetsCmd(),
		a.liveCmd(),
	)
	return root
}

// logger writes structured log lines to stderr.
func (a *app) logger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(os.Stderr, prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: a.verbosity})
}

func (f *launchFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "", "config file (yaml, or gcfg with .ini/.gcfg)")
	fs.StringVar(&f.preset, "preset", "", "start from a named preset")
	fs.StringVar(&f.ic, "ic", config.DefaultIC, "initial conditions (plummer, binary, single)")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed (0 picks one from the clock)")
	fs.IntVar(&f.n, "n", config.DefaultN, "number of particles")
	fs.IntVar(&f.dim, "dim", config.DefaultDim, "spatial dimensions")
	fs.IntVar(&f.workers, "workers", config.DefaultWorkers, "number of force workers")
	fs.IntVar(&f.snapshotEvery, "snapshot-every", config.DefaultSnapshots, "iterations between snapshots (0 disables)")
	fs.Float64Var(&f.dt, "dt", config.DefaultDt, "time step")
	fs.Float64Var(&f.end, "end", config.DefaultEndTime, "end time")
	fs.Float64Var(&f.mass, "mass", config.DefaultMass, "total mass")
	fs.Float64Var(&f.radius, "radius", config.DefaultRadius, "Plummer scale radius")
}

// buildConfig layers, lowest first: defaults, preset, config file,
// positional [seed] N dt end, explicitly set flags.
func (a *app) buildConfig(cmd *cobra.Command, f *launchFlags, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.preset != "" {
		cfg = config.GetPreset(f.preset)
		if cfg == nil {
			return nil, &nbody.ConfigError{Field: "preset", Value: f.preset, Reason: fmt.Sprintf("available: %v", config.ListPresets())}
		}
	}
	if f.configFile != "" {
		if err := config.LoadInto(f.configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if err := applyPositional(cfg, args); err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("ic") {
		cfg.InitialConditions = f.ic
	}
	if fs.Changed("seed") {
		cfg.Seed = f.seed
	}
	if fs.Changed("n") {
		cfg.N = f.n
	}
	if fs.Changed("dim") {
		cfg.Dim = f.dim
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("snapshot-every") {
		cfg.SnapshotEvery = f.snapshotEvery
	}
	if fs.Changed("dt") {
		cfg.Dt = f.dt
	}
	if fs.Changed("end") {
		cfg.EndTime = f.end
	}
	if fs.Changed("mass") {
		cfg.TotalMass = f.mass
	}
	if fs.Changed("radius") {
		cfg.Radius = f.radius
	}
	if fs.Changed("data") || cfg.DataDir == "" {
		cfg.DataDir = a.dataDir
	}
	return cfg, nil
}

// applyPositional accepts the short form "N dt end" or "seed N dt end".
func applyPositional(cfg *config.Config, args []string) error {
	switch len(args) {
	case 0:
		return nil
	case 3, 4:
	default:
		return &nbody.ConfigError{Field: "arguments", Value: len(args), Reason: "expected [seed] N dt end"}
	}

	if len(args) == 4 {
		seed, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return &nbody.ConfigError{Field: "seed", Value: args[0], Reason: "not an unsigned integer"}
		}
		cfg.Seed = seed
		args = args[1:]
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return &nbody.ConfigError{Field: "N", Value: args[0], Reason: "not an integer"}
	}
	dt, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return &nbody.ConfigError{Field: "dt", Value: args[1], Reason: "not a number"}
	}
	end, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return &nbody.ConfigError{Field: "end_time", Value: args[2], Reason: "not a number"}
	}
	cfg.N, cfg.Dt, cfg.EndTime = n, dt, end
	return nil
}
