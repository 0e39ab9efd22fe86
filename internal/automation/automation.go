// Package automation runs batches of cluster simulations: scripted
// scenarios loaded from YAML and one-parameter sweeps.
package automation

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/experiment"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/storage"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Scenario is a named sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset (or the defaults) and overrides the keys
// present in Config, using the same names as a config file.
type ScenarioStep struct {
	Name   string    `yaml:"name"`
	Preset string    `yaml:"preset"`
	Config yaml.Node `yaml:"config"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	return &sc, nil
}

// Resolve builds the launch configuration of the step.
func (s *ScenarioStep) Resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		if cfg = config.GetPreset(s.Preset); cfg == nil {
			return nil, &nbody.ConfigError{Field: "preset", Value: s.Preset, Reason: "unknown preset"}
		}
	}
	if !s.Config.IsZero() {
		if err := s.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("step %s: %w", s.Name, err)
		}
	}
	return cfg, nil
}

// Outcome summarizes one run of a batch.
type Outcome struct {
	Name        string
	Value       float64
	RunID       string
	Seed        uint64
	Iterations  int
	EnergyDrift float64
	Virial      float64
	Elapsed     time.Duration
}

// Runner executes batches, recording every run in store when it is set.
type Runner struct {
	store    *storage.Store
	registry *experiment.Registry
	log      logr.Logger
}

func NewRunner(st *storage.Store, log logr.Logger) *Runner {
	return &Runner{store: st, registry: experiment.NewRegistry(), log: log}
}

func (r *Runner) run(ctx context.Context, cfg config.Config) (Outcome, error) {
	ex := experiment.New(cfg, r.log).WithRegistry(r.registry)
	if r.store != nil {
		ex.WithStore(r.store)
	}
	rep, err := ex.Run(ctx)
	if err != nil {
		return Outcome{}, err
	}
	res := rep.Result
	return Outcome{
		RunID:       rep.RunID,
		Seed:        rep.Seed,
		Iterations:  res.Iterations,
		EnergyDrift: res.EnergyDrift,
		Virial:      res.Metrics["virial_ratio"],
		Elapsed:     res.Elapsed,
	}, nil
}

// RunScenario runs the steps in order and stops at the first failure,
// returning the outcomes of the steps that completed.
func (r *Runner) RunScenario(ctx context.Context, sc *Scenario) ([]Outcome, error) {
	results := make([]Outcome, 0, len(sc.Steps))
	for i := range sc.Steps {
		step := &sc.Steps[i]
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		r.log.Info("scenario step", "scenario", sc.Name, "step", name, "index", i+1, "of", len(sc.Steps))

		cfg, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		out, err := r.run(ctx, *cfg)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		out.Name = name
		results = append(results, out)
	}
	return results, nil
}

// SweepParams lists the parameters a sweep can vary.
var SweepParams = []string{"dt", "n", "workers", "radius", "end_time", "seed"}

// Sweep varies one parameter of Base over Values. Unless the seed itself is
// swept, every point starts from the same initial conditions.
type Sweep struct {
	Base     config.Config
	Param    string
	Values   []float64
	Parallel int
}

func apply(cfg *config.Config, param string, v float64) error {
	switch param {
	case "dt":
		cfg.Dt = v
	case "n", "workers":
		if err := checkInteger(param, v, math.MaxInt32); err != nil {
			return err
		}
		if param == "n" {
			cfg.N = int(v)
		} else {
			cfg.Workers = int(v)
		}
	case "radius":
		cfg.Radius = v
	case "end_time":
		cfg.EndTime = v
	case "seed":
		if err := checkInteger(param, v, math.MaxUint64); err != nil {
			return err
		}
		if v < 0 {
			return &nbody.ConfigError{Field: "sweep value", Value: v, Reason: "seed must not be negative"}
		}
		cfg.Seed = uint64(v)
	default:
		return &nbody.ConfigError{Field: "sweep parameter", Value: param, Reason: fmt.Sprintf("must be one of %v", SweepParams)}
	}
	return nil
}

// checkInteger rejects sweep values that would not convert exactly to the
// integer field they set.
func checkInteger(param string, v, limit float64) error {
	if v != math.Trunc(v) || math.Abs(v) >= limit {
		return &nbody.ConfigError{Field: "sweep value", Value: v, Reason: fmt.Sprintf("%s must be an integer below %g", param, limit)}
	}
	return nil
}

// RunSweep runs up to Parallel points at a time. Every configuration is
// validated before the first run starts; the first failure cancels the rest.
func (r *Runner) RunSweep(ctx context.Context, sw Sweep) ([]Outcome, error) {
	if len(sw.Values) == 0 {
		return nil, &nbody.ConfigError{Field: "sweep values", Value: 0, Reason: "need at least one value"}
	}
	base := sw.Base
	if base.Seed == 0 && sw.Param != "seed" {
		base.Seed = uint64(time.Now().UnixNano())
	}

	cfgs := make([]config.Config, len(sw.Values))
	for i, v := range sw.Values {
		cfgs[i] = base
		if err := apply(&cfgs[i], sw.Param, v); err != nil {
			return nil, err
		}
		if err := cfgs[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s=%g: %w", sw.Param, v, err)
		}
	}

	results := make([]Outcome, len(cfgs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(sw.Parallel, 1))
	for i := range cfgs {
		g.Go(func() error {
			out, err := r.run(ctx, cfgs[i])
			if err != nil {
				return fmt.Errorf("%s=%g: %w", sw.Param, sw.Values[i], err)
			}
			out.Name = fmt.Sprintf("%s=%g", sw.Param, sw.Values[i])
			out.Value = sw.Values[i]
			results[i] = out
			r.log.V(1).Info("sweep point done", "param", sw.Param, "value", sw.Values[i], "drift", out.EnergyDrift)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
