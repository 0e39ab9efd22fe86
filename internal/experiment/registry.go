package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/plummer"
	"github.com/san-kum/clustersim/internal/sim"
)

// Generator builds the initial ensemble for a validated configuration.
type Generator func(cfg *config.Config) (*nbody.Ensemble, error)

type Registry struct {
	generators map[string]Generator
	metrics    map[string]func() sim.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		generators: make(map[string]Generator),
		metrics:    make(map[string]func() sim.Metric),
	}

	r.generators["plummer"] = func(cfg *config.Config) (*nbody.Ensemble, error) {
		return plummer.Plummer(cfg.Seed, cfg.N, cfg.Dim, cfg.TotalMass, cfg.Radius)
	}
	r.generators["binary"] = func(cfg *config.Config) (*nbody.Ensemble, error) {
		return plummer.Binary(cfg.Dim)
	}
	r.generators["single"] = func(cfg *config.Config) (*nbody.Ensemble, error) {
		return plummer.Single(cfg.Dim)
	}

	r.metrics["energy_drift"] = func() sim.Metric { return metrics.NewEnergyDrift() }
	r.metrics["momentum_drift"] = func() sim.Metric { return metrics.NewMomentumDrift() }
	r.metrics["virial_ratio"] = func() sim.Metric { return metrics.NewVirial() }

	return r
}

// Register adds or replaces an initial-condition generator.
func (r *Registry) Register(name string, g Generator) {
	r.generators[name] = g
}

func (r *Registry) InitialConditions(cfg *config.Config) (*nbody.Ensemble, error) {
	fn, ok := r.generators[cfg.InitialConditions]
	if !ok {
		return nil, fmt.Errorf("unknown initial conditions: %s", cfg.InitialConditions)
	}
	return fn(cfg)
}

func (r *Registry) ListInitialConditions() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics() []sim.Metric {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]sim.Metric, 0, len(names))
	for _, name := range names {
		out = append(out, r.metrics[name]())
	}
	return out
}
