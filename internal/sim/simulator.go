package sim

import (
	"context"
	"math"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/clustersim/internal/hermite"
	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
)

// Simulator drives a Hermite stepper from t = 0 to the configured end time.
type Simulator struct {
	stepper   *hermite.Stepper
	metrics   []Metric
	observers []Observer
	log       logr.Logger
}

func New(stepper *hermite.Stepper) *Simulator {
	return &Simulator{
		stepper:   stepper,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		log:       stepper.Domain().Log,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// iterationSlack is relative to endTime/dt. It absorbs the rounding of the
// division so that 1.0/0.1 = 10.000000000000002 yields 10 iterations, not 11.
const iterationSlack = 1e-12

// Iterations is the number of steps needed to reach endTime: ceil(endTime/dt),
// and at least one for any positive endTime.
func Iterations(endTime, dt float64) int {
	if dt <= 0 || endTime <= 0 {
		return 0
	}
	r := endTime / dt
	return max(int(math.Ceil(r-r*iterationSlack)), 1)
}

// Run integrates ens in place. The loop is driven by an integer counter, not
// by accumulating time, and stops after Iterations(cfg.EndTime, cfg.Dt) steps.
func (s *Simulator) Run(ctx context.Context, ens *nbody.Ensemble, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	steps := Iterations(cfg.EndTime, cfg.Dt)
	result := &Result{
		Times:    make([]float64, 0, steps+1),
		Energies: make([]metrics.Energy, 0, steps+1),
		Metrics:  make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	if err := s.stepper.Init(ctx, ens); err != nil {
		return result, &nbody.RunError{Iteration: 0, Time: 0, Err: err}
	}
	s.notify(result, 0, 0, ens)
	s.log.V(1).Info("run started", "iterations", steps, "dt", cfg.Dt, "endTime", cfg.EndTime)

	for i := 1; i <= steps; i++ {
		t := float64(i) * cfg.Dt
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := s.stepper.Step(ctx, ens); err != nil {
			return result, &nbody.RunError{Iteration: i, Time: t, Err: err}
		}
		if cfg.ValidateState && !ens.IsValid() {
			return result, &nbody.RunError{Iteration: i, Time: t, Err: nbody.ErrInvalidState}
		}

		result.Iterations++
		s.notify(result, i, t, ens)
	}

	if n := len(result.Energies); n > 0 {
		result.EnergyDrift = metrics.RelativeDrift(result.Energies[n-1].Total, result.Energies[0].Total)
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Elapsed = time.Since(start)

	s.log.V(1).Info("run finished", "iterations", result.Iterations, "energyDrift", result.EnergyDrift, "elapsed", result.Elapsed)
	return result, nil
}

func (s *Simulator) notify(result *Result, i int, t float64, ens *nbody.Ensemble) {
	e := metrics.Measure(ens)
	result.Times = append(result.Times, t)
	result.Energies = append(result.Energies, e)

	for _, m := range s.metrics {
		m.Observe(ens, e, t)
	}
	it := Iteration{Index: i, Time: t, Ensemble: ens, Energy: e}
	for _, obs := range s.observers {
		obs.OnIteration(it)
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if !(cfg.Dt > 0) {
		return &nbody.ConfigError{Field: "dt", Value: cfg.Dt, Reason: "must be positive"}
	}
	if !(cfg.EndTime > 0) {
		return &nbody.ConfigError{Field: "end time", Value: cfg.EndTime, Reason: "must be positive"}
	}
	if cfg.Dt != s.stepper.Dt() {
		return &nbody.ConfigError{Field: "dt", Value: cfg.Dt, Reason: "does not match the stepper"}
	}
	return nil
}
