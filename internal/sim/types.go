package sim

import (
	"time"

	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
)

// Iteration is the post-step state handed to observers at the coordinator.
// Index 0 is the initial condition.
type Iteration struct {
	Index    int
	Time     float64
	Ensemble *nbody.Ensemble
	Energy   metrics.Energy
}

// Metric accumulates a scalar over the run.
type Metric interface {
	Name() string
	Observe(ens *nbody.Ensemble, e metrics.Energy, t float64)
	Value() float64
	Reset()
}

// Observer receives every iteration. Observers must not modify the ensemble.
type Observer interface {
	OnIteration(it Iteration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(it Iteration)

func (f ObserverFunc) OnIteration(it Iteration) { f(it) }

type Config struct {
	Dt            float64
	EndTime       float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		EndTime:       1.0,
		ValidateState: true,
	}
}

type Result struct {
	Iterations  int
	Times       []float64
	Energies    []metrics.Energy
	Metrics     map[string]float64
	EnergyDrift float64
	Elapsed     time.Duration
}
