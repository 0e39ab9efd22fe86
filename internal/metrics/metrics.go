package metrics

import (
	"math"

	"github.com/san-kum/clustersim/internal/nbody"
	"gonum.org/v1/gonum/floats"
)

// EnergyDrift tracks the largest relative total-energy error seen so far.
type EnergyDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(ens *nbody.Ensemble, en Energy, t float64) {
	if e.samples == 0 {
		e.initial = en.Total
	}
	e.samples++
	e.maxDrift = math.Max(e.maxDrift, RelativeDrift(en.Total, e.initial))
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}

// MomentumDrift tracks the largest deviation of total momentum from its
// initial value.
type MomentumDrift struct {
	name     string
	initial  []float64
	maxDrift float64
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(ens *nbody.Ensemble, en Energy, t float64) {
	p := Momentum(ens)
	if m.initial == nil {
		m.initial = p
		return
	}
	m.maxDrift = math.Max(m.maxDrift, floats.Distance(p, m.initial, 2))
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = nil
	m.maxDrift = 0
}

// Virial reports the last virial ratio 2K/|U|; 1 for a cluster in equilibrium.
type Virial struct {
	name  string
	ratio float64
}

func NewVirial() *Virial {
	return &Virial{name: "virial_ratio"}
}

func (v *Virial) Name() string { return v.name }

func (v *Virial) Observe(ens *nbody.Ensemble, en Energy, t float64) {
	if en.Potential == 0 {
		v.ratio = 0
		return
	}
	v.ratio = 2 * en.Kinetic / math.Abs(en.Potential)
}

func (v *Virial) Value() float64 { return v.ratio }
func (v *Virial) Reset()         { v.ratio = 0 }
