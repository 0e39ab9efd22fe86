package metrics

import (
	"math"

	"github.com/san-kum/clustersim/internal/nbody"
	"gonum.org/v1/gonum/floats"
)

// Energy is the diagnostic record taken once per iteration (G = 1).
type Energy struct {
	Kinetic   float64 `json:"kinetic"`
	Potential float64 `json:"potential"`
	Total     float64 `json:"total"`
}

// Measure computes kinetic, potential and total energy. It only reads mass,
// position and velocity.
func Measure(ens *nbody.Ensemble) Energy {
	ke := Kinetic(ens)
	pe := Potential(ens)
	return Energy{Kinetic: ke, Potential: pe, Total: ke + pe}
}

func Kinetic(ens *nbody.Ensemble) float64 {
	ke := 0.0
	for i := 0; i < ens.N; i++ {
		v := ens.Vel.Vec(i)
		ke += 0.5 * ens.Mass[i] * floats.Dot(v, v)
	}
	return ke
}

func Potential(ens *nbody.Ensemble) float64 {
	pe := 0.0
	for i := 0; i < ens.N; i++ {
		pi := ens.Pos.Vec(i)
		for j := i + 1; j < ens.N; j++ {
			pe -= ens.Mass[i] * ens.Mass[j] / floats.Distance(pi, ens.Pos.Vec(j), 2)
		}
	}
	return pe
}

// Momentum returns the total linear momentum Σ m_i v_i.
func Momentum(ens *nbody.Ensemble) []float64 {
	p := make([]float64, ens.Dim)
	for i := 0; i < ens.N; i++ {
		floats.AddScaled(p, ens.Mass[i], ens.Vel.Vec(i))
	}
	return p
}

// CenterOfMass returns the mass-weighted mean position and velocity.
func CenterOfMass(ens *nbody.Ensemble) (pos, vel []float64) {
	pos = make([]float64, ens.Dim)
	vel = make([]float64, ens.Dim)
	for i := 0; i < ens.N; i++ {
		floats.AddScaled(pos, ens.Mass[i], ens.Pos.Vec(i))
		floats.AddScaled(vel, ens.Mass[i], ens.Vel.Vec(i))
	}
	if m := ens.TotalMass(); m != 0 {
		floats.Scale(1/m, pos)
		floats.Scale(1/m, vel)
	}
	return pos, vel
}

// RelativeDrift is |e - e0| / |e0|, or 0 when e0 is 0.
func RelativeDrift(e, e0 float64) float64 {
	if e0 == 0 {
		return 0
	}
	return math.Abs(e-e0) / math.Abs(e0)
}
