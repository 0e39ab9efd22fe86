// Package plummer generates initial conditions: the Plummer sphere used for
// globular cluster runs, plus two trivial reference configurations.
package plummer

import (
	"math"

	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext/prng"
)

// heggieScale converts Plummer model units to standard (Heggie) N-body units.
const heggieScale = 16.0 / (3.0 * math.Pi)

// speedEnvelope bounds q²(1-q²)^3.5 on [0, 1] for rejection sampling.
const speedEnvelope = 0.1

// Plummer samples n equal-mass particles from a Plummer sphere of total mass
// totalMass and scale radius radius. The same seed always yields the same
// ensemble. The result is shifted to the centre-of-mass frame.
func Plummer(seed uint64, n, dim int, totalMass, radius float64) (*nbody.Ensemble, error) {
	if !(totalMass > 0) {
		return nil, &nbody.ConfigError{Field: "total mass", Value: totalMass, Reason: "must be positive"}
	}
	if !(radius > 0) {
		return nil, &nbody.ConfigError{Field: "radius", Value: radius, Reason: "must be positive"}
	}
	ens, err := nbody.NewEnsemble(n, dim)
	if err != nil {
		return nil, err
	}

	src := prng.NewMT19937()
	src.Seed(seed)
	rng := rand.New(src)

	dir := make([]float64, dim)
	velScale := math.Sqrt(heggieScale)
	for i := 0; i < n; i++ {
		ens.Mass[i] = totalMass / float64(n)

		r := radius / math.Sqrt(math.Pow(openUnit(rng), -2.0/3.0)-1)
		direction(rng, dir)
		floats.ScaleTo(ens.Pos.Vec(i), r/heggieScale, dir)

		v := speed(rng) * math.Sqrt2 * math.Pow(1+r*r, -0.25)
		direction(rng, dir)
		floats.ScaleTo(ens.Vel.Vec(i), v*velScale, dir)
	}

	CenterOfMassAdjust(ens)
	return ens, nil
}

// speed draws q in [0, 1] with density proportional to q²(1-q²)^3.5.
func speed(rng *rand.Rand) float64 {
	for {
		q := rng.Float64()
		y := speedEnvelope * rng.Float64()
		if y <= q*q*math.Pow(1-q*q, 3.5) {
			return q
		}
	}
}

// direction fills dst with a uniformly distributed unit vector.
func direction(rng *rand.Rand, dst []float64) {
	for {
		for k := range dst {
			dst[k] = rng.NormFloat64()
		}
		if norm := floats.Norm(dst, 2); norm > 0 {
			floats.Scale(1/norm, dst)
			return
		}
	}
}

// openUnit returns a uniform sample in (0, 1); the radius formula diverges at 0.
func openUnit(rng *rand.Rand) float64 {
	for {
		if u := rng.Float64(); u > 0 {
			return u
		}
	}
}

// CenterOfMassAdjust shifts positions and velocities so that the
// centre of mass sits at rest at the origin.
func CenterOfMassAdjust(ens *nbody.Ensemble) {
	pos, vel := metrics.CenterOfMass(ens)
	for i := 0; i < ens.N; i++ {
		floats.Sub(ens.Pos.Vec(i), pos)
		floats.Sub(ens.Vel.Vec(i), vel)
	}
}

// Binary returns two unit masses one unit apart along the first axis, at
// rest, already in the centre-of-mass frame.
func Binary(dim int) (*nbody.Ensemble, error) {
	ens, err := nbody.NewEnsemble(2, dim)
	if err != nil {
		return nil, err
	}
	ens.Mass[0], ens.Mass[1] = 1, 1
	ens.Pos.Set(0, 0, -0.5)
	ens.Pos.Set(1, 0, 0.5)
	return ens, nil
}

// Single returns one unit mass at rest at the origin.
func Single(dim int) (*nbody.Ensemble, error) {
	ens, err := nbody.NewEnsemble(1, dim)
	if err != nil {
		return nil, err
	}
	ens.Mass[0] = 1
	return ens, nil
}
