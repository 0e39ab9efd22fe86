package analysis

import (
	"context"
	"math"

	"github.com/go-logr/logr"
	"github.com/san-kum/clustersim/internal/hermite"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/shard"
	"github.com/san-kum/clustersim/internal/sim"
	"gonum.org/v1/gonum/floats"
)

// renormalizeAt bounds the phase-space separation so it stays in the
// linear regime.
const renormalizeAt = 1e-3

// Lyapunov estimates the largest Lyapunov exponent of ens by the
// trajectory separation method:
//
//	λ ≈ (1/t) Σ ln(|δ(t)| / |δ(0)|)
//
// with the perturbed copy pulled back to distance perturbation whenever the
// separation exceeds renormalizeAt. ens is not modified.
func Lyapunov(ctx context.Context, ens *nbody.Ensemble, dt, duration, perturbation float64) (float64, error) {
	if !(perturbation > 0) {
		return 0, &nbody.ConfigError{Field: "perturbation", Value: perturbation, Reason: "must be positive"}
	}
	dom, err := nbody.NewDomain(ens.N, ens.Dim, 1, logr.Discard())
	if err != nil {
		return 0, err
	}

	ref, pert := ens.Clone(), ens.Clone()
	pert.Pos.Raw()[0] += perturbation

	refStep, err := hermite.New(dom, shard.NewLocal(dom), dt)
	if err != nil {
		return 0, err
	}
	pertStep, err := hermite.New(dom, shard.NewLocal(dom), dt)
	if err != nil {
		return 0, err
	}

	steps := sim.Iterations(duration, dt)
	if steps == 0 {
		return 0, nil
	}
	sumLog, sep := 0.0, perturbation
	for i := 0; i < steps; i++ {
		if err := refStep.Step(ctx, ref); err != nil {
			return 0, err
		}
		if err := pertStep.Step(ctx, pert); err != nil {
			return 0, err
		}

		sep = separation(ref, pert)
		if sep > renormalizeAt {
			sumLog += math.Log(sep / perturbation)
			pullBack(ref, pert, perturbation/sep)
			sep = perturbation
			if err := pertStep.Init(ctx, pert); err != nil {
				return 0, err
			}
		}
	}
	if sep > 0 {
		sumLog += math.Log(sep / perturbation)
	}
	return sumLog / (float64(steps) * dt), nil
}

// separation is the Euclidean distance between two ensembles in phase space.
func separation(a, b *nbody.Ensemble) float64 {
	dp := floats.Distance(a.Pos.Raw(), b.Pos.Raw(), 2)
	dv := floats.Distance(a.Vel.Raw(), b.Vel.Raw(), 2)
	return math.Hypot(dp, dv)
}

// pullBack moves b towards a so that their separation shrinks by scale.
func pullBack(a, b *nbody.Ensemble, scale float64) {
	for _, pair := range [][2][]float64{{a.Pos.Raw(), b.Pos.Raw()}, {a.Vel.Raw(), b.Vel.Raw()}} {
		ref, p := pair[0], pair[1]
		for i := range p {
			p[i] = ref[i] + (p[i]-ref[i])*scale
		}
	}
}
