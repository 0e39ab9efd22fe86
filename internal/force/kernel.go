package force

import (
	"math"

	"github.com/san-kum/clustersim/internal/nbody"
)

// Contribution writes the per-unit-mass acceleration da and jerk dj that
// particle j exerts on particle i. rji and vji are scratch buffers of len dim.
func Contribution(posI, posJ, velI, velJ, rji, vji, da, dj []float64) {
	r2, rv := 0.0, 0.0
	for k := range rji {
		rji[k] = posJ[k] - posI[k]
		vji[k] = velJ[k] - velI[k]
		r2 += rji[k] * rji[k]
		rv += rji[k] * vji[k]
	}

	r3 := math.Sqrt(r2) * r2
	f := 3 * (rv / r2)
	for k := range rji {
		da[k] = rji[k] / r3
		dj[k] = (vji[k] - f*rji[k]) / r3
	}
}

// Evaluator holds per-dimension scratch so repeated evaluations do not allocate.
type Evaluator struct {
	rji, vji []float64
	da, dj   []float64
	xi, vi   []float64
	ai, ji   []float64
}

func New() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) ensureScratch(dim int) {
	if len(e.rji) != dim {
		e.rji = make([]float64, dim)
		e.vji = make([]float64, dim)
		e.da = make([]float64, dim)
		e.dj = make([]float64, dim)
		e.xi = make([]float64, dim)
		e.vi = make([]float64, dim)
		e.ai = make([]float64, dim)
		e.ji = make([]float64, dim)
	}
}

// Evaluate zeroes acc and jerk and accumulates every pairwise interaction,
// visiting each unordered pair once.
func (e *Evaluator) Evaluate(mass []float64, pos, vel, acc, jerk nbody.Field) {
	n, dim := pos.Len(), pos.Dim()
	e.ensureScratch(dim)
	acc.Zero()
	jerk.Zero()

	for i := 0; i < n; i++ {
		pi, vi := pos.Vec(i), vel.Vec(i)
		ai, ji := acc.Vec(i), jerk.Vec(i)

		for j := i + 1; j < n; j++ {
			Contribution(pi, pos.Vec(j), vi, vel.Vec(j), e.rji, e.vji, e.da, e.dj)

			aj, jj := acc.Vec(j), jerk.Vec(j)
			for k := 0; k < dim; k++ {
				ai[k] += mass[j] * e.da[k]
				ji[k] += mass[j] * e.dj[k]
				aj[k] -= mass[i] * e.da[k]
				jj[k] -= mass[i] * e.dj[k]
			}
		}
	}
}

// EvaluateShard zeroes s.Acc and s.Jerk and fills them for every slot in the
// shard. The i-side components inside the shard are read from the scattered
// s.Pos/s.Vel, the rest from the broadcast global pos/vel.
func (e *Evaluator) EvaluateShard(mass []float64, pos, vel nbody.Field, s *nbody.Shard) {
	if s.Len() == 0 {
		return
	}
	n, dim := pos.Len(), pos.Dim()
	e.ensureScratch(dim)
	for k := range s.Acc {
		s.Acc[k] = 0
		s.Jerk[k] = 0
	}

	first, last := s.Lo/dim, (s.Hi()-1)/dim
	for i := first; i <= last; i++ {
		for k := 0; k < dim; k++ {
			slot := i*dim + k
			if s.Contains(slot) {
				e.xi[k], e.vi[k] = s.Pos[slot-s.Lo], s.Vel[slot-s.Lo]
			} else {
				e.xi[k], e.vi[k] = pos.At(i, k), vel.At(i, k)
			}
			e.ai[k], e.ji[k] = 0, 0
		}

		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			Contribution(e.xi, pos.Vec(j), e.vi, vel.Vec(j), e.rji, e.vji, e.da, e.dj)
			for k := 0; k < dim; k++ {
				e.ai[k] += mass[j] * e.da[k]
				e.ji[k] += mass[j] * e.dj[k]
			}
		}

		for k := 0; k < dim; k++ {
			if slot := i*dim + k; s.Contains(slot) {
				s.Acc[slot-s.Lo] += e.ai[k]
				s.Jerk[slot-s.Lo] += e.ji[k]
			}
		}
	}
}
