package nbody

import (
	"github.com/go-logr/logr"
)

// Domain describes the topology of a run: particle count, dimensionality and
// the number of workers the N*DIM scalar slots are split across. It replaces
// any process-global rank/size bookkeeping and is passed explicitly to the
// force evaluator, the shard exchange and the stepper.
type Domain struct {
	N       int
	Dim     int
	Workers int
	Log     logr.Logger
}

// NewDomain validates the topology. (N*DIM) mod Workers must be zero so every
// shard has the same length.
func NewDomain(n, dim, workers int, log logr.Logger) (Domain, error) {
	d := Domain{N: n, Dim: dim, Workers: workers, Log: log}
	return d, d.Validate()
}

func (d Domain) Validate() error {
	switch {
	case d.N <= 0:
		return &ConfigError{Field: "particle count", Value: d.N, Reason: "must be positive"}
	case d.Dim <= 0:
		return &ConfigError{Field: "dim", Value: d.Dim, Reason: "must be positive"}
	case d.Workers <= 0:
		return &ConfigError{Field: "worker count", Value: d.Workers, Reason: "must be positive"}
	case d.N > MaxSlots/d.Dim:
		return &AllocationError{What: "ensemble", Size: d.N * d.Dim}
	case (d.N*d.Dim)%d.Workers != 0:
		return &ConfigError{
			Field:  "worker count",
			Value:  d.Workers,
			Reason: "N*DIM must be divisible by the number of workers",
		}
	}
	return nil
}

func (d Domain) Slots() int    { return d.N * d.Dim }
func (d Domain) ShardLen() int { return d.Slots() / d.Workers }

// ShardRange returns the half-open slot range [lo, hi) owned by rank.
func (d Domain) ShardRange(rank int) (lo, hi int) {
	l := d.ShardLen()
	return rank * l, (rank + 1) * l
}

// Matches reports whether ens has the shape the domain was built for.
func (d Domain) Matches(ens *Ensemble) error {
	if ens.N != d.N || ens.Dim != d.Dim {
		return &ConfigError{Field: "ensemble shape", Value: [2]int{ens.N, ens.Dim}, Reason: "does not match domain"}
	}
	return nil
}
