package shard

import (
	"context"

	"github.com/san-kum/clustersim/internal/force"
	"github.com/san-kum/clustersim/internal/nbody"
)

// Exchange evaluates acceleration and jerk for the canonical ensemble. The
// stepper only talks to this interface and never sees the process topology.
type Exchange interface {
	// Evaluate overwrites ens.Acc and ens.Jerk from ens.Pos, ens.Vel and ens.Mass.
	Evaluate(ctx context.Context, ens *nbody.Ensemble) error
	Workers() int
	Close() error
}

// New returns a Local exchange for a single worker and a started Group otherwise.
func New(ctx context.Context, dom nbody.Domain, mass []float64) (Exchange, error) {
	if err := dom.Validate(); err != nil {
		return nil, err
	}
	if dom.Workers == 1 {
		return NewLocal(dom), nil
	}
	return StartGroup(ctx, dom, mass)
}

// Local is the single-worker exchange: no partitioning, no copies, one pass
// of the symmetric kernel.
type Local struct {
	dom  nbody.Domain
	eval *force.Evaluator
}

func NewLocal(dom nbody.Domain) *Local {
	return &Local{dom: dom, eval: force.New()}
}

func (l *Local) Evaluate(ctx context.Context, ens *nbody.Ensemble) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.dom.Matches(ens); err != nil {
		return err
	}
	l.eval.Evaluate(ens.Mass, ens.Pos, ens.Vel, ens.Acc, ens.Jerk)
	return nil
}

func (l *Local) Workers() int { return 1 }
func (l *Local) Close() error { return nil }
