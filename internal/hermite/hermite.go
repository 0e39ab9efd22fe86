// Package hermite implements the fourth-order time-symmetric Hermite
// predictor-corrector of Kokubo, Yoshinaga & Makino (1998, MNRAS 297, 1067).
package hermite

import (
	"context"
	"fmt"

	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/shard"
)

// Stepper advances the canonical ensemble by a fixed dt. Each Step is
// predict, one force evaluation through the exchange, then correct.
type Stepper struct {
	dom nbody.Domain
	ex  shard.Exchange
	dt  float64

	oldPos, oldVel  []float64
	oldAcc, oldJerk []float64
	initialized     bool
}

// New rejects dt <= 0 and an invalid domain before any stepping occurs.
func New(dom nbody.Domain, ex shard.Exchange, dt float64) (*Stepper, error) {
	if err := dom.Validate(); err != nil {
		return nil, err
	}
	if !(dt > 0) {
		return nil, &nbody.ConfigError{Field: "dt", Value: dt, Reason: "must be positive"}
	}
	s := &Stepper{dom: dom, ex: ex, dt: dt}
	var err error
	for _, buf := range []*[]float64{&s.oldPos, &s.oldVel, &s.oldAcc, &s.oldJerk} {
		if *buf, err = nbody.Alloc("hermite scratch", dom.Slots()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Stepper) Dt() float64              { return s.dt }
func (s *Stepper) Domain() nbody.Domain     { return s.dom }
func (s *Stepper) Exchange() shard.Exchange { return s.ex }

// Init computes the acceleration and jerk of the initial conditions. It must
// run once before the first Step.
func (s *Stepper) Init(ctx context.Context, ens *nbody.Ensemble) error {
	if err := s.dom.Matches(ens); err != nil {
		return err
	}
	if err := s.ex.Evaluate(ctx, ens); err != nil {
		return fmt.Errorf("initial force evaluation: %w", err)
	}
	s.initialized = true
	return nil
}

// Step advances ens by dt in place.
func (s *Stepper) Step(ctx context.Context, ens *nbody.Ensemble) error {
	if !s.initialized {
		if err := s.Init(ctx, ens); err != nil {
			return err
		}
	}

	copy(s.oldPos, ens.Pos.Raw())
	copy(s.oldVel, ens.Vel.Raw())
	copy(s.oldAcc, ens.Acc.Raw())
	copy(s.oldJerk, ens.Jerk.Raw())

	predict(ens, s.dt)

	if err := s.ex.Evaluate(ctx, ens); err != nil {
		return fmt.Errorf("force evaluation: %w", err)
	}

	s.correct(ens)
	return nil
}

// predict is the Taylor expansion with the old acceleration and jerk.
func predict(ens *nbody.Ensemble, dt float64) {
	pos, vel := ens.Pos.Raw(), ens.Vel.Raw()
	acc, jerk := ens.Acc.Raw(), ens.Jerk.Raw()
	dt2 := dt * dt / 2
	dt3 := dt * dt * dt / 6

	for i := range pos {
		pos[i] += vel[i]*dt + acc[i]*dt2 + jerk[i]*dt3
		vel[i] += acc[i]*dt + jerk[i]*dt2
	}
}

// correct must update velocity before position: the position corrector uses
// the corrected velocity.
func (s *Stepper) correct(ens *nbody.Ensemble) {
	pos, vel := ens.Pos.Raw(), ens.Vel.Raw()
	acc, jerk := ens.Acc.Raw(), ens.Jerk.Raw()
	dt := s.dt
	half := dt / 2
	twelfth := dt * dt / 12

	for i := range pos {
		vel[i] = s.oldVel[i] + (s.oldAcc[i]+acc[i])*half + (s.oldJerk[i]-jerk[i])*twelfth
		pos[i] = s.oldPos[i] + (s.oldVel[i]+vel[i])*half + (s.oldAcc[i]-acc[i])*twelfth
	}
}
