package storage

import (
	"github.com/go-logr/logr"
	"github.com/san-kum/clustersim/internal/sim"
)

// Recorder writes a run's output as the driver reports iterations. Output
// problems never reach the integrator: the first failure is logged and
// recording stops for the rest of the run.
type Recorder struct {
	run   *Run
	every int
	log   logr.Logger
	err   error
}

// NewRecorder snapshots every `every` iterations; 0 disables snapshots.
// Initial conditions and energy rows are always written.
func NewRecorder(run *Run, every int, log logr.Logger) *Recorder {
	return &Recorder{run: run, every: every, log: log}
}

func (r *Recorder) OnIteration(it sim.Iteration) {
	if r.err != nil {
		return
	}
	if err := r.record(it); err != nil {
		r.err = err
		r.log.Error(err, "output disabled for the rest of the run", "run", r.run.ID(), "iteration", it.Index)
	}
}

func (r *Recorder) record(it sim.Iteration) error {
	if it.Index == 0 {
		if err := r.run.WriteInitialConditions(it.Ensemble); err != nil {
			return err
		}
	}
	if err := r.run.AppendEnergy(it.Index, it.Time, it.Energy); err != nil {
		return err
	}
	if r.every > 0 && it.Index%r.every == 0 {
		return r.run.WriteSnapshot(it.Index, it.Ensemble)
	}
	return nil
}

// Err returns the failure that stopped recording, if any.
func (r *Recorder) Err() error { return r.err }
