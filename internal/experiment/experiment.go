package experiment

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/hermite"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/shard"
	"github.com/san-kum/clustersim/internal/sim"
	"github.com/san-kum/clustersim/internal/storage"
)

// Experiment wires one launch configuration into a complete run:
// initial conditions, worker group, stepper, driver and output.
type Experiment struct {
	cfg       config.Config
	log       logr.Logger
	registry  *Registry
	store     *storage.Store
	observers []sim.Observer
}

// Report is what a finished (or aborted) run leaves behind.
type Report struct {
	RunID    string
	Seed     uint64
	Result   *sim.Result
	Ensemble *nbody.Ensemble
}

func New(cfg config.Config, log logr.Logger) *Experiment {
	return &Experiment{
		cfg:      cfg,
		log:      log,
		registry: NewRegistry(),
	}
}

// WithStore enables run output under st. Without a store nothing is written.
func (e *Experiment) WithStore(st *storage.Store) *Experiment {
	e.store = st
	return e
}

func (e *Experiment) WithRegistry(r *Registry) *Experiment {
	e.registry = r
	return e
}

func (e *Experiment) AddObserver(o sim.Observer) {
	e.observers = append(e.observers, o)
}

// Config returns the configuration with the seed resolved once Run has started.
func (e *Experiment) Config() config.Config { return e.cfg }

// Run validates the configuration, then integrates until the end time or
// the first error. The report is returned even when the run aborts.
func (e *Experiment) Run(ctx context.Context) (*Report, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if e.cfg.Seed == 0 {
		e.cfg.Seed = uint64(time.Now().UnixNano())
	}
	cfg := &e.cfg
	log := e.log.WithValues("seed", cfg.Seed)

	ens, err := e.registry.InitialConditions(cfg)
	if err != nil {
		return nil, err
	}
	dom, err := nbody.NewDomain(cfg.N, cfg.Dim, cfg.Workers, log)
	if err != nil {
		return nil, err
	}
	ex, err := shard.New(ctx, dom, ens.Mass)
	if err != nil {
		return nil, err
	}
	stepper, err := hermite.New(dom, ex, cfg.Dt)
	if err != nil {
		ex.Close()
		return nil, err
	}

	s := sim.New(stepper)
	for _, m := range e.registry.DefaultMetrics() {
		s.AddMetric(m)
	}
	for _, o := range e.observers {
		s.AddObserver(o)
	}

	report := &Report{Seed: cfg.Seed, Ensemble: ens}
	var run *storage.Run
	if e.store != nil {
		run, err = e.store.Create(e.metadata(ens))
		if err != nil {
			ex.Close()
			return nil, err
		}
		report.RunID = run.ID()
		s.AddObserver(storage.NewRecorder(run, cfg.SnapshotEvery, log))
	}

	log.Info("starting run", "n", cfg.N, "dim", cfg.Dim, "workers", cfg.Workers, "ic", cfg.InitialConditions)
	res, runErr := s.Run(ctx, ens, sim.Config{Dt: cfg.Dt, EndTime: cfg.EndTime, ValidateState: true})
	report.Result = res
	runErr = errors.Join(runErr, ex.Close())

	if run != nil {
		sum := storage.Summary{Err: runErr}
		if res != nil {
			sum.Iterations = res.Iterations
			sum.EnergyDrift = res.EnergyDrift
			sum.Elapsed = res.Elapsed
			sum.Metrics = res.Metrics
		}
		if err := run.Finish(sum); err != nil {
			log.Error(err, "could not finalize run output", "run", run.ID())
		}
	}
	return report, runErr
}

func (e *Experiment) metadata(ens *nbody.Ensemble) storage.RunMetadata {
	c := e.cfg
	return storage.RunMetadata{
		Seed:              c.Seed,
		N:                 c.N,
		Dim:               c.Dim,
		Workers:           c.Workers,
		Dt:                c.Dt,
		EndTime:           c.EndTime,
		TotalMass:         ens.TotalMass(),
		Radius:            c.Radius,
		InitialConditions: c.InitialConditions,
		SnapshotEvery:     c.SnapshotEvery,
	}
}
