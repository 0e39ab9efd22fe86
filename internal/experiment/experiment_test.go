package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/sim"
	"github.com/san-kum/clustersim/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() config.Config {
	cfg := *config.DefaultConfig()
	cfg.Seed = 21
	cfg.N = 16
	cfg.Workers = 4
	cfg.Dt = 0.001
	cfg.EndTime = 0.05
	cfg.SnapshotEvery = 25
	return cfg
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"binary", "plummer", "single"}, r.ListInitialConditions())

	var names []string
	for _, m := range r.DefaultMetrics() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"energy_drift", "momentum_drift", "virial_ratio"}, names)

	cfg := smallConfig()
	cfg.InitialConditions = "king"
	_, err := r.InitialConditions(&cfg)
	assert.Error(t, err)
}

func TestRunWritesOutput(t *testing.T) {
	st := storage.New(t.TempDir())
	exp := New(smallConfig(), logr.Discard()).WithStore(st)

	var last sim.Iteration
	exp.AddObserver(sim.ObserverFunc(func(it sim.Iteration) { last = it }))

	report, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(21), report.Seed)
	assert.Equal(t, 50, report.Result.Iterations)
	assert.Equal(t, 50, last.Index)
	assert.Less(t, report.Result.EnergyDrift, 1e-3)
	assert.Contains(t, report.Result.Metrics, "virial_ratio")

	meta, err := st.Load(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, meta.Status)
	assert.Equal(t, 50, meta.Iterations)
	assert.Equal(t, 4, meta.Workers)
	assert.InDelta(t, 1.0, meta.TotalMass, 1e-12)

	snaps, err := st.Snapshots(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 25, 50}, snaps)

	energies, err := st.LoadEnergies(report.RunID)
	require.NoError(t, err)
	assert.Len(t, energies, 51)

	final, err := st.LoadSnapshot(report.RunID, 50)
	require.NoError(t, err)
	assert.Equal(t, report.Ensemble.Pos.Raw(), final.Pos.Raw())
}

func TestRunIsReproducible(t *testing.T) {
	a, err := New(smallConfig(), logr.Discard()).Run(context.Background())
	require.NoError(t, err)
	b, err := New(smallConfig(), logr.Discard()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Ensemble.Pos.Raw(), b.Ensemble.Pos.Raw())
	assert.Equal(t, a.Result.Energies, b.Result.Energies)
}

func TestRunResolvesSeed(t *testing.T) {
	cfg := smallConfig()
	cfg.Seed = 0
	cfg.EndTime = 0.002
	exp := New(cfg, logr.Discard())

	report, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, report.Seed)
	assert.Equal(t, report.Seed, exp.Config().Seed)
}

func TestRunRejectsConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Workers = 5

	_, err := New(cfg, logr.Discard()).Run(context.Background())
	assert.True(t, errors.Is(err, nbody.ErrConfiguration))
}

func TestRunCancelled(t *testing.T) {
	st := storage.New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	exp := New(smallConfig(), logr.Discard()).WithStore(st)
	exp.AddObserver(sim.ObserverFunc(func(it sim.Iteration) {
		if it.Index == 5 {
			cancel()
		}
	}))

	report, err := exp.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	meta, err := st.Load(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusAborted, meta.Status)
	assert.Equal(t, 5, meta.Iterations)
}
