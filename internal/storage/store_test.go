package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/sim"
)

func testEnsemble(t *testing.T) *nbody.Ensemble {
	t.Helper()
	ens, err := nbody.NewEnsemble(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		ens.Mass[i] = 1.0 / 3
		ens.Pos.Set(i, 0, float64(i)+0.1)
		ens.Pos.Set(i, 1, -float64(i)/7)
		ens.Vel.Set(i, 1, 1e-9*float64(i))
	}
	return ens
}

func testMeta() RunMetadata {
	return RunMetadata{
		Timestamp: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Seed:      42, N: 3, Dim: 2, Workers: 1,
		Dt: 0.1, EndTime: 1, TotalMass: 1, Radius: 1,
		InitialConditions: "plummer", SnapshotEvery: 2,
	}
}

func TestCreateAndLoad(t *testing.T) {
	st := New(t.TempDir())

	run, err := st.Create(testMeta())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if run.ID() != "run_20240301T123000Z_42" {
		t.Errorf("unexpected run id %q", run.ID())
	}

	again, err := st.Create(testMeta())
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if again.ID() == run.ID() {
		t.Error("runs created in the same second must not share a directory")
	}

	meta, err := st.Load(run.ID())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Seed != 42 || meta.N != 3 || meta.G != 1 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Status != StatusRunning {
		t.Errorf("expected status running, got %s", meta.Status)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestListEmpty(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "missing")).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestEnsembleRoundTrip(t *testing.T) {
	ens := testEnsemble(t)
	var buf bytes.Buffer
	if err := WriteEnsemble(&buf, ens); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "x0,x1,mass,v0,v1\n") {
		t.Errorf("unexpected header in %q", buf.String())
	}

	got, err := ReadEnsemble(&buf, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range ens.Mass {
		if got.Mass[i] != ens.Mass[i] {
			t.Errorf("mass[%d] = %v, want %v", i, got.Mass[i], ens.Mass[i])
		}
	}
	for k, v := range ens.Pos.Raw() {
		if got.Pos.Raw()[k] != v {
			t.Errorf("pos[%d] = %v, want %v", k, got.Pos.Raw()[k], v)
		}
	}
	for k, v := range ens.Vel.Raw() {
		if got.Vel.Raw()[k] != v {
			t.Errorf("vel[%d] = %v, want %v", k, got.Vel.Raw()[k], v)
		}
	}
}

func TestReadEnsembleWrongCount(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEnsemble(&buf, testEnsemble(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadEnsemble(&buf, 4, 2); err == nil {
		t.Error("expected error for particle count mismatch")
	}
}

func TestRecorder(t *testing.T) {
	st := New(t.TempDir())
	run, err := st.Create(testMeta())
	if err != nil {
		t.Fatal(err)
	}
	rec := NewRecorder(run, 2, logr.Discard())
	ens := testEnsemble(t)

	for i := 0; i <= 5; i++ {
		rec.OnIteration(sim.Iteration{
			Index:    i,
			Time:     float64(i) * 0.1,
			Ensemble: ens,
			Energy:   metrics.Energy{Kinetic: 0.5, Potential: -1 - float64(i)*1e-6, Total: -0.5 - float64(i)*1e-6},
		})
	}
	if rec.Err() != nil {
		t.Fatalf("recorder failed: %v", rec.Err())
	}
	if err := run.Finish(Summary{Iterations: 5, EnergyDrift: 1e-5, Metrics: map[string]float64{"virial_ratio": 1}}); err != nil {
		t.Fatal(err)
	}

	snaps, err := st.Snapshots(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 3 || snaps[0] != 0 || snaps[1] != 2 || snaps[2] != 4 {
		t.Errorf("expected snapshots [0 2 4], got %v", snaps)
	}

	energies, err := st.LoadEnergies(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(energies) != 6 {
		t.Fatalf("expected 6 energy rows, got %d", len(energies))
	}
	if energies[3].Iteration != 3 || math.Abs(energies[3].Total+0.500003) > 1e-12 {
		t.Errorf("unexpected row %+v", energies[3])
	}

	ic, err := st.LoadInitialConditions(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ic.Pos.At(2, 0)-2.1) > 1e-15 {
		t.Errorf("unexpected initial position %v", ic.Pos.Raw())
	}
	if _, err := st.LoadSnapshot(run.ID(), 4); err != nil {
		t.Errorf("load snapshot: %v", err)
	}

	meta, err := st.Load(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if meta.Status != StatusCompleted || meta.Iterations != 5 || meta.Metrics["virial_ratio"] != 1 {
		t.Errorf("unexpected final metadata %+v", meta)
	}
}

func TestRecorderStopsAfterFailure(t *testing.T) {
	st := New(t.TempDir())
	run, err := st.Create(testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(run.Dir()); err != nil {
		t.Fatal(err)
	}

	rec := NewRecorder(run, 1, logr.Discard())
	ens := testEnsemble(t)
	rec.OnIteration(sim.Iteration{Index: 0, Ensemble: ens})
	first := rec.Err()
	if first == nil {
		t.Fatal("expected an output error")
	}
	rec.OnIteration(sim.Iteration{Index: 1, Ensemble: ens})
	if rec.Err() != first {
		t.Error("recorder should keep the first error")
	}
}

func TestFinishAborted(t *testing.T) {
	st := New(t.TempDir())
	run, err := st.Create(testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if err := run.Finish(Summary{Iterations: 2, Err: errors.New("boom")}); err != nil {
		t.Fatal(err)
	}
	meta, err := st.Load(run.ID())
	if err != nil {
		t.Fatal(err)
	}
	if meta.Status != StatusAborted || meta.Error != "boom" {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestExports(t *testing.T) {
	st := New(t.TempDir())
	run, err := st.Create(testMeta())
	if err != nil {
		t.Fatal(err)
	}
	for i, total := range []float64{-1, -1.001} {
		if err := run.AppendEnergy(i, float64(i)*0.1, metrics.Energy{Total: total}); err != nil {
			t.Fatal(err)
		}
	}
	if err := run.Finish(Summary{Iterations: 1}); err != nil {
		t.Fatal(err)
	}

	var js bytes.Buffer
	if err := st.ExportJSON(&js, run.ID()); err != nil {
		t.Fatal(err)
	}
	var data ExportData
	if err := json.Unmarshal(js.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Metadata.ID != run.ID() || len(data.Energies) != 2 {
		t.Errorf("unexpected export %+v", data)
	}

	var csvBuf bytes.Buffer
	if err := st.ExportCSV(&csvBuf, run.ID()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", csvBuf.String())
	}
	if !strings.HasSuffix(lines[1], ",0") {
		t.Errorf("first row should have zero drift: %q", lines[1])
	}
}
