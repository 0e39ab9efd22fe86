package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
)

// Run is an open run directory. It is used only by the coordinator.
type Run struct {
	dir    string
	meta   RunMetadata
	energy *os.File
	ew     *csv.Writer
}

func (r *Run) ID() string            { return r.meta.ID }
func (r *Run) Dir() string           { return r.dir }
func (r *Run) Metadata() RunMetadata { return r.meta }

func (r *Run) writeMetadata() error {
	f, err := os.Create(filepath.Join(r.dir, metadataFile))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r *Run) WriteInitialConditions(ens *nbody.Ensemble) error {
	return writeEnsembleFile(filepath.Join(r.dir, initialFile), ens)
}

func (r *Run) WriteSnapshot(iteration int, ens *nbody.Ensemble) error {
	return writeEnsembleFile(filepath.Join(r.dir, snapshotName(iteration)), ens)
}

// AppendEnergy adds one row to energy_diagnostics.csv, creating the file
// with its header on first use.
func (r *Run) AppendEnergy(iteration int, t float64, e metrics.Energy) error {
	if r.ew == nil {
		f, err := os.OpenFile(filepath.Join(r.dir, energyFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		r.energy, r.ew = f, csv.NewWriter(f)
		if err := r.ew.Write([]string{"iteration", "time", "kinetic", "potential", "total"}); err != nil {
			return err
		}
	}

	row := []string{
		strconv.Itoa(iteration),
		formatFloat(t),
		formatFloat(e.Kinetic),
		formatFloat(e.Potential),
		formatFloat(e.Total),
	}
	if err := r.ew.Write(row); err != nil {
		return err
	}
	r.ew.Flush()
	return r.ew.Error()
}

// Summary is what Finish records about the end of a run.
type Summary struct {
	Iterations  int
	EnergyDrift float64
	Elapsed     time.Duration
	Metrics     map[string]float64
	Err         error
}

// Finish closes the energy file and rewrites metadata.json with the outcome.
func (r *Run) Finish(s Summary) error {
	var errs []error
	if r.energy != nil {
		r.ew.Flush()
		errs = append(errs, r.ew.Error(), r.energy.Close())
		r.energy, r.ew = nil, nil
	}

	r.meta.Status = StatusCompleted
	if s.Err != nil {
		r.meta.Status = StatusAborted
		r.meta.Error = s.Err.Error()
	}
	r.meta.Iterations = s.Iterations
	r.meta.EnergyDrift = s.EnergyDrift
	r.meta.Elapsed = s.Elapsed.String()
	r.meta.Metrics = s.Metrics

	errs = append(errs, r.writeMetadata())
	return errors.Join(errs...)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func ensembleHeader(dim int) []string {
	h := make([]string, 0, 2*dim+1)
	for k := 0; k < dim; k++ {
		h = append(h, fmt.Sprintf("x%d", k))
	}
	h = append(h, "mass")
	for k := 0; k < dim; k++ {
		h = append(h, fmt.Sprintf("v%d", k))
	}
	return h
}

// WriteEnsemble writes one row per particle: position, mass, velocity.
func WriteEnsemble(w io.Writer, ens *nbody.Ensemble) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ensembleHeader(ens.Dim)); err != nil {
		return err
	}

	row := make([]string, 2*ens.Dim+1)
	for i := 0; i < ens.N; i++ {
		for k := 0; k < ens.Dim; k++ {
			row[k] = formatFloat(ens.Pos.At(i, k))
			row[ens.Dim+1+k] = formatFloat(ens.Vel.At(i, k))
		}
		row[ens.Dim] = formatFloat(ens.Mass[i])
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeEnsembleFile(path string, ens *nbody.Ensemble) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteEnsemble(f, ens); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadEnsemble parses the format written by WriteEnsemble. Acceleration and
// jerk are left zero.
func ReadEnsemble(rd io.Reader, n, dim int) (*nbody.Ensemble, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = 2*dim + 1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && records[0][0] == "x0" {
		records = records[1:]
	}
	if len(records) != n {
		return nil, fmt.Errorf("expected %d particles, found %d", n, len(records))
	}

	ens, err := nbody.NewEnsemble(n, dim)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		vals := make([]float64, len(rec))
		for j, s := range rec {
			if vals[j], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("particle %d: %w", i, err)
			}
		}
		copy(ens.Pos.Vec(i), vals[:dim])
		ens.Mass[i] = vals[dim]
		copy(ens.Vel.Vec(i), vals[dim+1:])
	}
	return ens, nil
}

func readEnsembleFile(path string, n, dim int) (*nbody.Ensemble, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ens, err := ReadEnsemble(f, n, dim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return ens, nil
}

func readEnergies(rd io.Reader) ([]EnergyRecord, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = 5

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && records[0][0] == "iteration" {
		records = records[1:]
	}

	out := make([]EnergyRecord, 0, len(records))
	for _, rec := range records {
		var e EnergyRecord
		if e.Iteration, err = strconv.Atoi(rec[0]); err != nil {
			return nil, err
		}
		vals := make([]float64, 4)
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				return nil, fmt.Errorf("iteration %d: %w", e.Iteration, err)
			}
		}
		e.Time, e.Kinetic, e.Potential, e.Total = vals[0], vals[1], vals[2], vals[3]
		out = append(out, e)
	}
	return out, nil
}
