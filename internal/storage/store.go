package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
)

const (
	metadataFile   = "metadata.json"
	initialFile    = "initial_conditions.csv"
	energyFile     = "energy_diagnostics.csv"
	snapshotPrefix = "iteration_"
)

// Run status values recorded in metadata.json.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// RunMetadata is the run record. G is always 1; it is stored so that output
// files are self-describing.
type RunMetadata struct {
	ID                string             `json:"id"`
	Timestamp         time.Time          `json:"timestamp"`
	Seed              uint64             `json:"seed"`
	N                 int                `json:"n"`
	Dim               int                `json:"dim"`
	Workers           int                `json:"workers"`
	Dt                float64            `json:"dt"`
	EndTime           float64            `json:"end_time"`
	TotalMass         float64            `json:"total_mass"`
	Radius            float64            `json:"radius"`
	G                 float64            `json:"g"`
	InitialConditions string             `json:"initial_conditions"`
	SnapshotEvery     int                `json:"snapshot_every"`
	Status            string             `json:"status"`
	Iterations        int                `json:"iterations"`
	EnergyDrift       float64            `json:"energy_drift"`
	Elapsed           string             `json:"elapsed,omitempty"`
	Error             string             `json:"error,omitempty"`
	Metrics           map[string]float64 `json:"metrics,omitempty"`
}

// EnergyRecord is one row of energy_diagnostics.csv.
type EnergyRecord struct {
	Iteration int     `json:"iteration"`
	Time      float64 `json:"time"`
	metrics.Energy
}

// Create makes a new run directory named run_<UTC timestamp>_<seed> and
// writes the initial metadata record.
func (s *Store) Create(meta RunMetadata) (*Run, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Timestamp = meta.Timestamp.UTC()
	meta.G = 1
	meta.Status = StatusRunning

	base := fmt.Sprintf("run_%s_%d", meta.Timestamp.Format("20060102T150405Z"), meta.Seed)
	id := base
	for i := 1; ; i++ {
		err := os.Mkdir(s.Dir(id), 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
	meta.ID = id

	r := &Run{dir: s.Dir(id), meta: meta}
	if err := r.writeMetadata(); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns every run with readable metadata, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata of %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadEnergies(runID string) ([]EnergyRecord, error) {
	f, err := os.Open(filepath.Join(s.Dir(runID), energyFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readEnergies(f)
}

// LoadInitialConditions reads the initial_conditions.csv of a run.
func (s *Store) LoadInitialConditions(runID string) (*nbody.Ensemble, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	return readEnsembleFile(filepath.Join(s.Dir(runID), initialFile), meta.N, meta.Dim)
}

// LoadSnapshot reads iteration_<n>.csv of a run.
func (s *Store) LoadSnapshot(runID string, iteration int) (*nbody.Ensemble, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	return readEnsembleFile(filepath.Join(s.Dir(runID), snapshotName(iteration)), meta.N, meta.Dim)
}

// Snapshots lists the iterations that have a snapshot file, ascending.
func (s *Store) Snapshots(runID string) ([]int, error) {
	entries, err := os.ReadDir(s.Dir(runID))
	if err != nil {
		return nil, err
	}

	its := make([]int, 0)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), ".csv"))
		if err != nil {
			continue
		}
		its = append(its, n)
	}
	sort.Ints(its)
	return its, nil
}

func snapshotName(iteration int) string {
	return fmt.Sprintf("%s%d.csv", snapshotPrefix, iteration)
}
