package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/san-kum/clustersim/internal/metrics"
)

type ExportData struct {
	Metadata  RunMetadata    `json:"metadata"`
	Energies  []EnergyRecord `json:"energies"`
	Snapshots []int          `json:"snapshots"`
}

// ExportJSON writes the metadata, the energy series and the list of
// snapshot iterations of a run.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	energies, err := s.LoadEnergies(runID)
	if err != nil {
		return err
	}
	snaps, err := s.Snapshots(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Metadata: *meta, Energies: energies, Snapshots: snaps})
}

// ExportCSV writes the energy series with the relative drift as an extra column.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	energies, err := s.LoadEnergies(runID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iteration", "time", "kinetic", "potential", "total", "drift"}); err != nil {
		return err
	}
	for _, e := range energies {
		row := []string{
			strconv.Itoa(e.Iteration),
			formatFloat(e.Time),
			formatFloat(e.Kinetic),
			formatFloat(e.Potential),
			formatFloat(e.Total),
			formatFloat(metrics.RelativeDrift(e.Total, energies[0].Total)),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
