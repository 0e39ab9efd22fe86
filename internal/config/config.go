package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/clustersim/internal/nbody"
	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultN         = 64
	DefaultDim       = 3
	DefaultDt        = 0.001
	DefaultEndTime   = 1.0
	DefaultWorkers   = 1
	DefaultMass      = 1.0
	DefaultRadius    = 1.0
	DefaultIC        = "plummer"
	DefaultSnapshots = 100
	DefaultDataDir   = "data"
)

// InitialConditions lists the generators a run can start from.
var InitialConditions = []string{"plummer", "binary", "single"}

// Config is the launch configuration of one run. Seed 0 means "pick one
// from the clock"; the resolved seed is what gets recorded.
type Config struct {
	Seed              uint64  `yaml:"seed" gcfg:"seed"`
	N                 int     `yaml:"n" gcfg:"n"`
	Dim               int     `yaml:"dim" gcfg:"dim"`
	Dt                float64 `yaml:"dt" gcfg:"dt"`
	EndTime           float64 `yaml:"end_time" gcfg:"end-time"`
	Workers           int     `yaml:"workers" gcfg:"workers"`
	TotalMass         float64 `yaml:"total_mass" gcfg:"total-mass"`
	Radius            float64 `yaml:"radius" gcfg:"radius"`
	InitialConditions string  `yaml:"initial_conditions" gcfg:"initial-conditions"`
	SnapshotEvery     int     `yaml:"snapshot_every" gcfg:"snapshot-every"`
	DataDir           string  `yaml:"data_dir" gcfg:"data-dir"`
}

// iniFile is the gcfg layout: a single [simulation] section.
type iniFile struct {
	Simulation Config
}

func DefaultConfig() *Config {
	return &Config{
		N:                 DefaultN,
		Dim:               DefaultDim,
		Dt:                DefaultDt,
		EndTime:           DefaultEndTime,
		Workers:           DefaultWorkers,
		TotalMass:         DefaultMass,
		Radius:            DefaultRadius,
		InitialConditions: DefaultIC,
		SnapshotEvery:     DefaultSnapshots,
		DataDir:           DefaultDataDir,
	}
}

// Load reads a YAML file, or a gcfg file when the extension is .ini or
// .gcfg. Unset keys keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto decodes path over base, so keys the file leaves unset keep
// whatever base already holds. base is untouched on error.
func LoadInto(path string, base *Config) error {
	cfg := *base

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".gcfg":
		f := iniFile{Simulation: cfg}
		if err := gcfg.ReadFileInto(&f, path); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		cfg = f.Simulation
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	*base = cfg
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the launch parameters once, before anything is allocated.
func (c *Config) Validate() error {
	if !(c.Dt > 0) {
		return &nbody.ConfigError{Field: "dt", Value: c.Dt, Reason: "must be positive"}
	}
	if !(c.EndTime > 0) {
		return &nbody.ConfigError{Field: "end time", Value: c.EndTime, Reason: "must be positive"}
	}
	if !(c.TotalMass > 0) {
		return &nbody.ConfigError{Field: "total mass", Value: c.TotalMass, Reason: "must be positive"}
	}
	if !(c.Radius > 0) {
		return &nbody.ConfigError{Field: "radius", Value: c.Radius, Reason: "must be positive"}
	}
	if c.SnapshotEvery < 0 {
		return &nbody.ConfigError{Field: "snapshot interval", Value: c.SnapshotEvery, Reason: "must not be negative"}
	}

	switch c.InitialConditions {
	case "plummer":
	case "binary":
		if c.N != 2 {
			return &nbody.ConfigError{Field: "particle count", Value: c.N, Reason: "binary needs exactly 2 particles"}
		}
		if c.TotalMass != 2 {
			return &nbody.ConfigError{Field: "total mass", Value: c.TotalMass, Reason: "binary is two unit masses, total 2"}
		}
	case "single":
		if c.N != 1 {
			return &nbody.ConfigError{Field: "particle count", Value: c.N, Reason: "single needs exactly 1 particle"}
		}
		if c.TotalMass != 1 {
			return &nbody.ConfigError{Field: "total mass", Value: c.TotalMass, Reason: "single is one unit mass"}
		}
	default:
		return &nbody.ConfigError{
			Field:  "initial conditions",
			Value:  c.InitialConditions,
			Reason: "must be one of " + strings.Join(InitialConditions, ", "),
		}
	}

	return nbody.Domain{N: c.N, Dim: c.Dim, Workers: c.Workers}.Validate()
}
