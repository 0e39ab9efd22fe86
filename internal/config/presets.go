package config

import "sort"

var Presets = map[string]*Config{
	"plummer-small": {
		N: 64, Dim: 3, Dt: 0.001, EndTime: 1.0, Workers: 1,
		TotalMass: 1, Radius: 1, InitialConditions: "plummer", SnapshotEvery: 100,
	},
	"plummer-parallel": {
		N: 256, Dim: 3, Dt: 0.001, EndTime: 1.0, Workers: 4,
		TotalMass: 1, Radius: 1, InitialConditions: "plummer", SnapshotEvery: 100,
	},
	"cluster-1k": {
		N: 1024, Dim: 3, Dt: 0.0005, EndTime: 2.0, Workers: 8,
		TotalMass: 1, Radius: 1, InitialConditions: "plummer", SnapshotEvery: 500,
	},
	"disk-2d": {
		N: 128, Dim: 2, Dt: 0.001, EndTime: 1.0, Workers: 2,
		TotalMass: 1, Radius: 1, InitialConditions: "plummer", SnapshotEvery: 50,
	},
	"binary": {
		N: 2, Dim: 3, Dt: 0.01, EndTime: 10.0, Workers: 1,
		TotalMass: 2, Radius: 1, InitialConditions: "binary", SnapshotEvery: 10,
	},
	"single": {
		N: 1, Dim: 3, Dt: 0.1, EndTime: 1.0, Workers: 1,
		TotalMass: 1, Radius: 1, InitialConditions: "single", SnapshotEvery: 1,
	},
}

// GetPreset returns a copy of the named preset with the data directory
// defaulted, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
