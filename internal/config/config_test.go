package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/clustersim/internal/nbody"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.InitialConditions != "plummer" {
		t.Errorf("expected plummer initial conditions, got %s", cfg.InitialConditions)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.EndTime <= 0 {
		t.Error("end time should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("binary")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.N != 2 {
		t.Errorf("expected 2 particles, got %d", cfg.N)
	}

	cfg.N = 99
	if Presets["binary"].N != 2 {
		t.Error("GetPreset must return a copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsValidate(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(names))
	}
	for _, name := range names {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }, "dt"},
		{"negative end", func(c *Config) { c.EndTime = -1 }, "end time"},
		{"zero N", func(c *Config) { c.N = 0 }, "particle count"},
		{"zero dim", func(c *Config) { c.Dim = 0 }, "dim"},
		{"indivisible workers", func(c *Config) { c.N, c.Workers = 5, 2 }, "worker count"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "worker count"},
		{"unknown ic", func(c *Config) { c.InitialConditions = "king" }, "initial conditions"},
		{"binary with 3", func(c *Config) { c.InitialConditions, c.N = "binary", 3 }, "particle count"},
		{"binary unit mass", func(c *Config) { c.InitialConditions, c.N = "binary", 2 }, "total mass"},
		{"heavy single", func(c *Config) { c.InitialConditions, c.N, c.TotalMass = "single", 1, 5 }, "total mass"},
		{"negative snapshots", func(c *Config) { c.SnapshotEvery = -1 }, "snapshot interval"},
		{"zero radius", func(c *Config) { c.Radius = 0 }, "radius"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			var cerr *nbody.ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, cerr.Field)
			}
			if !errors.Is(err, nbody.ErrConfiguration) {
				t.Error("expected error to wrap ErrConfiguration")
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := "n: 128\nworkers: 4\nend_time: 2.5\nseed: 17\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.N != 128 || cfg.Workers != 4 || cfg.EndTime != 2.5 || cfg.Seed != 17 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Dt != DefaultDt {
		t.Errorf("unset dt should keep default, got %g", cfg.Dt)
	}
}

func TestLoadGcfg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ini")
	data := "[simulation]\nn = 32\ndim = 2\nend-time = 0.5\ninitial-conditions = plummer\nsnapshot-every = 0\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.N != 32 || cfg.Dim != 2 || cfg.EndTime != 0.5 || cfg.SnapshotEvery != 0 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("unset workers should keep default, got %d", cfg.Workers)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := GetPreset("plummer-parallel")
	cfg.Seed = 99

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadIntoKeepsBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("dt: 0.02\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := GetPreset("binary")
	if err := LoadInto(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dt != 0.02 {
		t.Errorf("expected dt 0.02, got %v", cfg.Dt)
	}
	if cfg.InitialConditions != "binary" || cfg.N != 2 || cfg.EndTime != 10 || cfg.TotalMass != 2 {
		t.Errorf("unset keys should keep the preset, got %+v", cfg)
	}

	before := *cfg
	if err := LoadInto(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
	if *cfg != before {
		t.Error("failed load must leave base untouched")
	}
}
