package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if cfg != want {
		t.Fatalf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "owlqn.yaml")
	yaml := "memory_size: 20\nl1weight: 2.5\ndata_dir: /srv/training-data\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MemorySize != 20 {
		t.Fatalf("MemorySize = %d, want 20", cfg.MemorySize)
	}
	if cfg.L1Weight != 2.5 {
		t.Fatalf("L1Weight = %v, want 2.5", cfg.L1Weight)
	}
	if cfg.DataDir != "/srv/training-data" {
		t.Fatalf("DataDir = %q", cfg.DataDir)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxIterations != Defaults().MaxIterations {
		t.Fatalf("MaxIterations = %d, want default %d", cfg.MaxIterations, Defaults().MaxIterations)
	}
}

func TestHyperParametersProjection(t *testing.T) {
	cfg := Defaults()
	hp := cfg.HyperParameters()
	if hp.MemorySize != cfg.MemorySize || hp.L1Weight != cfg.L1Weight {
		t.Fatalf("HyperParameters projection mismatch: %+v vs %+v", hp, cfg)
	}
}
