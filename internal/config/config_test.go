package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxelglobe/internal/world"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.World.Type != Default().World.Type || cfg.Sim.TickRate != 20 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxelworld.yaml")
	doc := `
world:
  type: spherical
  generator:
    seed: 99
  manager:
    view_distance: 500
    load_batch: 0
sim:
  tick_rate: 10
  slow_tick: 20ms
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.World.Type != world.WorldSpherical || cfg.World.Generator.Seed != 99 {
		t.Errorf("world = %+v", cfg.World)
	}
	if cfg.World.Manager.ViewDistance != 32 || cfg.World.Manager.LoadBatch != 1 {
		t.Errorf("manager not clamped: %+v", cfg.World.Manager)
	}
	if cfg.Sim.TickRate != 10 || cfg.Sim.SlowTick != 20*time.Millisecond {
		t.Errorf("sim = %+v", cfg.Sim)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	// untouched sections keep their defaults
	if cfg.Collision != Default().Collision {
		t.Errorf("collision changed: %+v", cfg.Collision)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"syntax", "world: [unterminated"},
		{"world type", "world:\n  type: cubic\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.yaml")
	cfg := Default()
	cfg.World.Type = world.WorldImproved
	cfg.Storage.Path = ""
	if err := Write(path, cfg); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back != cfg {
		t.Errorf("round trip changed config:\n got %+v\nwant %+v", back, cfg)
	}
}
