package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"voxelglobe/internal/logging"
	"voxelglobe/internal/physics"
	"voxelglobe/internal/player"
	"voxelglobe/internal/world"
)

// Config is the on-disk configuration of the voxelworld driver.
type Config struct {
	World     world.WorldConfig `yaml:"world"`
	Collision physics.Config    `yaml:"collision"`
	Player    player.Config     `yaml:"player"`
	Storage   Storage           `yaml:"storage"`
	Log       logging.Options   `yaml:"log"`
	Sim       Sim               `yaml:"sim"`
	Preview   Preview           `yaml:"preview"`
}

type Storage struct {
	// Path of the SQLite chunk database; empty disables persistence.
	Path string `yaml:"path"`
}

type Sim struct {
	TickRate int `yaml:"tick_rate"` // ticks per second
	Ticks    int `yaml:"ticks"`     // 0 runs until interrupted
	// SlowTick logs the top profiled operations of any tick slower than this.
	SlowTick time.Duration `yaml:"slow_tick"`
	// Walk drives the headless player forward each tick.
	Walk   bool    `yaml:"walk"`
	SpawnX float32 `yaml:"spawn_x"`
	SpawnZ float32 `yaml:"spawn_z"`
}

type Preview struct {
	Path   string `yaml:"path"`
	Size   int    `yaml:"size"`   // output pixels per side
	Extent int    `yaml:"extent"` // world blocks per side
}

func Default() Config {
	return Config{
		World:     world.DefaultWorldConfig(),
		Collision: physics.DefaultConfig(),
		Player:    player.DefaultConfig(),
		Storage:   Storage{Path: filepath.Join("data", "chunks.db")},
		Log:       logging.DefaultOptions(),
		Sim: Sim{
			TickRate: 20,
			Ticks:    200,
			SlowTick: 50 * time.Millisecond,
			Walk:     true,
			SpawnX:   0.5,
			SpawnZ:   0.5,
		},
		Preview: Preview{Size: 512, Extent: 256},
	}
}

// Load reads a YAML file over the defaults and clamps the result.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Clamp()
	return cfg, nil
}

// Write stores cfg as YAML, creating the parent directory.
func Write(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

// Clamp pulls out-of-range values back to reasonable ones.
func (c *Config) Clamp() {
	m := &c.World.Manager
	m.ViewDistance = clamp(m.ViewDistance, 1, 32)
	if m.MemoryBudget < 1<<20 {
		m.MemoryBudget = 1 << 20
	}
	m.LoadBatch = clamp(m.LoadBatch, 1, 64)
	if m.EvictTargetRatio <= 0 || m.EvictTargetRatio > 1 {
		m.EvictTargetRatio = world.DefaultManagerConfig().EvictTargetRatio
	}

	g := &c.World.Generator
	g.Flat.DepthChunks = clamp(g.Flat.DepthChunks, 1, 16)
	g.Hills.Octaves = clamp(g.Hills.Octaves, 1, 8)
	g.Improved.Octaves = clamp(g.Improved.Octaves, 1, 8)
	g.Spherical.Octaves = clamp(g.Spherical.Octaves, 1, 8)
	if g.Spherical.Radius < 8 {
		g.Spherical.Radius = 8
	}
	if g.Spherical.TerrainHeight > g.Spherical.Radius/2 {
		g.Spherical.TerrainHeight = g.Spherical.Radius / 2
	}
	if g.Improved.FeatureChance < 0 {
		g.Improved.FeatureChance = 0
	}
	if g.Improved.FeatureChance > 1 {
		g.Improved.FeatureChance = 1
	}

	c.Sim.TickRate = clamp(c.Sim.TickRate, 1, 240)
	if c.Sim.Ticks < 0 {
		c.Sim.Ticks = 0
	}
	c.Preview.Size = clamp(c.Preview.Size, 16, 4096)
	c.Preview.Extent = clamp(c.Preview.Extent, 16, 8192)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
