package world

import (
	"fmt"
	"strings"
)

// WorldType selects the terrain generator.
type WorldType int

const (
	WorldFlat WorldType = iota
	WorldHills
	WorldSpherical
	WorldImproved
)

func (t WorldType) String() string {
	switch t {
	case WorldFlat:
		return "flat"
	case WorldHills:
		return "hills"
	case WorldSpherical:
		return "spherical"
	case WorldImproved:
		return "improved"
	default:
		return fmt.Sprintf("WorldType(%d)", int(t))
	}
}

// ParseWorldType accepts the names produced by WorldType.String.
func ParseWorldType(s string) (WorldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flat":
		return WorldFlat, nil
	case "hills", "noise":
		return WorldHills, nil
	case "spherical", "planet":
		return WorldSpherical, nil
	case "improved":
		return WorldImproved, nil
	}
	return WorldFlat, fmt.Errorf("unknown world type %q", s)
}

func (t WorldType) MarshalText() ([]byte, error) {
	if t < WorldFlat || t > WorldImproved {
		return nil, fmt.Errorf("unknown world type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *WorldType) UnmarshalText(b []byte) error {
	v, err := ParseWorldType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Generator synthesizes chunks. GenerateChunk must be a pure function of the coordinate,
// the seed and the generator parameters: regenerating an evicted chunk has to reproduce it.
type Generator interface {
	GenerateChunk(coord ChunkCoord) *Chunk
	SetSeed(seed int64)
	Seed() int64
	Type() WorldType
}

// SurfaceHeighter is implemented by generators with a closed-form surface height.
type SurfaceHeighter interface {
	SurfaceHeightAt(x, z float64) float64
}

type FlatSettings struct {
	DepthChunks int  `yaml:"depth_chunks"` // number of solid chunk layers at and below cy=0
	Decorations bool `yaml:"decorations"`  // trees and rocks in cy=1
}

type HillsSettings struct {
	Amplitude   float64 `yaml:"amplitude"`
	Scale       float64 `yaml:"scale"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
	FloorY      int     `yaml:"floor_y"` // bedrock level
}

type SphericalSettings struct {
	Radius        float64 `yaml:"radius"`
	TerrainHeight float64 `yaml:"terrain_height"`
	SeaLevel      float64 `yaml:"sea_level"` // height offset below which columns are ocean
	NoiseScale    float64 `yaml:"noise_scale"`
	Octaves       int     `yaml:"octaves"`
	Persistence   float64 `yaml:"persistence"`
	Lacunarity    float64 `yaml:"lacunarity"`
}

type ImprovedSettings struct {
	BaseHeight    float64 `yaml:"base_height"`
	Amplitude     float64 `yaml:"amplitude"`
	Scale         float64 `yaml:"scale"`
	Octaves       int     `yaml:"octaves"`
	Persistence   float64 `yaml:"persistence"`
	Lacunarity    float64 `yaml:"lacunarity"`
	WarpScale     float64 `yaml:"warp_scale"`
	WarpStrength  float64 `yaml:"warp_strength"`
	BiomeScale    float64 `yaml:"biome_scale"`
	FloorY        int     `yaml:"floor_y"`
	FeatureChance float64 `yaml:"feature_chance"` // fraction of eligible columns with a tree or rock
}

// GeneratorSettings holds the parameters of every generator variant.
type GeneratorSettings struct {
	Seed      int64             `yaml:"seed"`
	Flat      FlatSettings      `yaml:"flat"`
	Hills     HillsSettings     `yaml:"hills"`
	Spherical SphericalSettings `yaml:"spherical"`
	Improved  ImprovedSettings  `yaml:"improved"`
}

// DefaultGeneratorSettings returns the tuned defaults for every variant.
func DefaultGeneratorSettings() GeneratorSettings {
	return GeneratorSettings{
		Seed: 1337,
		Flat: FlatSettings{
			DepthChunks: 2,
			Decorations: true,
		},
		Hills: HillsSettings{
			Amplitude:   48,
			Scale:       1.0 / 96.0,
			Octaves:     4,
			Persistence: 0.5,
			Lacunarity:  2.0,
			FloorY:      -32,
		},
		Spherical: SphericalSettings{
			Radius:        96,
			TerrainHeight: 8,
			SeaLevel:      -2,
			NoiseScale:    1.0 / 48.0,
			Octaves:       4,
			Persistence:   0.5,
			Lacunarity:    2.0,
		},
		Improved: ImprovedSettings{
			BaseHeight:    8,
			Amplitude:     56,
			Scale:         1.0 / 160.0,
			Octaves:       5,
			Persistence:   0.5,
			Lacunarity:    2.0,
			WarpScale:     1.0 / 80.0,
			WarpStrength:  24,
			BiomeScale:    1.0 / 400.0,
			FloorY:        -32,
			FeatureChance: 0.03,
		},
	}
}

// NewGenerator builds the generator variant for a world type.
func NewGenerator(t WorldType, s GeneratorSettings) (Generator, error) {
	switch t {
	case WorldFlat:
		return NewFlatGenerator(s.Seed, s.Flat), nil
	case WorldHills:
		return NewHillsGenerator(s.Seed, s.Hills), nil
	case WorldSpherical:
		return NewSphericalGenerator(s.Seed, s.Spherical), nil
	case WorldImproved:
		return NewImprovedGenerator(s.Seed, s.Improved), nil
	}
	return nil, fmt.Errorf("no generator for world type %v", t)
}

// columnRange returns the world Y range [lo, hi] covered by a chunk.
func columnRange(coord ChunkCoord) (lo, hi int) {
	lo = coord.Y * ChunkHeight
	return lo, lo + ChunkHeight - 1
}

// putWorld writes v at a world position if it falls inside the chunk.
func putWorld(c *Chunk, wx, wy, wz int, v Voxel) {
	p := VoxelPos{wx - c.coord.X*ChunkSize, wy - c.coord.Y*ChunkHeight, wz - c.coord.Z*ChunkSize}
	if p.InChunk() {
		c.put(p.X, p.Y, p.Z, v)
	}
}

func putWorldIfAir(c *Chunk, wx, wy, wz int, v Voxel) {
	p := VoxelPos{wx - c.coord.X*ChunkSize, wy - c.coord.Y*ChunkHeight, wz - c.coord.Z*ChunkSize}
	if p.InChunk() && c.tree.Get(p.X, p.Y, p.Z).IsAir() {
		c.put(p.X, p.Y, p.Z, v)
	}
}

// finishChunk compacts a freshly generated chunk.
func finishChunk(c *Chunk) *Chunk {
	c.tree.Optimize()
	return c
}
