package world

import (
	"math"
	"sync"

	"voxelglobe/internal/profiling"
)

// SphericalGenerator builds a planet centred on the world origin. Terrain lives in a shell of
// radius ± 2·TerrainHeight; the interior below the shell is left empty.
type SphericalGenerator struct {
	mu       sync.RWMutex
	seed     int64
	settings SphericalSettings
	noise    *FractalNoise
}

func NewSphericalGenerator(seed int64, s SphericalSettings) *SphericalGenerator {
	if s.Radius <= 0 {
		s.Radius = 1
	}
	g := &SphericalGenerator{settings: s}
	g.SetSeed(seed)
	return g
}

func (g *SphericalGenerator) SetSeed(seed int64) {
	s := g.settings
	n := NewFractalNoise(seed, s.NoiseScale, s.Octaves, s.Persistence, s.Lacunarity)
	g.mu.Lock()
	g.seed = seed
	g.noise = n
	g.mu.Unlock()
}

func (g *SphericalGenerator) Seed() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seed
}

func (g *SphericalGenerator) Type() WorldType { return WorldSpherical }

func (g *SphericalGenerator) Radius() float64 { return g.settings.Radius }

// Shell returns the inner and outer radius of the terrain shell.
func (g *SphericalGenerator) Shell() (inner, outer float64) {
	s := g.settings
	return s.Radius - 2*s.TerrainHeight, s.Radius + 2*s.TerrainHeight
}

// HeightOffset returns the terrain displacement at a longitude/latitude in radians.
func (g *SphericalGenerator) HeightOffset(lon, lat float64) float64 {
	g.mu.RLock()
	n := g.noise
	g.mu.RUnlock()
	s := g.settings
	return (n.Eval2(lon*s.Radius, lat*s.Radius)*2 - 1) * s.TerrainHeight
}

// chunkRadii returns the nearest and farthest distance from the origin to any point of the chunk.
func chunkRadii(coord ChunkCoord) (near, far float64) {
	lo, hi := coord.Min(), coord.Max()
	var nearSq, farSq float64
	axis := func(l, h int) {
		a, b := float64(l), float64(h+1)
		switch {
		case b < 0:
			nearSq += b * b
		case a > 0:
			nearSq += a * a
		}
		m := math.Max(math.Abs(a), math.Abs(b))
		farSq += m * m
	}
	axis(lo.X, hi.X)
	axis(lo.Y, hi.Y)
	axis(lo.Z, hi.Z)
	return math.Sqrt(nearSq), math.Sqrt(farSq)
}

func (g *SphericalGenerator) GenerateChunk(coord ChunkCoord) *Chunk {
	defer profiling.Track("world.SphericalGenerator.GenerateChunk")()

	c := NewChunk(coord)
	inner, outer := g.Shell()
	near, far := chunkRadii(coord)
	if near > outer || far < inner {
		return c
	}

	s := g.settings
	surfaceV := NewVoxel(VoxelGrass)
	sand := NewVoxel(VoxelSand)
	soil := NewVoxel(VoxelDirt)
	stone := NewVoxel(VoxelStone)
	core := NewVoxel(VoxelCore)
	water := NewVoxel(VoxelWater)
	base := coord.Min()

	for ly := range ChunkHeight {
		for lz := range ChunkSize {
			for lx := range ChunkSize {
				px := float64(base.X+lx) + 0.5
				py := float64(base.Y+ly) + 0.5
				pz := float64(base.Z+lz) + 0.5
				r := math.Sqrt(px*px + py*py + pz*pz)
				if r < inner || r > outer {
					continue
				}
				lon := math.Atan2(pz, px)
				lat := math.Asin(py / r)
				offset := g.HeightOffset(lon, lat)
				surfaceR := s.Radius + offset
				ocean := offset < s.SeaLevel

				if r >= surfaceR {
					if ocean && r < s.Radius+s.SeaLevel {
						c.put(lx, ly, lz, water)
					}
					continue
				}

				depth := (surfaceR - r) / (surfaceR - inner)
				var v Voxel
				switch {
				case depth < 0.05 || surfaceR-r < 1:
					v = surfaceV
					if ocean {
						v = sand
					}
				case depth < 0.25:
					v = soil
				case depth < 0.75:
					v = stone
				default:
					v = core
				}
				c.put(lx, ly, lz, v)
			}
		}
	}
	return finishChunk(c)
}
