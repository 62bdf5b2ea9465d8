package world

import (
	"math"
	"sync"

	"voxelglobe/internal/profiling"
)

const dirtLayers = 3

// HillsGenerator builds a heightmap from fractal simplex noise scaled by the amplitude.
type HillsGenerator struct {
	mu       sync.RWMutex
	seed     int64
	settings HillsSettings
	noise    *FractalNoise
}

func NewHillsGenerator(seed int64, s HillsSettings) *HillsGenerator {
	g := &HillsGenerator{settings: s}
	g.SetSeed(seed)
	return g
}

func (g *HillsGenerator) SetSeed(seed int64) {
	s := g.settings
	n := NewFractalNoise(seed, s.Scale, s.Octaves, s.Persistence, s.Lacunarity)
	g.mu.Lock()
	g.seed = seed
	g.noise = n
	g.mu.Unlock()
}

func (g *HillsGenerator) Seed() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seed
}

func (g *HillsGenerator) Type() WorldType { return WorldHills }

// heightAt returns the raw terrain height at a world column.
func (g *HillsGenerator) heightAt(x, z float64) float64 {
	g.mu.RLock()
	n := g.noise
	g.mu.RUnlock()
	return g.settings.Amplitude * n.Eval2(x, z)
}

// columnTop is the Y of the highest solid voxel in a column.
func (g *HillsGenerator) columnTop(wx, wz int) (int, float64) {
	h := g.heightAt(float64(wx), float64(wz))
	return max(int(math.Floor(h)), g.settings.FloorY), h
}

// SurfaceHeightAt returns the top face of the column containing (x, z).
func (g *HillsGenerator) SurfaceHeightAt(x, z float64) float64 {
	top, _ := g.columnTop(int(math.Floor(x)), int(math.Floor(z)))
	return float64(top + 1)
}

func (g *HillsGenerator) surfaceMaterial(h float64) Voxel {
	a := g.settings.Amplitude
	switch {
	case h > 0.7*a:
		return NewVoxel(VoxelSnow)
	case h > 0.4*a:
		return NewVoxel(VoxelRock)
	default:
		return NewVoxel(VoxelGrass)
	}
}

func (g *HillsGenerator) GenerateChunk(coord ChunkCoord) *Chunk {
	defer profiling.Track("world.HillsGenerator.GenerateChunk")()

	c := NewChunk(coord)
	lo, hi := columnRange(coord)
	s := g.settings
	if lo > int(math.Ceil(s.Amplitude)) || hi < s.FloorY {
		return c
	}

	var tops [ChunkSize][ChunkSize]int
	var heights [ChunkSize][ChunkSize]float64
	minTop := math.MaxInt
	for lx := range ChunkSize {
		for lz := range ChunkSize {
			tops[lx][lz], heights[lx][lz] = g.columnTop(coord.X*ChunkSize+lx, coord.Z*ChunkSize+lz)
			minTop = min(minTop, tops[lx][lz])
		}
	}

	// Entirely below the dirt layers of every column: solid stone.
	if hi < minTop-dirtLayers && lo > s.FloorY {
		c.tree.Fill(NewVoxel(VoxelStone))
		return finishChunk(c)
	}

	stone := NewVoxel(VoxelStone)
	dirt := NewVoxel(VoxelDirt)
	bedrock := NewVoxel(VoxelBedrock)
	for lx := range ChunkSize {
		for lz := range ChunkSize {
			top := tops[lx][lz]
			surface := g.surfaceMaterial(heights[lx][lz])
			for wy := max(lo, s.FloorY); wy <= min(hi, top); wy++ {
				var v Voxel
				switch depth := top - wy; {
				case wy == s.FloorY:
					v = bedrock
				case depth == 0:
					v = surface
				case depth <= dirtLayers:
					v = dirt
				default:
					v = stone
				}
				c.put(lx, wy-lo, lz, v)
			}
		}
	}
	return finishChunk(c)
}
