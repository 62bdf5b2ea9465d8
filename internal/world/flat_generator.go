package world

import (
	"math/rand"
	"sync"

	"voxelglobe/internal/profiling"
)

// FlatSurfaceY is the world Y of the top face of flat terrain.
const FlatSurfaceY = ChunkHeight

const flatTile = 8 // checker tile edge; two tiles make one 16-block period

// FlatGenerator builds solid ground in every chunk at or below cy=0 with a grass/dirt checker
// on top and sparse trees and rocks in the layer above.
type FlatGenerator struct {
	mu       sync.RWMutex
	seed     int64
	settings FlatSettings
}

func NewFlatGenerator(seed int64, s FlatSettings) *FlatGenerator {
	if s.DepthChunks < 1 {
		s.DepthChunks = 1
	}
	return &FlatGenerator{seed: seed, settings: s}
}

func (g *FlatGenerator) SetSeed(seed int64) {
	g.mu.Lock()
	g.seed = seed
	g.mu.Unlock()
}

func (g *FlatGenerator) Seed() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seed
}

func (g *FlatGenerator) Type() WorldType { return WorldFlat }

// SurfaceHeightAt is constant for flat terrain.
func (g *FlatGenerator) SurfaceHeightAt(x, z float64) float64 {
	return FlatSurfaceY
}

func (g *FlatGenerator) GenerateChunk(coord ChunkCoord) *Chunk {
	defer profiling.Track("world.FlatGenerator.GenerateChunk")()

	g.mu.RLock()
	seed, s := g.seed, g.settings
	g.mu.RUnlock()

	c := NewChunk(coord)
	bottom := 1 - s.DepthChunks
	switch {
	case coord.Y > 1 || coord.Y < bottom:
		return c
	case coord.Y == 1:
		if s.Decorations {
			g.decorate(c, seed)
		}
		return finishChunk(c)
	}

	c.tree.Fill(NewVoxel(VoxelStone))
	if coord.Y == 0 {
		dirt := NewVoxel(VoxelDirt)
		grass := NewVoxel(VoxelGrass)
		for lx := range ChunkSize {
			for lz := range ChunkSize {
				wx, wz := coord.X*ChunkSize+lx, coord.Z*ChunkSize+lz
				top := dirt
				if (floorDiv(wx, flatTile)+floorDiv(wz, flatTile))%2 == 0 {
					top = grass
				}
				c.put(lx, ChunkHeight-1, lz, top)
				for ly := ChunkHeight - 4; ly < ChunkHeight-1; ly++ {
					c.put(lx, ly, lz, dirt)
				}
			}
		}
	}
	if coord.Y == bottom {
		bedrock := NewVoxel(VoxelBedrock)
		for lx := range ChunkSize {
			for lz := range ChunkSize {
				c.put(lx, 0, lz, bedrock)
			}
		}
	}
	return finishChunk(c)
}

// decorate places up to two features per chunk from a per-chunk random source, so the
// result does not depend on the order in which chunks are loaded.
func (g *FlatGenerator) decorate(c *Chunk, seed int64) {
	coord := c.coord
	rng := rand.New(rand.NewSource(chunkSeed(seed, coord.X, coord.Z)))
	n := rng.Intn(3)
	span := ChunkSize - 2*featureMargin
	for range n {
		lx := featureMargin + rng.Intn(span)
		lz := featureMargin + rng.Intn(span)
		wx, wz := coord.X*ChunkSize+lx, coord.Z*ChunkSize+lz
		if rng.Float64() < 0.6 {
			placeTree(c, wx, FlatSurfaceY, wz, 4+rng.Intn(2))
		} else {
			placeRock(c, wx, FlatSurfaceY, wz, 1+rng.Intn(2), VoxelCobblestone)
		}
	}
}
