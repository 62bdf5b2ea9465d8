package world

import (
	"math"
	"sync"

	"voxelglobe/internal/profiling"
)

// Biome classifies a column for surface materials and features.
type Biome int

const (
	BiomeDesert Biome = iota
	BiomePlains
	BiomeForest
	BiomeMountains
)

func (b Biome) String() string {
	switch b {
	case BiomeDesert:
		return "desert"
	case BiomePlains:
		return "plains"
	case BiomeForest:
		return "forest"
	case BiomeMountains:
		return "mountains"
	}
	return "unknown"
}

const (
	heightCurve   = 1.2
	snowLineRatio = 0.8

	// Salts keep the auxiliary noise fields independent of the terrain field.
	warpXSalt   = 0x5DEECE66D
	warpZSalt   = 0x2545F4914F6CDD1D
	biomeSalt   = 0x27BB2EE687B0B0FD
	featureSalt = 0x632BE59BD9B4E019
)

type improvedNoise struct {
	terrain *FractalNoise
	warpX   *FractalNoise
	warpZ   *FractalNoise
	biome   *FractalNoise
}

// ImprovedGenerator builds domain-warped terrain with biomes and scattered trees and rocks.
type ImprovedGenerator struct {
	mu       sync.RWMutex
	seed     int64
	settings ImprovedSettings
	noise    improvedNoise
}

func NewImprovedGenerator(seed int64, s ImprovedSettings) *ImprovedGenerator {
	g := &ImprovedGenerator{settings: s}
	g.SetSeed(seed)
	return g
}

func (g *ImprovedGenerator) SetSeed(seed int64) {
	s := g.settings
	n := improvedNoise{
		terrain: NewFractalNoise(seed, s.Scale, s.Octaves, s.Persistence, s.Lacunarity),
		warpX:   NewFractalNoise(seed^warpXSalt, s.WarpScale, 1, 0.5, 2),
		warpZ:   NewFractalNoise(seed^warpZSalt, s.WarpScale, 1, 0.5, 2),
		biome:   NewFractalNoise(seed^biomeSalt, s.BiomeScale, 2, 0.5, 2),
	}
	g.mu.Lock()
	g.seed = seed
	g.noise = n
	g.mu.Unlock()
}

func (g *ImprovedGenerator) Seed() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seed
}

func (g *ImprovedGenerator) Type() WorldType { return WorldImproved }

func (g *ImprovedGenerator) state() (int64, improvedNoise) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seed, g.noise
}

func (g *ImprovedGenerator) rawHeight(n improvedNoise, x, z float64) float64 {
	s := g.settings
	wx := x + n.warpX.Signed2(x, z)*s.WarpStrength
	wz := z + n.warpZ.Signed2(x, z)*s.WarpStrength
	h := n.terrain.Eval2(wx, wz)
	return s.BaseHeight + math.Pow(h, heightCurve)*s.Amplitude
}

func (g *ImprovedGenerator) columnTop(n improvedNoise, wx, wz int) int {
	h := g.rawHeight(n, float64(wx), float64(wz))
	return max(int(math.Floor(h)), g.settings.FloorY)
}

// SurfaceHeightAt returns the top face of the column containing (x, z) without touching any chunk.
func (g *ImprovedGenerator) SurfaceHeightAt(x, z float64) float64 {
	_, n := g.state()
	return float64(g.columnTop(n, int(math.Floor(x)), int(math.Floor(z))) + 1)
}

// BiomeAt returns the biome of a world column.
func (g *ImprovedGenerator) BiomeAt(wx, wz int) Biome {
	_, n := g.state()
	return g.biomeAt(n, wx, wz)
}

func (g *ImprovedGenerator) biomeAt(n improvedNoise, wx, wz int) Biome {
	b := n.biome.Eval2(float64(wx), float64(wz))
	switch {
	case b < 0.3:
		return BiomeDesert
	case b < 0.55:
		return BiomePlains
	case b < 0.75:
		return BiomeForest
	default:
		return BiomeMountains
	}
}

func (g *ImprovedGenerator) maxHeight() int {
	s := g.settings
	return int(math.Ceil(s.BaseHeight + s.Amplitude))
}

func (g *ImprovedGenerator) GenerateChunk(coord ChunkCoord) *Chunk {
	defer profiling.Track("world.ImprovedGenerator.GenerateChunk")()

	c := NewChunk(coord)
	lo, hi := columnRange(coord)
	s := g.settings
	if lo > g.maxHeight()+maxFeatureRise || hi < s.FloorY {
		return c
	}

	seed, n := g.state()
	snowLine := int(s.BaseHeight + snowLineRatio*s.Amplitude)
	stone := NewVoxel(VoxelStone)
	bedrock := NewVoxel(VoxelBedrock)

	for lx := range ChunkSize {
		for lz := range ChunkSize {
			wx, wz := coord.X*ChunkSize+lx, coord.Z*ChunkSize+lz
			top := g.columnTop(n, wx, wz)
			biome := g.biomeAt(n, wx, wz)
			surface, filler := biomeMaterials(biome, top >= snowLine)

			for wy := max(lo, s.FloorY); wy <= min(hi, top); wy++ {
				var v Voxel
				switch depth := top - wy; {
				case wy == s.FloorY:
					v = bedrock
				case depth == 0:
					v = surface
				case depth <= dirtLayers:
					v = filler
				default:
					v = stone
				}
				c.put(lx, wy-lo, lz, v)
			}

			if lx < featureMargin || lx >= ChunkSize-featureMargin ||
				lz < featureMargin || lz >= ChunkSize-featureMargin {
				continue
			}
			if featureSpan(coord, top+1) {
				g.placeFeature(c, seed, biome, wx, top+1, wz)
			}
		}
	}
	return finishChunk(c)
}

// placeFeature decides from a hash of the column whether a tree or rock grows there.
// The decision only depends on world position, so a feature spanning two chunk layers is
// reproduced identically by both.
func (g *ImprovedGenerator) placeFeature(c *Chunk, seed int64, biome Biome, wx, baseY, wz int) {
	h := hash2(seed^featureSalt, wx, wz)
	threshold := uint64(g.settings.FeatureChance * 1000)
	if h%1000 >= threshold {
		return
	}
	pick := h >> 16
	switch biome {
	case BiomeForest, BiomePlains:
		placeTree(c, wx, baseY, wz, 4+int(pick%3))
	case BiomeMountains:
		placeRock(c, wx, baseY, wz, 1+int(pick%2), VoxelRock)
	case BiomeDesert:
		placeRock(c, wx, baseY, wz, 1, VoxelCobblestone)
	}
}

func biomeMaterials(b Biome, snowy bool) (surface, filler Voxel) {
	switch {
	case snowy:
		return NewVoxel(VoxelSnow), NewVoxel(VoxelRock)
	case b == BiomeDesert:
		return NewVoxel(VoxelSand), NewVoxel(VoxelSand)
	case b == BiomeMountains:
		return NewVoxel(VoxelRock), NewVoxel(VoxelStone)
	default:
		return NewVoxel(VoxelGrass), NewVoxel(VoxelDirt)
	}
}
