package world

import (
	"math"

	"github.com/ojrac/opensimplex-go"
)

// FractalNoise accumulates several octaves of 2D simplex noise.
type FractalNoise struct {
	noise       opensimplex.Noise
	Scale       float64 // frequency of the first octave
	Octaves     int
	Persistence float64
	Lacunarity  float64
}

// NewFractalNoise returns a fractal noise field seeded by seed.
func NewFractalNoise(seed int64, scale float64, octaves int, persistence, lacunarity float64) *FractalNoise {
	return &FractalNoise{
		noise:       opensimplex.New(seed),
		Scale:       scale,
		Octaves:     max(octaves, 1),
		Persistence: persistence,
		Lacunarity:  lacunarity,
	}
}

// Eval2 returns the accumulated noise normalized to [0,1].
func (f *FractalNoise) Eval2(x, z float64) float64 {
	amplitude := 1.0
	frequency := f.Scale
	sum := 0.0
	norm := 0.0
	for range f.Octaves {
		sum += f.noise.Eval2(x*frequency, z*frequency) * amplitude
		norm += amplitude
		amplitude *= f.Persistence
		frequency *= f.Lacunarity
	}
	if norm == 0 {
		return 0.5
	}
	return clamp01((sum/norm)*0.5 + 0.5)
}

// Signed2 returns a single raw octave in [-1,1], used for warp fields.
func (f *FractalNoise) Signed2(x, z float64) float64 {
	return f.noise.Eval2(x*f.Scale, z*f.Scale)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// hash2 is a stable integer hash of a world column combined with the seed.
func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9E3779B97F4A7C15) ^ (uz * 0xBF58476D1CE4E5B9)
	return mix64(v)
}

// chunkSeed derives a per-chunk seed that does not depend on load order.
func chunkSeed(seed int64, cx, cz int) int64 {
	return int64(hash2(seed, cx, cz) >> 1)
}
