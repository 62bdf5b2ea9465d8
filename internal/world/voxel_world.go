package world

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

// WorldConfig configures a VoxelWorld.
type WorldConfig struct {
	Type                 WorldType         `yaml:"type"`
	Generator            GeneratorSettings `yaml:"generator"`
	Manager              ManagerConfig     `yaml:"manager"`
	SurfaceProbeAltitude float64           `yaml:"surface_probe_altitude"` // start of the downward ray used by SurfaceHeightAt
	SurfaceCacheEntries  int64             `yaml:"surface_cache_entries"`
}

func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Type:                 WorldImproved,
		Generator:            DefaultGeneratorSettings(),
		Manager:              DefaultManagerConfig(),
		SurfaceProbeAltitude: 256,
		SurfaceCacheEntries:  1 << 16,
	}
}

// VoxelWorld composes a generator and a ChunkManager behind the interface used by the
// player, collision and preview code.
type VoxelWorld struct {
	mu       sync.RWMutex
	cfg      WorldConfig
	gen      Generator
	provider StorageProvider

	manager *ChunkManager
	heights *ristretto.Cache[uint64, float64]
	log     *logrus.Entry
}

// NewVoxelWorld builds the generator for cfg.Type and a manager backed by the provider's
// storage for that world. A nil provider disables persistence.
func NewVoxelWorld(cfg WorldConfig, provider StorageProvider, log *logrus.Entry) (*VoxelWorld, error) {
	if provider == nil {
		provider = NopProvider{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.SurfaceProbeAltitude <= 0 {
		cfg.SurfaceProbeAltitude = DefaultWorldConfig().SurfaceProbeAltitude
	}
	if cfg.SurfaceCacheEntries <= 0 {
		cfg.SurfaceCacheEntries = DefaultWorldConfig().SurfaceCacheEntries
	}

	gen, err := NewGenerator(cfg.Type, cfg.Generator)
	if err != nil {
		return nil, err
	}
	heights, err := ristretto.NewCache(&ristretto.Config[uint64, float64]{
		NumCounters: cfg.SurfaceCacheEntries * 10,
		MaxCost:     cfg.SurfaceCacheEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("surface height cache: %w", err)
	}

	storage := provider.StorageFor(cfg.Type, gen.Seed())
	w := &VoxelWorld{
		cfg:      cfg,
		gen:      gen,
		provider: provider,
		heights:  heights,
		log:      log.WithField("component", "voxel-world"),
	}
	w.manager = NewChunkManager(gen, storage, cfg.Manager, log)
	w.log.WithFields(logrus.Fields{"type": cfg.Type, "seed": gen.Seed()}).Info("World created")
	return w, nil
}

func (w *VoxelWorld) Manager() *ChunkManager { return w.manager }

func (w *VoxelWorld) Generator() Generator {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen
}

func (w *VoxelWorld) WorldType() WorldType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen.Type()
}

func (w *VoxelWorld) Seed() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen.Seed()
}

// SetWorldType flushes modified chunks, drops everything loaded and switches to the generator
// and storage namespace of the new type. Nothing changes if the flush fails.
func (w *VoxelWorld) SetWorldType(t WorldType) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t == w.gen.Type() {
		return nil
	}

	settings := w.cfg.Generator
	settings.Seed = w.gen.Seed()
	gen, err := NewGenerator(t, settings)
	if err != nil {
		return err
	}
	if err := w.manager.SaveAllChunks(); err != nil {
		return fmt.Errorf("switch to %v world: %w", t, err)
	}
	w.swapLocked(gen)
	return nil
}

// SetSeed regenerates the world with a new seed, flushing modified chunks first.
func (w *VoxelWorld) SetSeed(seed int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seed == w.gen.Seed() {
		return nil
	}
	if err := w.manager.SaveAllChunks(); err != nil {
		return fmt.Errorf("reseed world: %w", err)
	}
	w.gen.SetSeed(seed)
	w.swapLocked(w.gen)
	return nil
}

func (w *VoxelWorld) swapLocked(gen Generator) {
	w.manager.Clear()
	w.manager.SetGenerator(gen)
	w.manager.SetStorage(w.provider.StorageFor(gen.Type(), gen.Seed()))
	w.heights.Clear()
	w.gen = gen
	w.cfg.Type = gen.Type()
	w.log.WithFields(logrus.Fields{"type": gen.Type(), "seed": gen.Seed()}).Info("World switched")
}

// UpdateAroundViewer refreshes the load queue around the viewer. On a spherical world the
// viewer is first projected into the terrain shell so that an off-surface viewer still
// streams the surface below it.
func (w *VoxelWorld) UpdateAroundViewer(pos mgl32.Vec3) {
	w.mu.RLock()
	gen := w.gen
	w.mu.RUnlock()

	if sg, ok := gen.(*SphericalGenerator); ok {
		pos = projectOntoShell(pos, sg)
	}
	w.manager.UpdateChunksAroundPoint(pos)
}

func projectOntoShell(pos mgl32.Vec3, sg *SphericalGenerator) mgl32.Vec3 {
	inner, outer := sg.Shell()
	r := float64(pos.Len())
	if r == 0 {
		return mgl32.Vec3{0, float32(sg.Radius()), 0}
	}
	clamped := math.Max(inner, math.Min(outer, r))
	return pos.Mul(float32(clamped / r))
}

// Run streams chunks in the background until ctx is done.
func (w *VoxelWorld) Run(ctx context.Context) {
	w.manager.Run(ctx)
}

func (w *VoxelWorld) GetVoxel(x, y, z int) Voxel {
	return w.manager.GetVoxel(x, y, z)
}

// GetBlock returns the type of the voxel at a world position; unloaded space is Air.
func (w *VoxelWorld) GetBlock(p VoxelPos) VoxelType {
	return w.manager.GetVoxel(p.X, p.Y, p.Z).Type
}

func (w *VoxelWorld) SetVoxel(x, y, z int, v Voxel) bool {
	return w.manager.SetVoxel(x, y, z, v)
}

func (w *VoxelWorld) IsChunkLoaded(coord ChunkCoord) bool {
	return w.manager.IsChunkLoaded(coord)
}

func (w *VoxelWorld) Chunks() map[ChunkCoord]*Chunk {
	return w.manager.Chunks()
}

// ChunkColliders returns the greedy collision boxes of a loaded chunk. loaded is false
// when the chunk is not in memory; nothing is loaded as a side effect.
func (w *VoxelWorld) ChunkColliders(coord ChunkCoord) (boxes []AABB, loaded bool) {
	c, ok := w.manager.Lookup(coord)
	if !ok {
		return nil, false
	}
	return c.Colliders(), true
}

// Raycast returns the first non-air voxel along the ray within maxDist. Only loaded chunks
// are considered. Spherical worlds intersect the planet sphere analytically first.
func (w *VoxelWorld) Raycast(origin, dir mgl32.Vec3, maxDist float32) RaycastHit {
	w.mu.RLock()
	gen := w.gen
	w.mu.RUnlock()

	if sg, ok := gen.(*SphericalGenerator); ok {
		return raycastSphere(w.manager.GetVoxel, origin, dir, maxDist, sg.Radius())
	}
	return raycastDDA(w.manager.GetVoxel, origin, dir, maxDist)
}

// SurfaceHeightAt returns the Y of the top face of the terrain column at (x, z). Generators
// with a closed-form height answer directly and are cached; otherwise a ray is cast straight
// down from SurfaceProbeAltitude through loaded chunks. It returns -1 when nothing is found.
func (w *VoxelWorld) SurfaceHeightAt(x, z float64) float64 {
	w.mu.RLock()
	gen := w.gen
	probe := w.cfg.SurfaceProbeAltitude
	w.mu.RUnlock()

	if sh, ok := gen.(SurfaceHeighter); ok {
		key := columnKey(int(math.Floor(x)), int(math.Floor(z)))
		if h, ok := w.heights.Get(key); ok {
			return h
		}
		h := sh.SurfaceHeightAt(x, z)
		w.heights.Set(key, h, 1)
		return h
	}

	origin := mgl32.Vec3{float32(x), float32(probe), float32(z)}
	hit := w.Raycast(origin, mgl32.Vec3{0, -1, 0}, float32(2*probe))
	if !hit.Hit {
		return -1
	}
	return float64(hit.Position.Y + 1)
}

func columnKey(x, z int) uint64 {
	return uint64(uint32(int32(x)))<<32 | uint64(uint32(int32(z)))
}

// Close saves every modified chunk and releases the height cache.
func (w *VoxelWorld) Close() error {
	err := w.manager.Close()
	w.heights.Close()
	return err
}
