package world

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Chunk represents a 16x16x16 block of voxels backed by a sparse octree.
type Chunk struct {
	coord ChunkCoord

	mu             sync.RWMutex
	tree           *Octree
	modified       bool
	colliders      []AABB
	collidersValid bool

	lastAccess atomic.Int64
	refs       atomic.Int32
	evicted    atomic.Bool
}

var accessClock atomic.Int64

// nextAccessStamp returns wall-clock nanoseconds, bumped so that stamps are strictly increasing.
func nextAccessStamp() int64 {
	now := time.Now().UnixNano()
	for {
		last := accessClock.Load()
		next := max(now, last+1)
		if accessClock.CompareAndSwap(last, next) {
			return next
		}
	}
}

// NewChunk creates an empty (all air) chunk at the given chunk coordinates.
func NewChunk(coord ChunkCoord) *Chunk {
	c := &Chunk{
		coord: coord,
		tree:  NewOctree(),
	}
	c.Touch()
	return c
}

func (c *Chunk) Coord() ChunkCoord {
	return c.coord
}

// Touch refreshes the access time used for LRU eviction.
func (c *Chunk) Touch() {
	c.lastAccess.Store(nextAccessStamp())
}

// LastAccess returns the monotonic access stamp (Unix nanoseconds).
func (c *Chunk) LastAccess() int64 {
	return c.lastAccess.Load()
}

func (c *Chunk) LastAccessTime() time.Time {
	return time.Unix(0, c.LastAccess())
}

// Voxel returns the voxel at local coordinates. Out-of-range reads return Air.
func (c *Chunk) Voxel(x, y, z int) Voxel {
	c.Touch()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.Get(x, y, z)
}

// SetVoxel stores v at local coordinates and reports whether anything changed.
// The chunk is marked modified only on a real change.
func (c *Chunk) SetVoxel(x, y, z int, v Voxel) bool {
	c.Touch()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tree.Set(x, y, z, v) {
		return false
	}
	c.modified = true
	c.collidersValid = false
	return true
}

// SetVoxelExtended accepts local coordinates outside [0,16). When the position belongs to
// another chunk nothing is written; the owning chunk and its local position are returned with
// crossed=true so the caller can forward the write.
func (c *Chunk) SetVoxelExtended(x, y, z int, v Voxel) (target ChunkCoord, local VoxelPos, crossed bool) {
	p := VoxelPos{x, y, z}
	if p.InChunk() {
		c.SetVoxel(x, y, z, v)
		return c.coord, p, false
	}
	w := c.coord.ToWorld(p)
	return ChunkCoordFromWorld(w.X, w.Y, w.Z), WorldToLocal(w.X, w.Y, w.Z), true
}

// put writes without touching access or modification state. Used while a chunk
// is still private to its generator or decoder.
func (c *Chunk) put(x, y, z int, v Voxel) {
	c.tree.Set(x, y, z, v)
}

// Fill replaces the whole content with a single voxel value.
func (c *Chunk) Fill(v Voxel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.Fill(v)
	c.modified = true
	c.collidersValid = false
}

// IsModified reports whether the chunk differs from what storage/generation produced.
func (c *Chunk) IsModified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modified
}

// ClearModified marks the chunk as persisted.
func (c *Chunk) ClearModified() {
	c.mu.Lock()
	c.modified = false
	c.mu.Unlock()
}

// IsEmpty reports whether the chunk contains only air.
func (c *Chunk) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.IsEmpty()
}

// VoxelCount returns the number of non-air voxels.
func (c *Chunk) VoxelCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.Count()
}

// IsVoxelVisible reports whether the voxel is non-air and has at least one face
// that is not covered by a solid voxel. Faces on the chunk border count as exposed.
func (c *Chunk) IsVoxelVisible(x, y, z int) bool {
	c.Touch()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visibleLocked(x, y, z, c.tree.Get(x, y, z))
}

func (c *Chunk) visibleLocked(x, y, z int, v Voxel) bool {
	if v.IsAir() {
		return false
	}
	for _, o := range faceOffsets {
		n := VoxelPos{x + o.X, y + o.Y, z + o.Z}
		if !n.InChunk() || !c.tree.Get(n.X, n.Y, n.Z).IsSolid() {
			return true
		}
	}
	return false
}

// VisibleVoxels returns the local positions of every visible voxel.
func (c *Chunk) VisibleVoxels() []VoxelPos {
	c.Touch()
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []VoxelPos
	c.tree.ForEach(func(x, y, z int, v Voxel) {
		if c.visibleLocked(x, y, z, v) {
			out = append(out, VoxelPos{x, y, z})
		}
	})
	return out
}

// ForEachVoxel calls fn for every non-air voxel with its local position.
// fn must not write to the chunk.
func (c *Chunk) ForEachVoxel(fn func(p VoxelPos, v Voxel)) {
	c.Touch()
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.tree.ForEach(func(x, y, z int, v Voxel) {
		fn(VoxelPos{x, y, z}, v)
	})
}

// Optimize merges uniform octree regions and returns the number of merged nodes.
func (c *Chunk) Optimize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Optimize()
}

// Colliders returns the greedy-meshed collision boxes of the chunk in world space.
// The list is rebuilt whenever the voxel content changed.
func (c *Chunk) Colliders() []AABB {
	c.Touch()
	c.mu.RLock()
	if c.collidersValid {
		boxes := c.colliders
		c.mu.RUnlock()
		return boxes
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.collidersValid {
		c.colliders = buildColliders(c.tree, c.coord.Min())
		c.collidersValid = true
	}
	return c.colliders
}

var chunkBaseBytes = int64(unsafe.Sizeof(Chunk{}))

// MemoryUsage estimates the heap footprint of the chunk in bytes.
func (c *Chunk) MemoryUsage() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return chunkBaseBytes + c.tree.MemoryUsage() + int64(cap(c.colliders))*int64(unsafe.Sizeof(AABB{}))
}

// Retain pins the chunk so that the manager will not evict it.
func (c *Chunk) Retain() {
	c.refs.Add(1)
}

// Release drops a reference taken with Retain.
func (c *Chunk) Release() {
	if c.refs.Add(-1) < 0 {
		c.refs.Store(0)
	}
}

func (c *Chunk) RefCount() int {
	return int(c.refs.Load())
}

// Evicted reports whether the manager has dropped this chunk. A caller holding a
// pointer across an eviction can detect it here instead of reading stale data silently.
func (c *Chunk) Evicted() bool {
	return c.evicted.Load()
}

func (c *Chunk) markEvicted() {
	c.evicted.Store(true)
}

// DenseIndex is the cell order used by Dense and NewChunkFromDense: X fastest, then Z, then Y.
func DenseIndex(x, y, z int) int {
	return (y*ChunkSize+z)*ChunkSize + x
}

// Dense returns a flat copy of every cell, Air included.
func (c *Chunk) Dense() []Voxel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cells := make([]Voxel, ChunkVolume)
	c.tree.ForEach(func(x, y, z int, v Voxel) {
		cells[DenseIndex(x, y, z)] = v
	})
	return cells
}

// NewChunkFromDense rebuilds a chunk from cells laid out by DenseIndex.
// The result is unmodified: it matches what was persisted.
func NewChunkFromDense(coord ChunkCoord, cells []Voxel) (*Chunk, error) {
	if len(cells) != ChunkVolume {
		return nil, fmt.Errorf("chunk %v: got %d cells, want %d", coord, len(cells), ChunkVolume)
	}
	c := NewChunk(coord)
	for y := range ChunkHeight {
		for z := range ChunkSize {
			for x := range ChunkSize {
				if v := cells[DenseIndex(x, y, z)]; !v.IsAir() {
					c.put(x, y, z, v)
				}
			}
		}
	}
	c.tree.Optimize()
	return c, nil
}
