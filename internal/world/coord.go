package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Chunk dimensions (chunks are cubic)
	ChunkSize   = 16
	ChunkHeight = 16
	ChunkVolume = ChunkSize * ChunkHeight * ChunkSize
)

// VoxelPos is an integer voxel position, either chunk-local or in world space.
type VoxelPos struct {
	X, Y, Z int
}

// Add returns p translated by o.
func (p VoxelPos) Add(o VoxelPos) VoxelPos {
	return VoxelPos{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

// Vec3 returns the minimum corner of the voxel as a float vector.
func (p VoxelPos) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}
}

// Hash combines all three components.
func (p VoxelPos) Hash() uint64 {
	return hashInts(int64(p.X), int64(p.Y), int64(p.Z))
}

// InChunk reports whether p is a valid chunk-local position.
func (p VoxelPos) InChunk() bool {
	return p.X >= 0 && p.X < ChunkSize && p.Y >= 0 && p.Y < ChunkHeight && p.Z >= 0 && p.Z < ChunkSize
}

// ChunkCoord identifies a chunk in the chunk grid.
type ChunkCoord struct {
	X, Y, Z int
}

// ChunkCoordFromWorld returns the chunk containing the world voxel (x, y, z).
func ChunkCoordFromWorld(x, y, z int) ChunkCoord {
	return ChunkCoord{
		X: floorDiv(x, ChunkSize),
		Y: floorDiv(y, ChunkHeight),
		Z: floorDiv(z, ChunkSize),
	}
}

// ChunkCoordFromPosition returns the chunk containing a world-space point.
func ChunkCoordFromPosition(p mgl32.Vec3) ChunkCoord {
	return ChunkCoordFromWorld(floorInt(p.X()), floorInt(p.Y()), floorInt(p.Z()))
}

// WorldToLocal converts world voxel coordinates to local coordinates inside their chunk.
// Results are always in [0,16), including for negative inputs.
func WorldToLocal(x, y, z int) VoxelPos {
	return VoxelPos{mod(x, ChunkSize), mod(y, ChunkHeight), mod(z, ChunkSize)}
}

// ToWorld converts a chunk-local position into world voxel coordinates.
func (c ChunkCoord) ToWorld(local VoxelPos) VoxelPos {
	return VoxelPos{
		X: c.X*ChunkSize + local.X,
		Y: c.Y*ChunkHeight + local.Y,
		Z: c.Z*ChunkSize + local.Z,
	}
}

// Min returns the lowest world voxel contained in the chunk.
func (c ChunkCoord) Min() VoxelPos {
	return c.ToWorld(VoxelPos{})
}

// Max returns the highest world voxel contained in the chunk (inclusive).
func (c ChunkCoord) Max() VoxelPos {
	return c.ToWorld(VoxelPos{ChunkSize - 1, ChunkHeight - 1, ChunkSize - 1})
}

// Center returns the world-space centre of the chunk.
func (c ChunkCoord) Center() mgl32.Vec3 {
	m := c.Min()
	return mgl32.Vec3{
		float32(m.X) + ChunkSize/2,
		float32(m.Y) + ChunkHeight/2,
		float32(m.Z) + ChunkSize/2,
	}
}

// Bounds returns the chunk volume as a world-space box.
func (c ChunkCoord) Bounds() AABB {
	m := c.Min().Vec3()
	return AABB{Min: m, Max: m.Add(mgl32.Vec3{ChunkSize, ChunkHeight, ChunkSize})}
}

func (c ChunkCoord) DistanceSquared(o ChunkCoord) int {
	dx, dy, dz := c.X-o.X, c.Y-o.Y, c.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

func (c ChunkCoord) Distance(o ChunkCoord) float64 {
	return math.Sqrt(float64(c.DistanceSquared(o)))
}

func (c ChunkCoord) ManhattanDistance(o ChunkCoord) int {
	return absInt(c.X-o.X) + absInt(c.Y-o.Y) + absInt(c.Z-o.Z)
}

// ChebyshevDistance is the number of rings between two chunks.
func (c ChunkCoord) ChebyshevDistance(o ChunkCoord) int {
	return max(absInt(c.X-o.X), absInt(c.Y-o.Y), absInt(c.Z-o.Z))
}

var faceOffsets = [6]ChunkCoord{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// FaceNeighbors returns the six chunks sharing a face with c.
func (c ChunkCoord) FaceNeighbors() [6]ChunkCoord {
	var out [6]ChunkCoord
	for i, o := range faceOffsets {
		out[i] = c.offset(o.X, o.Y, o.Z)
	}
	return out
}

// AllNeighbors returns the 26 chunks surrounding c.
func (c ChunkCoord) AllNeighbors() [26]ChunkCoord {
	var out [26]ChunkCoord
	i := 0
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out[i] = c.offset(dx, dy, dz)
				i++
			}
		}
	}
	return out
}

// IsNeighbor reports whether o touches c (face, edge or corner), excluding c itself.
func (c ChunkCoord) IsNeighbor(o ChunkCoord) bool {
	return c != o && c.ChebyshevDistance(o) == 1
}

func (c ChunkCoord) offset(dx, dy, dz int) ChunkCoord {
	return ChunkCoord{c.X + dx, c.Y + dy, c.Z + dz}
}

// Hash combines all three chunk coordinates.
func (c ChunkCoord) Hash() uint64 {
	return hashInts(int64(c.X), int64(c.Y), int64(c.Z))
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	if r := a % b; r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func floorInt(f float32) int {
	return int(math.Floor(float64(f)))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// mix64 is the splitmix64 finalizer.
func mix64(z uint64) uint64 {
	z += 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func hashInts(x, y, z int64) uint64 {
	v := uint64(x)*0x9E3779B97F4A7C15 ^ uint64(y)*0x517CC1B727220A95 ^ uint64(z)*0x6C62272E07BB0142
	return mix64(v)
}
