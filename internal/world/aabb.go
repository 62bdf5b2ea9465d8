package world

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned box in world space.
type AABB struct {
	Min, Max mgl32.Vec3
}

// NewAABB builds a box from any two opposite corners.
func NewAABB(a, b mgl32.Vec3) AABB {
	return AABB{
		Min: mgl32.Vec3{min(a.X(), b.X()), min(a.Y(), b.Y()), min(a.Z(), b.Z())},
		Max: mgl32.Vec3{max(a.X(), b.X()), max(a.Y(), b.Y()), max(a.Z(), b.Z())},
	}
}

// Intersects reports strict overlap (touching faces do not count).
func (b AABB) Intersects(o AABB) bool {
	return b.Min.X() < o.Max.X() && b.Max.X() > o.Min.X() &&
		b.Min.Y() < o.Max.Y() && b.Max.Y() > o.Min.Y() &&
		b.Min.Z() < o.Max.Z() && b.Max.Z() > o.Min.Z()
}

// IntersectsWithTolerance reports overlap deeper than h on X/Z and v on Y.
func (b AABB) IntersectsWithTolerance(o AABB, h, v float32) bool {
	return b.Min.X() < o.Max.X()-h && b.Max.X() > o.Min.X()+h &&
		b.Min.Y() < o.Max.Y()-v && b.Max.Y() > o.Min.Y()+v &&
		b.Min.Z() < o.Max.Z()-h && b.Max.Z() > o.Min.Z()+h
}

// OverlapsXZ reports horizontal overlap deeper than h, ignoring Y.
func (b AABB) OverlapsXZ(o AABB, h float32) bool {
	return b.Min.X() < o.Max.X()-h && b.Max.X() > o.Min.X()+h &&
		b.Min.Z() < o.Max.Z()-h && b.Max.Z() > o.Min.Z()+h
}

func (b AABB) Contains(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

func (b AABB) Translate(d mgl32.Vec3) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Expand grows the box by d on every side.
func (b AABB) Expand(d float32) AABB {
	e := mgl32.Vec3{d, d, d}
	return AABB{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: mgl32.Vec3{min(b.Min.X(), o.Min.X()), min(b.Min.Y(), o.Min.Y()), min(b.Min.Z(), o.Min.Z())},
		Max: mgl32.Vec3{max(b.Max.X(), o.Max.X()), max(b.Max.Y(), o.Max.Y()), max(b.Max.Z(), o.Max.Z())},
	}
}

func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// buildColliders decomposes the solid voxels of a chunk into a small set of boxes.
// Each box starts at the first unvisited solid cell and grows along X, then Y, then Z
// while every cell of the new slab is solid and unvisited.
func buildColliders(t *Octree, origin VoxelPos) []AABB {
	if t.IsEmpty() {
		return nil
	}

	var solid [ChunkVolume]bool
	t.ForEach(func(x, y, z int, v Voxel) {
		if v.IsSolid() {
			solid[colliderIndex(x, y, z)] = true
		}
	})
	var visited [ChunkVolume]bool
	open := func(x, y, z int) bool {
		i := colliderIndex(x, y, z)
		return solid[i] && !visited[i]
	}

	var boxes []AABB
	for z := range ChunkSize {
		for y := range ChunkHeight {
			for x := range ChunkSize {
				if !open(x, y, z) {
					continue
				}

				width, height, depth := 1, 1, 1
				// Grow X
				for x+width < ChunkSize && open(x+width, y, z) {
					width++
				}
				// Grow Y
			growY:
				for y+height < ChunkHeight {
					for tx := x; tx < x+width; tx++ {
						if !open(tx, y+height, z) {
							break growY
						}
					}
					height++
				}
				// Grow Z
			growZ:
				for z+depth < ChunkSize {
					for ty := y; ty < y+height; ty++ {
						for tx := x; tx < x+width; tx++ {
							if !open(tx, ty, z+depth) {
								break growZ
							}
						}
					}
					depth++
				}

				for dz := range depth {
					for dy := range height {
						for dx := range width {
							visited[colliderIndex(x+dx, y+dy, z+dz)] = true
						}
					}
				}

				lo := mgl32.Vec3{float32(origin.X + x), float32(origin.Y + y), float32(origin.Z + z)}
				boxes = append(boxes, AABB{
					Min: lo,
					Max: lo.Add(mgl32.Vec3{float32(width), float32(height), float32(depth)}),
				})
			}
		}
	}
	return boxes
}

func colliderIndex(x, y, z int) int {
	return (z*ChunkHeight+y)*ChunkSize + x
}
