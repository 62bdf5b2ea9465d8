package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// RaycastHit describes the first non-air voxel along a ray.
type RaycastHit struct {
	Hit      bool
	Voxel    Voxel
	Position VoxelPos   // world voxel coordinates
	Normal   mgl32.Vec3 // face normal, or radial for spherical hits
	Point    mgl32.Vec3 // origin + direction*Distance
	Distance float32
}

type voxelSource func(x, y, z int) Voxel

// raycastDDA walks the voxel grid cell by cell (Amanatides & Woo) and returns the first non-air
// voxel within maxDist. The normal is the face through which the ray entered that voxel.
func raycastDDA(get voxelSource, origin, dir mgl32.Vec3, maxDist float32) RaycastHit {
	if dir.Len() == 0 || maxDist <= 0 {
		return RaycastHit{}
	}
	dir = dir.Normalize()

	o := [3]float64{float64(origin[0]), float64(origin[1]), float64(origin[2])}
	d := [3]float64{float64(dir[0]), float64(dir[1]), float64(dir[2])}
	cell := [3]int{}
	step := [3]int{}
	tMax := [3]float64{}
	tDelta := [3]float64{}
	for i := range 3 {
		cell[i] = int(math.Floor(o[i]))
		switch {
		case d[i] > 0:
			step[i] = 1
			tMax[i] = (float64(cell[i]+1) - o[i]) / d[i]
			tDelta[i] = 1 / d[i]
		case d[i] < 0:
			step[i] = -1
			tMax[i] = (o[i] - float64(cell[i])) / -d[i]
			tDelta[i] = -1 / d[i]
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	if v := get(cell[0], cell[1], cell[2]); !v.IsAir() {
		return RaycastHit{
			Hit:      true,
			Voxel:    v,
			Position: VoxelPos{cell[0], cell[1], cell[2]},
			Point:    origin,
		}
	}

	limit := float64(maxDist)
	for {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t := tMax[axis]
		if t > limit {
			return RaycastHit{}
		}
		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]

		v := get(cell[0], cell[1], cell[2])
		if v.IsAir() {
			continue
		}
		var normal mgl32.Vec3
		normal[axis] = float32(-step[axis])
		return RaycastHit{
			Hit:      true,
			Voxel:    v,
			Position: VoxelPos{cell[0], cell[1], cell[2]},
			Normal:   normal,
			Point:    origin.Add(dir.Mul(float32(t))),
			Distance: float32(t),
		}
	}
}

// intersectSphere returns the smallest t >= 0 where origin+dir*t meets a sphere centred on the
// world origin. dir must be normalized.
func intersectSphere(origin, dir mgl32.Vec3, radius float64) (float64, bool) {
	o := [3]float64{float64(origin[0]), float64(origin[1]), float64(origin[2])}
	d := [3]float64{float64(dir[0]), float64(dir[1]), float64(dir[2])}
	b := o[0]*d[0] + o[1]*d[1] + o[2]*d[2]
	c := o[0]*o[0] + o[1]*o[1] + o[2]*o[2] - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t >= 0 {
		return t, true
	}
	if t := -b + sq; t >= 0 {
		return t, true
	}
	return 0, false
}

// raycastSphere intersects the ray with the planet sphere. A solid voxel at the intersection is
// returned with a radial normal; otherwise the grid walk continues from the intersection point.
// Rays starting inside the sphere, or not reaching it within maxDist, walk the grid from the origin.
func raycastSphere(get voxelSource, origin, dir mgl32.Vec3, maxDist float32, radius float64) RaycastHit {
	if dir.Len() == 0 || maxDist <= 0 {
		return RaycastHit{}
	}
	dir = dir.Normalize()
	if float64(origin.Len()) < radius {
		// below the nominal surface the grid is already at hand
		return raycastDDA(get, origin, dir, maxDist)
	}
	t, ok := intersectSphere(origin, dir, radius)
	if !ok || t > float64(maxDist) {
		// terrain above the radius can still be in reach
		return raycastDDA(get, origin, dir, maxDist)
	}

	p := origin.Add(dir.Mul(float32(t)))
	pos := VoxelPos{floorInt(p.X()), floorInt(p.Y()), floorInt(p.Z())}
	if v := get(pos.X, pos.Y, pos.Z); !v.IsAir() {
		normal := mgl32.Vec3{0, 1, 0}
		if p.Len() > 0 {
			normal = p.Normalize()
		}
		return RaycastHit{
			Hit:      true,
			Voxel:    v,
			Position: pos,
			Normal:   normal,
			Point:    p,
			Distance: float32(t),
		}
	}

	hit := raycastDDA(get, p, dir, maxDist-float32(t))
	if hit.Hit {
		hit.Distance += float32(t)
		hit.Point = origin.Add(dir.Mul(hit.Distance))
	}
	return hit
}
