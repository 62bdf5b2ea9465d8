package player

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelglobe/internal/world"
)

// Target casts the view ray and returns the voxel the player is looking at within reach.
func (p *Player) Target() world.RaycastHit {
	return p.world.Raycast(p.EyePosition(), p.FrontVector(), p.cfg.Reach)
}

// BreakTarget clears the targeted voxel.
func (p *Player) BreakTarget() (world.VoxelPos, bool) {
	hit := p.Target()
	if !hit.Hit {
		return world.VoxelPos{}, false
	}
	pos := hit.Position
	return pos, p.world.SetVoxel(pos.X, pos.Y, pos.Z, world.Air)
}

// PlaceAtTarget puts v against the targeted face. Placement is refused when the cell is
// occupied or would intersect the player, unless the block ends at or below the feet
// (pillaring up).
func (p *Player) PlaceAtTarget(v world.Voxel) (world.VoxelPos, bool) {
	hit := p.Target()
	if !hit.Hit || v.IsAir() {
		return world.VoxelPos{}, false
	}
	adj := hit.Point.Add(hit.Normal.Mul(0.01))
	pos := world.VoxelPos{
		X: int(math.Floor(float64(adj.X()))),
		Y: int(math.Floor(float64(adj.Y()))),
		Z: int(math.Floor(float64(adj.Z()))),
	}
	if pos == hit.Position || !p.world.GetVoxel(pos.X, pos.Y, pos.Z).IsAir() {
		return pos, false
	}

	block := world.AABB{Min: pos.Vec3(), Max: pos.Vec3().Add(mgl32.Vec3{1, 1, 1})}
	underFeet := block.Max.Y() <= p.Position.Y()+0.001
	if !underFeet && p.Bounds().Intersects(block) {
		return pos, false
	}
	return pos, p.world.SetVoxel(pos.X, pos.Y, pos.Z, v)
}
