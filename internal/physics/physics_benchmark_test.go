package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelglobe/internal/world"
)

func flatWorld(tb testing.TB) *world.VoxelWorld {
	tb.Helper()
	cfg := world.DefaultWorldConfig()
	cfg.Type = world.WorldFlat
	cfg.Generator.Flat.Decorations = false
	w, err := world.NewVoxelWorld(cfg, nil, quietLog())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { w.Close() })
	for x := -1; x <= 1; x++ {
		for z := -1; z <= 1; z++ {
			for y := 0; y <= 1; y++ {
				w.Manager().ForceLoadChunk(world.ChunkCoord{X: x, Y: y, Z: z})
			}
		}
	}
	return w
}

func TestLandOnFlatWorld(t *testing.T) {
	w := flatWorld(t)
	for name, s := range systems() {
		pos := mgl32.Vec3{0.5, 22, 0.5}
		var onGround bool
		for range 10 {
			pos, onGround = s.MoveWithCollision(pos, mgl32.Vec3{0.1, -1.2, 0}, mgl32.Vec3{2, -24, 0}, w, false)
		}
		want := float32(world.FlatSurfaceY) + s.Config().GroundClearance
		if !onGround || !near(pos.Y(), want, 1e-4) {
			t.Errorf("%s: pos=%v onGround=%v, want Y %v", name, pos, onGround, want)
		}
		if !near(pos.X(), 1.5, 1e-3) {
			t.Errorf("%s: horizontal movement lost: %v", name, pos)
		}
	}
}

func BenchmarkCollidesWithBlocks(b *testing.B) {
	w := flatWorld(b)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	pos := mgl32.Vec3{0.5, 16.01, 0.5}
	vel := mgl32.Vec3{0, -1, 0}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.CollidesWithBlocks(pos, vel, w, false)
	}
}

func BenchmarkMoveWithCollision(b *testing.B) {
	w := flatWorld(b)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	start := mgl32.Vec3{0.5, 16.01, 0.5}
	move := mgl32.Vec3{0.2, -0.05, 0.1}
	vel := mgl32.Vec3{4, -1, 2}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.MoveWithCollision(start, move, vel, w, false)
	}
}
