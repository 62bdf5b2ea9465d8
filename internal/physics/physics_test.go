package physics

import (
	"io"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"voxelglobe/internal/world"
)

// gridWorld is a chunked world built in memory. With allLoaded set, every chunk
// counts as loaded even if it holds no voxels.
type gridWorld struct {
	chunks    map[world.ChunkCoord]*world.Chunk
	allLoaded bool
}

func newGridWorld(allLoaded bool) *gridWorld {
	return &gridWorld{chunks: make(map[world.ChunkCoord]*world.Chunk), allLoaded: allLoaded}
}

func (g *gridWorld) set(x, y, z int, t world.VoxelType) {
	coord := world.ChunkCoordFromWorld(x, y, z)
	c, ok := g.chunks[coord]
	if !ok {
		c = world.NewChunk(coord)
		g.chunks[coord] = c
	}
	l := world.WorldToLocal(x, y, z)
	c.SetVoxel(l.X, l.Y, l.Z, world.NewVoxel(t))
}

func (g *gridWorld) fill(x0, y0, z0, x1, y1, z1 int, t world.VoxelType) {
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				g.set(x, y, z, t)
			}
		}
	}
}

func (g *gridWorld) GetVoxel(x, y, z int) world.Voxel {
	c, ok := g.chunks[world.ChunkCoordFromWorld(x, y, z)]
	if !ok {
		return world.Air
	}
	l := world.WorldToLocal(x, y, z)
	return c.Voxel(l.X, l.Y, l.Z)
}

func (g *gridWorld) ChunkColliders(coord world.ChunkCoord) ([]world.AABB, bool) {
	c, ok := g.chunks[coord]
	if !ok {
		return nil, g.allLoaded
	}
	return c.Colliders(), true
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func systems() map[string]*CollisionSystem {
	greedy := NewCollisionSystem(DefaultConfig(), quietLog())
	legacy := NewCollisionSystem(DefaultConfig(), quietLog())
	legacy.SetUseGreedy(false)
	return map[string]*CollisionSystem{"greedy": greedy, "legacy": legacy}
}

func near(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func TestCollidesWithBlocksTolerance(t *testing.T) {
	w := newGridWorld(true)
	w.set(0, 0, 0, world.VoxelStone)
	tests := []struct {
		name string
		pos  mgl32.Vec3
		vel  mgl32.Vec3
		want bool
	}{
		{"far away", mgl32.Vec3{5.5, 0, 0.5}, mgl32.Vec3{}, false},
		{"inside", mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{}, true},
		{"resting on top", mgl32.Vec3{0.5, 1.0, 0.5}, mgl32.Vec3{}, false},
		{"touching side", mgl32.Vec3{1.3, 0, 0.5}, mgl32.Vec3{}, false},
		{"inside horizontal epsilon", mgl32.Vec3{1.29, 0, 0.5}, mgl32.Vec3{}, false},
		{"past horizontal epsilon", mgl32.Vec3{1.25, 0, 0.5}, mgl32.Vec3{}, true},
		{"head into block", mgl32.Vec3{0.5, -1, 0.5}, mgl32.Vec3{0, 1, 0}, true},
	}
	for name, s := range systems() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				if got := s.CollidesWithBlocks(tt.pos, tt.vel, w, false).Collided; got != tt.want {
					t.Errorf("Collided = %v, want %v", got, tt.want)
				}
			})
		}
	}
}

func TestCollidesWithBlocksSmallNudgeIsStable(t *testing.T) {
	w := newGridWorld(true)
	w.set(0, 0, 0, world.VoxelStone)
	for name, s := range systems() {
		base := s.CollidesWithBlocks(mgl32.Vec3{1.3, 0, 0.5}, mgl32.Vec3{}, w, false).Collided
		for _, dx := range []float32{-0.005, 0.005, -0.009} {
			if got := s.CollidesWithBlocks(mgl32.Vec3{1.3 + dx, 0, 0.5}, mgl32.Vec3{}, w, false).Collided; got != base {
				t.Errorf("%s: nudge %v flipped result", name, dx)
			}
		}
	}
}

func TestCollidesWithBlocksReportsGround(t *testing.T) {
	w := newGridWorld(true)
	w.set(0, 0, 0, world.VoxelStone)
	for name, s := range systems() {
		res := s.CollidesWithBlocks(mgl32.Vec3{0.5, 1.0, 0.5}, mgl32.Vec3{}, w, false)
		if !res.Snapped || !near(res.SnapY, 1.01, 1e-5) {
			t.Errorf("%s: result = %+v", name, res)
		}
		if wide := s.CollidesWithBlocks(mgl32.Vec3{0.5, 1.0, 0.5}, mgl32.Vec3{}, w, true); wide.Snapped {
			t.Errorf("%s: wide probe reported a snap", name)
		}
		if up := s.CollidesWithBlocks(mgl32.Vec3{0.5, 1.0, 0.5}, mgl32.Vec3{0, 1, 0}, w, false); up.Snapped {
			t.Errorf("%s: rising box reported a snap", name)
		}
	}
}

func TestWideProbe(t *testing.T) {
	w := newGridWorld(true)
	w.set(0, 0, 0, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	pos := mgl32.Vec3{1.29, 0, 0.5}
	if s.CollidesWithBlocks(pos, mgl32.Vec3{}, w, false).Collided {
		t.Fatal("narrow box collided")
	}
	if !s.CollidesWithBlocks(pos, mgl32.Vec3{}, w, true).Collided {
		t.Error("wide box did not collide")
	}
}

func TestUnloadedTerrainFailSafe(t *testing.T) {
	w := newGridWorld(false)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	if !s.CollidesWithBlocks(mgl32.Vec3{0, 40, 0}, mgl32.Vec3{0, -5, 0}, w, false).Collided {
		t.Error("falling into unloaded terrain was not stopped")
	}
	if s.CollidesWithBlocks(mgl32.Vec3{0, 40, 0}, mgl32.Vec3{}, w, false).Collided {
		t.Error("standing still over unloaded terrain collided")
	}
	if s.CollidesWithBlocks(mgl32.Vec3{0, 1000, 0}, mgl32.Vec3{0, -5, 0}, w, false).Collided {
		t.Error("fail-safe fired above the safety altitude")
	}

	pos, onGround := s.MoveWithCollision(mgl32.Vec3{0.5, 40, 0.5}, mgl32.Vec3{0, -2, 0}, mgl32.Vec3{0, -5, 0}, w, false)
	if pos.Y() != 40 || !onGround {
		t.Errorf("pos=%v onGround=%v", pos, onGround)
	}
}

func TestMoveOntoSingleBlock(t *testing.T) {
	w := newGridWorld(true)
	w.set(0, 0, 0, world.VoxelStone)
	for name, s := range systems() {
		pos, onGround := s.MoveWithCollision(mgl32.Vec3{0.5, 1.5, 0.5}, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, -1, 0}, w, false)
		if !onGround {
			t.Errorf("%s: not on ground", name)
		}
		if !near(pos.Y(), 1.01, 1e-4) || pos.X() != 0.5 || pos.Z() != 0.5 {
			t.Errorf("%s: pos = %v", name, pos)
		}
	}
}

func TestGroundSnapWhileFalling(t *testing.T) {
	w := newGridWorld(true)
	w.fill(-2, 0, -2, 4, 0, 4, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	for _, drop := range []float32{0.6, 1.7, 2.5} {
		pos, onGround := s.MoveWithCollision(mgl32.Vec3{1.5, 1 + drop - 0.3, 1.5}, mgl32.Vec3{0, -drop, 0}, mgl32.Vec3{0, -10, 0}, w, false)
		if !onGround || pos.Y() < 1 || pos.Y() > 1+s.Config().GroundClearance+1e-4 {
			t.Errorf("drop %v: pos=%v onGround=%v", drop, pos, onGround)
		}
	}
}

func TestStandingStaysOnGround(t *testing.T) {
	w := newGridWorld(true)
	w.fill(-2, 0, -2, 4, 0, 4, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	pos := mgl32.Vec3{1.5, 1.01, 1.5}
	for range 20 {
		var onGround bool
		pos, onGround = s.MoveWithCollision(pos, mgl32.Vec3{0.05, -0.02, 0}, mgl32.Vec3{1, -0.5, 0}, w, false)
		if !onGround {
			t.Fatalf("lost ground at %v", pos)
		}
	}
	if !near(pos.Y(), 1.01, 1e-4) || !near(pos.X(), 2.5, 1e-3) {
		t.Errorf("pos = %v", pos)
	}
}

func TestMoveNeverTunnels(t *testing.T) {
	w := newGridWorld(true)
	w.fill(3, 0, -3, 3, 3, 3, world.VoxelStone)
	for name, s := range systems() {
		for _, dist := range []float32{0.8, 5, 40} {
			pos, _ := s.MoveWithCollision(mgl32.Vec3{2.5, 1.01, 0.5}, mgl32.Vec3{dist, 0, 0}, mgl32.Vec3{}, w, true)
			if pos.X()+s.Config().Width/2 > 3+s.Config().HorizontalEpsilon+1e-4 {
				t.Errorf("%s: moved %v and ended inside or past the wall at %v", name, dist, pos)
			}
			if pos.X() < 2.6 {
				t.Errorf("%s: stopped too early at %v", name, pos)
			}
		}
		pos, _ := s.MoveWithCollision(mgl32.Vec3{5.5, 1.01, 0.5}, mgl32.Vec3{-6, 0, 0}, mgl32.Vec3{}, w, true)
		if pos.X() < 4 {
			t.Errorf("%s: crossed the wall from the far side: %v", name, pos)
		}
	}
}

func TestMoveSlidesAlongWall(t *testing.T) {
	w := newGridWorld(true)
	w.fill(3, 0, -3, 3, 3, 6, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	pos, _ := s.MoveWithCollision(mgl32.Vec3{2.5, 1.01, 0.5}, mgl32.Vec3{1, 0, 1}, mgl32.Vec3{}, w, true)
	if pos.X() > 2.73 {
		t.Errorf("pushed into the wall: %v", pos)
	}
	if pos.Z() < 1.1 {
		t.Errorf("did not slide along the wall: %v", pos)
	}
}

func TestMoveBlockedCeiling(t *testing.T) {
	w := newGridWorld(true)
	w.fill(-1, 0, -1, 1, 0, 1, world.VoxelStone)
	w.fill(-1, 3, -1, 1, 3, 1, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	pos, onGround := s.MoveWithCollision(mgl32.Vec3{0.5, 1.01, 0.5}, mgl32.Vec3{0, 0.4, 0}, mgl32.Vec3{0, 8, 0}, w, false)
	if onGround || pos.Y() != 1.01 {
		t.Errorf("pos=%v onGround=%v", pos, onGround)
	}
}

func TestFloorClamp(t *testing.T) {
	w := newGridWorld(true)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	pos, onGround := s.MoveWithCollision(mgl32.Vec3{0.5, 0.2, 0.5}, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, -3, 0}, w, false)
	if !onGround || pos.Y() != s.Config().FloorY {
		t.Errorf("pos=%v onGround=%v", pos, onGround)
	}
}

func TestMoveUnembedsPlayer(t *testing.T) {
	w := newGridWorld(true)
	w.set(0, 1, 0, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	start := mgl32.Vec3{0.5, 1.01, 0.5}
	if s.IsPositionSafe(start, w) {
		t.Fatal("start should be embedded")
	}
	pos, onGround := s.MoveWithCollision(start, mgl32.Vec3{}, mgl32.Vec3{}, w, false)
	if !s.IsPositionSafe(pos, w) || s.CollidesWithBlocks(pos, mgl32.Vec3{}, w, false).Collided {
		t.Errorf("still embedded at %v", pos)
	}
	if !onGround || !near(pos.Y(), 2.01, 1e-4) {
		t.Errorf("pos=%v onGround=%v", pos, onGround)
	}
}

func TestMoveRevertsWhenNoEscape(t *testing.T) {
	w := newGridWorld(true)
	w.fill(-6, -6, -6, 6, 6, 6, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	start := mgl32.Vec3{0.5, 0.5, 0.5}
	pos, _ := s.MoveWithCollision(start, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{}, w, true)
	if pos != start {
		t.Errorf("pos = %v, want start %v", pos, start)
	}
}

func TestCheckGroundCollision(t *testing.T) {
	w := newGridWorld(true)
	w.set(0, 0, 0, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())
	if ok, y := s.CheckGroundCollision(mgl32.Vec3{0.5, 1.01, 0.5}, w); !ok || !near(y, 1.01, 1e-5) {
		t.Errorf("on block: %v %v", ok, y)
	}
	if ok, _ := s.CheckGroundCollision(mgl32.Vec3{0.5, 3, 0.5}, w); ok {
		t.Error("ground reported in mid air")
	}
	if ok, _ := s.CheckGroundCollision(mgl32.Vec3{3.5, 1.01, 0.5}, w); ok {
		t.Error("ground reported beside the block")
	}
}

func TestFindSafePosition(t *testing.T) {
	w := newGridWorld(true)
	w.fill(-2, 0, -2, 2, 0, 2, world.VoxelStone)
	w.fill(1, 1, 1, 1, 5, 1, world.VoxelStone)
	s := NewCollisionSystem(DefaultConfig(), quietLog())

	tests := []struct {
		name   string
		pos    mgl32.Vec3
		height float32
		want   mgl32.Vec3
	}{
		{"drop to floor", mgl32.Vec3{-0.5, 0, -0.5}, 10, mgl32.Vec3{-0.5, 1.01, -0.5}},
		{"climb out of pillar", mgl32.Vec3{1.5, 0, 1.5}, 2, mgl32.Vec3{1.5, 6.01, 1.5}},
		{"no ground", mgl32.Vec3{20.3, 0, 20.7}, 10, mgl32.Vec3{20.5, 10, 20.5}},
	}
	for _, tt := range tests {
		if got := s.FindSafePosition(tt.pos, w, tt.height); !got.ApproxEqualThreshold(tt.want, 1e-4) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HorizontalInset = 0.05
	s := NewCollisionSystem(cfg, quietLog())
	pos := mgl32.Vec3{1, 2, 3}
	if got := s.MinBounds(pos); !got.ApproxEqualThreshold(mgl32.Vec3{0.75, 2, 2.75}, 1e-6) {
		t.Errorf("MinBounds = %v", got)
	}
	if got := s.MaxBounds(pos); !got.ApproxEqualThreshold(mgl32.Vec3{1.25, 3.8, 3.25}, 1e-6) {
		t.Errorf("MaxBounds = %v", got)
	}
}
