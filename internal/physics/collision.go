package physics

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"voxelglobe/internal/logging"
	"voxelglobe/internal/profiling"
	"voxelglobe/internal/world"
)

// World is the read side of a voxel world the collision system needs.
type World interface {
	GetVoxel(x, y, z int) world.Voxel
	// ChunkColliders returns the merged solid boxes of a chunk and whether it is loaded.
	ChunkColliders(coord world.ChunkCoord) ([]world.AABB, bool)
}

type Config struct {
	Width  float32 `yaml:"width"`
	Height float32 `yaml:"height"`
	// HorizontalInset shrinks the box on X/Z so the player fits through one-wide gaps.
	HorizontalInset float32 `yaml:"horizontal_inset"`
	// HeadOffset is the height above the feet checked by IsPositionSafe.
	HeadOffset float32 `yaml:"head_offset"`

	HorizontalEpsilon float32 `yaml:"horizontal_epsilon"`
	VerticalEpsilon   float32 `yaml:"vertical_epsilon"`
	GroundClearance   float32 `yaml:"ground_clearance"`
	GroundProbe       float32 `yaml:"ground_probe"`
	// SnapReach is how far above the feet a ground top may be and still be snapped onto.
	SnapReach float32 `yaml:"snap_reach"`

	HorizontalStep float32 `yaml:"horizontal_step"`
	VerticalStep   float32 `yaml:"vertical_step"`
	MaxIterations  int     `yaml:"max_iterations"`
	FloorY         float32 `yaml:"floor_y"`
	// SafetyAltitude bounds the unloaded-terrain fail-safe.
	SafetyAltitude float32 `yaml:"safety_altitude"`

	SearchStep    float32 `yaml:"search_step"`
	SearchMax     float32 `yaml:"search_max"`
	SafeScanRange int     `yaml:"safe_scan_range"`

	UseGreedy   bool          `yaml:"use_greedy"`
	LogInterval time.Duration `yaml:"log_interval"`
}

func DefaultConfig() Config {
	return Config{
		Width:             0.6,
		Height:            1.8,
		HeadOffset:        1.6,
		HorizontalEpsilon: 0.02,
		VerticalEpsilon:   0.01,
		GroundClearance:   0.01,
		GroundProbe:       0.05,
		SnapReach:         0.6,
		HorizontalStep:    0.01,
		VerticalStep:      0.5,
		MaxIterations:     10000,
		FloorY:            0.01,
		SafetyAltitude:    256,
		SearchStep:        0.5,
		SearchMax:         3,
		SafeScanRange:     64,
		UseGreedy:         true,
		LogInterval:       time.Second,
	}
}

// CollisionResult reports an overlap and, when ground was found under a descending box,
// the Y the feet should rest at.
type CollisionResult struct {
	Collided bool
	Snapped  bool
	SnapY    float32
}

type CollisionSystem struct {
	cfg Config
	log *logging.Throttled
}

func NewCollisionSystem(cfg Config, log *logrus.Entry) *CollisionSystem {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.HeadOffset <= 0 || cfg.HeadOffset > cfg.Height {
		cfg.HeadOffset = cfg.Height * 0.9
	}
	if cfg.HorizontalStep <= 0 {
		cfg.HorizontalStep = def.HorizontalStep
	}
	if cfg.VerticalStep <= 0 {
		cfg.VerticalStep = def.VerticalStep
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.SearchStep <= 0 {
		cfg.SearchStep = def.SearchStep
	}
	if cfg.SafeScanRange <= 0 {
		cfg.SafeScanRange = def.SafeScanRange
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CollisionSystem{
		cfg: cfg,
		log: logging.NewThrottled(log.WithField("component", "collision"), cfg.LogInterval, 5),
	}
}

func (s *CollisionSystem) Config() Config {
	return s.cfg
}

func (s *CollisionSystem) SetUseGreedy(v bool) {
	s.cfg.UseGreedy = v
}

// MinBounds returns the low corner of the player box standing at feet position pos.
func (s *CollisionSystem) MinBounds(pos mgl32.Vec3) mgl32.Vec3 {
	half := s.cfg.Width/2 - s.cfg.HorizontalInset
	return mgl32.Vec3{pos.X() - half, pos.Y(), pos.Z() - half}
}

func (s *CollisionSystem) MaxBounds(pos mgl32.Vec3) mgl32.Vec3 {
	half := s.cfg.Width/2 - s.cfg.HorizontalInset
	return mgl32.Vec3{pos.X() + half, pos.Y() + s.cfg.Height, pos.Z() + half}
}

func (s *CollisionSystem) box(pos mgl32.Vec3, wide bool) world.AABB {
	b := world.AABB{Min: s.MinBounds(pos), Max: s.MaxBounds(pos)}
	if wide {
		e := s.cfg.HorizontalEpsilon
		b.Min = b.Min.Sub(mgl32.Vec3{e, 0, e})
		b.Max = b.Max.Add(mgl32.Vec3{e, 0, e})
	}
	return b
}

// CollidesWithBlocks tests the player box at feet position pos against the world.
// Wide probes use a slightly larger box and never report a snap height.
func (s *CollisionSystem) CollidesWithBlocks(pos, vel mgl32.Vec3, w World, wide bool) CollisionResult {
	defer profiling.Track("physics.CollidesWithBlocks")()
	var res CollisionResult
	if s.cfg.UseGreedy {
		res = s.collidesGreedy(pos, vel, w, wide)
	} else {
		res = s.collidesLegacy(pos, vel, w, wide)
	}
	if wide {
		res.Snapped = false
		res.SnapY = 0
	}
	return res
}

func (s *CollisionSystem) groundCandidate(box, collider world.AABB) bool {
	top := collider.Max.Y()
	return top >= box.Min.Y()-s.cfg.GroundProbe &&
		top <= box.Min.Y()+s.cfg.SnapReach &&
		box.OverlapsXZ(collider, s.cfg.HorizontalEpsilon)
}

func (s *CollisionSystem) collidesGreedy(pos, vel mgl32.Vec3, w World, wide bool) CollisionResult {
	box := s.box(pos, wide)
	descending := vel.Y() <= 0

	lo := world.ChunkCoordFromPosition(box.Min.Sub(mgl32.Vec3{0, s.cfg.GroundProbe, 0}))
	hi := world.ChunkCoordFromPosition(box.Max)

	var res CollisionResult
	loaded := 0
	bestTop := float32(math.Inf(-1))
	for cx := lo.X; cx <= hi.X; cx++ {
		for cy := lo.Y; cy <= hi.Y; cy++ {
			for cz := lo.Z; cz <= hi.Z; cz++ {
				colliders, ok := w.ChunkColliders(world.ChunkCoord{X: cx, Y: cy, Z: cz})
				if !ok {
					continue
				}
				loaded++
				for _, c := range colliders {
					if box.IntersectsWithTolerance(c, s.cfg.HorizontalEpsilon, s.cfg.VerticalEpsilon) {
						res.Collided = true
						if !descending {
							return res
						}
					}
					if descending && s.groundCandidate(box, c) && c.Max.Y() > bestTop {
						bestTop = c.Max.Y()
					}
				}
			}
		}
	}

	if loaded == 0 {
		if vel.Y() < 0 && pos.Y() < s.cfg.SafetyAltitude {
			s.log.Debugf("no loaded chunks under falling player at %v, holding position", pos)
			res.Collided = true
		}
		return res
	}
	if !math.IsInf(float64(bestTop), -1) {
		res.Snapped = true
		res.SnapY = bestTop + s.cfg.GroundClearance
	}
	return res
}

func (s *CollisionSystem) collidesLegacy(pos, vel mgl32.Vec3, w World, wide bool) CollisionResult {
	box := s.box(pos, wide)
	x0, x1 := floorInt(box.Min.X()), floorInt(box.Max.X())
	y0, y1 := floorInt(box.Min.Y()), floorInt(box.Max.Y())
	z0, z1 := floorInt(box.Min.Z()), floorInt(box.Max.Z())

	var res CollisionResult
scan:
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				if !w.GetVoxel(x, y, z).IsSolid() {
					continue
				}
				if box.IntersectsWithTolerance(blockBox(x, y, z), s.cfg.HorizontalEpsilon, s.cfg.VerticalEpsilon) {
					res.Collided = true
					break scan
				}
			}
		}
	}
	if vel.Y() > 0 {
		return res
	}

	// The main loop misses thin floors at box edges; probe the layer under the feet separately.
	layer := floorInt(box.Min.Y() - s.cfg.GroundProbe)
	for x := x0; x <= x1; x++ {
		for z := z0; z <= z1; z++ {
			if !w.GetVoxel(x, layer, z).IsSolid() {
				continue
			}
			b := blockBox(x, layer, z)
			if !s.groundCandidate(box, b) {
				continue
			}
			if vel.Y() < 0 {
				res.Collided = true
			}
			res.Snapped = true
			res.SnapY = b.Max.Y() + s.cfg.GroundClearance
			return res
		}
	}
	return res
}

// CheckGroundCollision reports whether the feet at pos rest on ground and the Y to rest at.
func (s *CollisionSystem) CheckGroundCollision(pos mgl32.Vec3, w World) (bool, float32) {
	probe := pos.Sub(mgl32.Vec3{0, s.cfg.GroundProbe, 0})
	res := s.CollidesWithBlocks(probe, mgl32.Vec3{0, -1, 0}, w, false)
	switch {
	case res.Snapped:
		return true, res.SnapY
	case res.Collided:
		return true, pos.Y()
	}
	return false, pos.Y()
}

// IsPositionSafe reports whether neither the body centre nor the head is inside a solid voxel.
func (s *CollisionSystem) IsPositionSafe(pos mgl32.Vec3, w World) bool {
	x, z := floorInt(pos.X()), floorInt(pos.Z())
	center := floorInt(pos.Y() + s.cfg.Height/2)
	head := floorInt(pos.Y() + s.cfg.HeadOffset)
	return !w.GetVoxel(x, center, z).IsSolid() && !w.GetVoxel(x, head, z).IsSolid()
}

func (s *CollisionSystem) clear(pos mgl32.Vec3, w World) bool {
	return s.IsPositionSafe(pos, w) && !s.CollidesWithBlocks(pos, mgl32.Vec3{}, w, false).Collided
}

var searchDirections = [...]mgl32.Vec3{
	{0, 1, 0}, {0, -1, 0},
	{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1},
	{1, 1, 0}, {-1, 1, 0}, {0, 1, 1}, {0, 1, -1},
}

// unembed searches outward from pos for a clear position.
func (s *CollisionSystem) unembed(pos mgl32.Vec3, w World) (mgl32.Vec3, bool) {
	for d := s.cfg.SearchStep; d <= s.cfg.SearchMax+1e-4; d += s.cfg.SearchStep {
		for _, dir := range searchDirections {
			p := pos.Add(dir.Normalize().Mul(d))
			if s.clear(p, w) {
				return p, true
			}
		}
	}
	return pos, false
}

// MoveWithCollision applies movement to the feet position pos, horizontal first then vertical,
// and returns the resolved position and whether the player ended on the ground.
func (s *CollisionSystem) MoveWithCollision(pos, movement, vel mgl32.Vec3, w World, isFlying bool) (mgl32.Vec3, bool) {
	defer profiling.Track("physics.MoveWithCollision")()
	start := pos
	if !s.IsPositionSafe(pos, w) {
		if p, ok := s.unembed(pos, w); ok {
			s.log.Debugf("moved embedded player from %v to %v", pos, p)
			pos = p
			start = p
		}
	}

	pos = s.moveHorizontal(pos, movement, vel, w)
	pos, onGround := s.moveVertical(pos, movement.Y(), vel, w)

	if !isFlying && !onGround && movement.Y() <= 0 {
		if ground, y := s.CheckGroundCollision(pos, w); ground && y >= pos.Y()-s.cfg.GroundProbe {
			onGround = true
			pos[1] = y
		}
	}

	if !s.IsPositionSafe(pos, w) {
		if p, ok := s.unembed(pos, w); ok {
			pos = p
		} else {
			s.log.Warnf("player embedded at %v after move, reverting to %v", pos, start)
			pos = start
		}
	}

	if pos.Y() < 0 {
		pos[1] = s.cfg.FloorY
		onGround = true
	}
	return pos, onGround
}

func (s *CollisionSystem) moveHorizontal(pos, movement, vel mgl32.Vec3, w World) mgl32.Vec3 {
	h := mgl32.Vec3{movement.X(), 0, movement.Z()}
	dist := h.Len()
	if dist == 0 {
		return pos
	}
	dir := h.Mul(1 / dist)
	hvel := mgl32.Vec3{vel.X(), 0, vel.Z()}
	blocked := func(p mgl32.Vec3) bool {
		return s.CollidesWithBlocks(p, hvel, w, false).Collided
	}

	var moved float32
	for i := 0; moved < dist && i < s.cfg.MaxIterations; i++ {
		step := min(s.cfg.HorizontalStep, dist-moved)
		delta := dir.Mul(step)
		moved += step

		next := pos.Add(delta)
		if !blocked(next) {
			pos = next
			continue
		}
		xOnly := pos.Add(mgl32.Vec3{delta.X(), 0, 0})
		zOnly := pos.Add(mgl32.Vec3{0, 0, delta.Z()})
		switch {
		case delta.X() != 0 && !blocked(xOnly):
			pos = xOnly
		case delta.Z() != 0 && !blocked(zOnly):
			pos = zOnly
		default:
			return pos
		}
	}
	return pos
}

func (s *CollisionSystem) moveVertical(pos mgl32.Vec3, dy float32, vel mgl32.Vec3, w World) (mgl32.Vec3, bool) {
	if dy == 0 {
		return pos, false
	}
	probeVel := mgl32.Vec3{vel.X(), dy, vel.Z()}
	remaining := dy
	for i := 0; remaining != 0 && i < s.cfg.MaxIterations; i++ {
		step := mgl32.Clamp(remaining, -s.cfg.VerticalStep, s.cfg.VerticalStep)
		next := pos.Add(mgl32.Vec3{0, step, 0})
		res := s.CollidesWithBlocks(next, probeVel, w, false)
		if res.Collided {
			if step > 0 {
				return pos, false
			}
			if res.Snapped {
				pos[1] = res.SnapY
			}
			return pos, true
		}
		pos = next
		remaining -= step
	}
	return pos, false
}

// FindSafePosition looks for a clear spot with ground beneath it in the column at pos,
// starting at startHeight. It falls back to the block centre at startHeight.
func (s *CollisionSystem) FindSafePosition(pos mgl32.Vec3, w World, startHeight float32) mgl32.Vec3 {
	defer profiling.Track("physics.FindSafePosition")()
	p := mgl32.Vec3{pos.X(), startHeight, pos.Z()}
	for i := 0; i < s.cfg.SafeScanRange && !s.clear(p, w); i++ {
		p[1]++
	}

	x, z := floorInt(p.X()), floorInt(p.Z())
	top := floorInt(p.Y())
	for y := top; y > top-s.cfg.SafeScanRange; y-- {
		c := mgl32.Vec3{p.X(), float32(y) + s.cfg.GroundClearance, p.Z()}
		if w.GetVoxel(x, y-1, z).IsSolid() && s.clear(c, w) {
			return c
		}
	}

	s.log.Debugf("no safe ground below %v, using block centre", p)
	return mgl32.Vec3{
		float32(floorInt(pos.X())) + 0.5,
		startHeight,
		float32(floorInt(pos.Z())) + 0.5,
	}
}

func blockBox(x, y, z int) world.AABB {
	lo := mgl32.Vec3{float32(x), float32(y), float32(z)}
	return world.AABB{Min: lo, Max: lo.Add(mgl32.Vec3{1, 1, 1})}
}

func floorInt(f float32) int {
	return int(math.Floor(float64(f)))
}
