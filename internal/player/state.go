package player

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelglobe/internal/physics"
	"voxelglobe/internal/world"
)

const (
	PlayerEyeHeight = 1.62
	PlayerHeight    = 1.8
)

// Config holds the movement constants. Speeds and drags are per 20 Hz game tick and get
// rescaled by the real frame time.
type Config struct {
	Gravity          float32 `yaml:"gravity"`
	TerminalVelocity float32 `yaml:"terminal_velocity"`
	WalkSpeed        float32 `yaml:"walk_speed"`
	SprintMultiplier float32 `yaml:"sprint_multiplier"`
	SneakMultiplier  float32 `yaml:"sneak_multiplier"`
	JumpVelocity     float32 `yaml:"jump_velocity"`
	AirAcceleration  float32 `yaml:"air_acceleration"`
	AirDrag          float32 `yaml:"air_drag"`
	GroundDrag       float32 `yaml:"ground_drag"`
	BlockFriction    float32 `yaml:"block_friction"`
	FlySpeed         float32 `yaml:"fly_speed"`
	Reach            float32 `yaml:"reach"`
}

func DefaultConfig() Config {
	return Config{
		Gravity:          32.0,
		TerminalVelocity: -78.4,
		WalkSpeed:        0.1,
		SprintMultiplier: 1.3,
		SneakMultiplier:  0.3,
		JumpVelocity:     9.4,
		AirAcceleration:  0.02,
		AirDrag:          0.98,
		GroundDrag:       0.91,
		BlockFriction:    0.6,
		FlySpeed:         1.05,
		Reach:            5.0,
	}
}

// World is what a player moves through and edits.
type World interface {
	physics.World
	Raycast(origin, dir mgl32.Vec3, maxDist float32) world.RaycastHit
	SetVoxel(x, y, z int, v world.Voxel) bool
}

// Input is one tick of movement intent. Forward and Strafe are in [-1, 1].
type Input struct {
	Forward float32
	Strafe  float32
	Jump    bool
	Sprint  bool
	Sneak   bool
	// Descend lowers a flying player.
	Descend bool
}

type Player struct {
	PrevPosition mgl32.Vec3
	Position     mgl32.Vec3 // feet
	Velocity     mgl32.Vec3
	OnGround     bool
	IsSprinting  bool
	IsSneaking   bool
	IsFlying     bool

	// degrees; yaw 0 faces +X, pitch 90 faces up
	Yaw   float64
	Pitch float64

	FallDistance float32
	// LastFall is the height of the most recent completed fall.
	LastFall float32

	cfg     Config
	physics *physics.CollisionSystem
	world   World
}

func New(cfg Config, cs *physics.CollisionSystem, w World) *Player {
	return &Player{cfg: cfg, physics: cs, world: w}
}

func (p *Player) Config() Config {
	return p.cfg
}

// Spawn places the player on the first safe ground in the column at pos, searching down
// from startHeight.
func (p *Player) Spawn(pos mgl32.Vec3, startHeight float32) {
	p.Position = p.physics.FindSafePosition(pos, p.world, startHeight)
	p.PrevPosition = p.Position
	p.Velocity = mgl32.Vec3{}
	p.FallDistance = 0
	p.OnGround, _ = p.physics.CheckGroundCollision(p.Position, p.world)
}

func (p *Player) EyePosition() mgl32.Vec3 {
	return p.Position.Add(mgl32.Vec3{0, PlayerEyeHeight, 0})
}

func (p *Player) FrontVector() mgl32.Vec3 {
	y := mgl32.DegToRad(float32(p.Yaw))
	pt := mgl32.DegToRad(float32(p.Pitch))
	fx := float32(math.Cos(float64(y)) * math.Cos(float64(pt)))
	fy := float32(math.Sin(float64(pt)))
	fz := float32(math.Sin(float64(y)) * math.Cos(float64(pt)))
	return mgl32.Vec3{fx, fy, fz}.Normalize()
}

// Bounds returns the collision box at the current position.
func (p *Player) Bounds() world.AABB {
	return world.AABB{Min: p.physics.MinBounds(p.Position), Max: p.physics.MaxBounds(p.Position)}
}
