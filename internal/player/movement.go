package player

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelglobe/internal/profiling"
)

// blockedEpsilon is how far the resolved position may fall short of the requested one
// before an axis counts as blocked.
const blockedEpsilon = 1e-4

// Update advances the player by dt seconds.
func (p *Player) Update(dt float64, in Input) {
	defer profiling.Track("player.Update")()
	p.PrevPosition = p.Position

	forward := mgl32.Clamp(in.Forward, -1, 1)
	strafe := mgl32.Clamp(in.Strafe, -1, 1)

	p.IsSneaking = in.Sneak && !p.IsFlying
	p.IsSprinting = (in.Sprint || p.IsSprinting) && forward > 0 && !p.IsSneaking

	// Calculate movement based on yaw
	yawRad := float64(mgl32.DegToRad(float32(p.Yaw)))
	frontX := float32(math.Cos(yawRad))
	frontZ := float32(math.Sin(yawRad))
	strafeX := float32(math.Cos(yawRad + math.Pi/2))
	strafeZ := float32(math.Sin(yawRad + math.Pi/2))

	modeDistance := float32(dt * 20.0) // drag scaling
	accelScale := modeDistance * 20.0  // acceleration scaling

	applyMovement := func(s, f, friction float32) {
		dist := s*s + f*f
		if dist < 0.0001 {
			return
		}
		dist = float32(math.Sqrt(float64(dist)))
		if dist < 1 {
			dist = 1
		}
		dist = friction / dist
		s *= dist
		f *= dist
		p.Velocity[0] += (s*strafeX + f*frontX) * accelScale
		p.Velocity[2] += (s*strafeZ + f*frontZ) * accelScale
	}

	if p.IsFlying {
		if in.Jump {
			p.Velocity[1] += 3.0 * modeDistance
		} else if in.Descend {
			p.Velocity[1] -= 3.0 * modeDistance
		}
		applyMovement(strafe, forward, p.cfg.FlySpeed*p.cfg.AirAcceleration)
	} else {
		friction := p.cfg.GroundDrag
		if p.OnGround {
			friction = p.cfg.BlockFriction * p.cfg.GroundDrag
		}

		var accel float32
		if p.OnGround {
			speed := p.cfg.WalkSpeed
			if p.IsSprinting {
				speed *= p.cfg.SprintMultiplier
			} else if p.IsSneaking {
				speed *= p.cfg.SneakMultiplier
			}
			accel = speed * 0.16277136 / (friction * friction * friction)
		} else {
			accel = p.cfg.AirAcceleration
		}

		// Continuous-time correction for the per-tick drag
		correction := float32(1.0)
		if friction < 0.999 {
			correction = float32(-math.Log(float64(friction)) / (1.0 - float64(friction)))
		}
		applyMovement(strafe, forward, accel*correction)

		if in.Jump && p.OnGround {
			p.Velocity[1] = p.cfg.JumpVelocity
			p.OnGround = false
		}
	}

	if math.Abs(float64(p.Velocity[0])) < 0.005 {
		p.Velocity[0] = 0
	}
	if math.Abs(float64(p.Velocity[2])) < 0.005 {
		p.Velocity[2] = 0
	}

	movement := p.Velocity.Mul(float32(dt))
	want := p.Position.Add(movement)
	pos, onGround := p.physics.MoveWithCollision(p.Position, movement, p.Velocity, p.world, p.IsFlying)

	if math.Abs(float64(pos.X()-want.X())) > blockedEpsilon {
		p.Velocity[0] = 0
		p.IsSprinting = false
	}
	if math.Abs(float64(pos.Z()-want.Z())) > blockedEpsilon {
		p.Velocity[2] = 0
		p.IsSprinting = false
	}
	if movement.Y() > 0 && pos.Y() < want.Y()-blockedEpsilon {
		// ceiling
		p.Velocity[1] = 0
	}
	if onGround && p.Velocity.Y() <= 0 {
		p.Velocity[1] = 0
	}
	p.Position = pos
	p.OnGround = onGround && !p.IsFlying
	p.updateFallState(p.Position.Y() - p.PrevPosition.Y())

	if p.IsFlying {
		horizontal := float32(math.Pow(0.91, float64(modeDistance)))
		p.Velocity[0] *= horizontal
		p.Velocity[2] *= horizontal
		p.Velocity[1] *= float32(math.Pow(0.6, float64(modeDistance)))
		return
	}

	p.Velocity[1] -= p.cfg.Gravity * float32(dt)
	if p.Velocity[1] < p.cfg.TerminalVelocity {
		p.Velocity[1] = p.cfg.TerminalVelocity
	}
	friction := p.cfg.GroundDrag
	if p.OnGround {
		friction = p.cfg.BlockFriction * p.cfg.GroundDrag
	}
	drag := float32(math.Pow(float64(friction), float64(modeDistance)))
	p.Velocity[0] *= drag
	p.Velocity[2] *= drag
	p.Velocity[1] *= float32(math.Pow(float64(p.cfg.AirDrag), float64(modeDistance)))
}

func (p *Player) updateFallState(dy float32) {
	if p.IsFlying {
		p.FallDistance = 0
		return
	}
	if dy < 0 {
		p.FallDistance -= dy
	}
	if p.OnGround && p.FallDistance > 0 {
		p.LastFall = p.FallDistance
		p.FallDistance = 0
	}
}
