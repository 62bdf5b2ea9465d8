package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"voxelglobe/internal/config"
	"voxelglobe/internal/logging"
	"voxelglobe/internal/physics"
	"voxelglobe/internal/player"
	"voxelglobe/internal/preview"
	"voxelglobe/internal/profiling"
	"voxelglobe/internal/storage"
	"voxelglobe/internal/world"
)

// spawnChunkLimit bounds the synchronous load before the first tick.
const spawnChunkLimit = 512

// Sim owns the world, its store and the simulated player.
type Sim struct {
	cfg    config.Config
	log    *logrus.Entry
	store  *storage.Store
	world  *world.VoxelWorld
	player *player.Player
	slow   *logging.Throttled
	unsub  func()
}

func NewSim(cfg config.Config, log *logrus.Entry) (*Sim, error) {
	s := &Sim{cfg: cfg, log: log}

	var provider world.StorageProvider
	if cfg.Storage.Path != "" {
		st, err := storage.Open(cfg.Storage.Path, logging.Component("storage"))
		if err != nil {
			return nil, err
		}
		s.store = st
		provider = st
	}

	w, err := world.NewVoxelWorld(cfg.World, provider, logging.Component("world"))
	if err != nil {
		s.closeStore()
		return nil, err
	}
	s.world = w

	events := logging.Component("events")
	s.unsub = w.Manager().Subscribe(func(e world.Event) {
		switch e.Kind {
		case world.EventMemoryUsage:
			events.WithFields(logrus.Fields{"usage": e.MemoryUsage, "budget": e.MemoryBudget}).Info("Memory check")
		default:
			events.WithFields(logrus.Fields{"event": e.Kind, "coord": e.Coord}).Debug("Chunk event")
		}
	})

	cs := physics.NewCollisionSystem(cfg.Collision, logging.Component("physics"))
	s.player = player.New(cfg.Player, cs, w)
	s.slow = logging.NewThrottled(log.WithField("op", "tick"), 5*time.Second, 1)
	return s, nil
}

// spawnPoint returns the column top at the configured spawn, or the pole of a spherical world.
func (s *Sim) spawnPoint() mgl32.Vec3 {
	x, z := s.cfg.Sim.SpawnX, s.cfg.Sim.SpawnZ
	if sg, ok := s.world.Generator().(*world.SphericalGenerator); ok {
		_, outer := sg.Shell()
		return mgl32.Vec3{x, float32(outer), z}
	}
	h := s.world.SurfaceHeightAt(float64(x), float64(z))
	if h < 0 {
		h = float64(world.ChunkHeight)
	}
	return mgl32.Vec3{x, float32(h), z}
}

func (s *Sim) spawn() {
	defer profiling.Track("sim.spawn")()
	pos := s.spawnPoint()
	s.world.UpdateAroundViewer(pos)
	loaded := 0
	for loaded < spawnChunkLimit {
		n := s.world.Manager().ProcessLoadQueue()
		if n == 0 {
			break
		}
		loaded += n
	}
	s.player.Spawn(pos, pos.Y()+8)
	s.log.WithFields(logrus.Fields{
		"pos":    s.player.Position,
		"chunks": s.world.Manager().LoadedCount(),
	}).Info("Player spawned")
}

// Run spawns the player and ticks until the configured count is reached or ctx ends.
// The chunk manager streams on its own goroutine meanwhile.
func (s *Sim) Run(ctx context.Context) error {
	s.spawn()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.world.Run(ctx)
	}()
	defer func() { <-done }()

	dt := time.Second / time.Duration(s.cfg.Sim.TickRate)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	for n := 0; s.cfg.Sim.Ticks == 0 || n < s.cfg.Sim.Ticks; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s.tick(dt)
	}

	if s.cfg.Preview.Path != "" {
		return s.writePreview()
	}
	return nil
}

func (s *Sim) tick(dt time.Duration) {
	profiling.ResetTick()
	start := time.Now()

	in := player.Input{}
	if s.cfg.Sim.Walk {
		in.Forward = 1
		// hop over single-block steps
		in.Jump = s.player.OnGround && s.player.Velocity.X() == 0 && s.player.Velocity.Z() == 0
	}
	s.player.Update(dt.Seconds(), in)
	s.world.UpdateAroundViewer(s.player.Position)

	if took := time.Since(start); took > s.cfg.Sim.SlowTick {
		s.slow.WithField("took", took).Warnf("Slow tick: %s", profiling.TopN(5))
	}
}

func (s *Sim) writePreview() error {
	p := s.cfg.Preview
	label := fmt.Sprintf("%s seed %d", s.world.WorldType(), s.world.Seed())
	img, lo, hi := preview.Render(s.world, preview.Options{
		CenterX: float64(s.player.Position.X()),
		CenterZ: float64(s.player.Position.Z()),
		Extent:  p.Extent,
		Size:    p.Size,
		Label:   label,
	})
	if err := preview.WritePNG(p.Path, img); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"path": p.Path, "min": lo, "max": hi}).Info("Preview written")
	return nil
}

// Close flushes modified chunks and closes the store.
func (s *Sim) Close() error {
	if s.unsub != nil {
		s.unsub()
	}
	err := s.world.Close()
	if cerr := s.closeStore(); err == nil {
		err = cerr
	}
	return err
}

func (s *Sim) closeStore() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
