package world

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"voxelglobe/internal/profiling"
)

// ManagerConfig tunes chunk streaming and the memory budget.
type ManagerConfig struct {
	ViewDistance        int           `yaml:"view_distance"` // in chunks
	MemoryBudget        int64         `yaml:"memory_budget"` // bytes
	LoadBatch           int           `yaml:"load_batch"`
	LoadInterval        time.Duration `yaml:"load_interval"`
	MemoryCheckInterval time.Duration `yaml:"memory_check_interval"`
	EvictTargetRatio    float64       `yaml:"evict_target_ratio"` // eviction stops once usage <= budget*ratio
	// Workers > 1 loads each batch in parallel.
	Workers int `yaml:"workers"`
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ViewDistance:        4,
		MemoryBudget:        256 << 20,
		LoadBatch:           3,
		LoadInterval:        50 * time.Millisecond,
		MemoryCheckInterval: 5 * time.Second,
		EvictTargetRatio:    0.9,
		Workers:             1,
	}
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	d := DefaultManagerConfig()
	if c.ViewDistance < 0 {
		c.ViewDistance = 0
	}
	if c.MemoryBudget <= 0 {
		c.MemoryBudget = d.MemoryBudget
	}
	if c.LoadBatch <= 0 {
		c.LoadBatch = d.LoadBatch
	}
	if c.LoadInterval <= 0 {
		c.LoadInterval = d.LoadInterval
	}
	if c.MemoryCheckInterval <= 0 {
		c.MemoryCheckInterval = d.MemoryCheckInterval
	}
	if c.EvictTargetRatio <= 0 || c.EvictTargetRatio > 1 {
		c.EvictTargetRatio = d.EvictTargetRatio
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// ChunkManager owns the loaded chunks. It streams chunks in around a viewer from storage or a
// generator and evicts the least recently used ones when the memory budget is exceeded.
//
// tableMu guards the chunk table, the in-flight set and memory accounting; queueMu guards the
// load queue. Neither is held across generation or storage I/O, and they are never nested.
type ChunkManager struct {
	cfg ManagerConfig
	log *logrus.Entry

	srcMu   sync.RWMutex
	gen     Generator
	storage ChunkStorage

	tableMu  sync.RWMutex
	chunks   map[ChunkCoord]*Chunk
	sizes    map[ChunkCoord]int64
	usage    int64
	inflight map[ChunkCoord]chan struct{}

	queueMu sync.Mutex
	queue   *loadHeap

	events eventBus
	pool   *loadPool
}

// NewChunkManager creates a manager. A nil storage behaves like NopStorage and a nil
// generator yields empty chunks.
func NewChunkManager(gen Generator, storage ChunkStorage, cfg ManagerConfig, log *logrus.Entry) *ChunkManager {
	if storage == nil {
		storage = NopStorage{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &ChunkManager{
		cfg:      cfg.withDefaults(),
		log:      log.WithField("component", "chunk-manager"),
		gen:      gen,
		storage:  storage,
		chunks:   make(map[ChunkCoord]*Chunk),
		sizes:    make(map[ChunkCoord]int64),
		inflight: make(map[ChunkCoord]chan struct{}),
		queue:    &loadHeap{},
	}
	if m.cfg.Workers > 1 {
		m.pool = newLoadPool(m, m.cfg.Workers, m.cfg.LoadBatch)
	}
	return m
}

func (m *ChunkManager) Config() ManagerConfig { return m.cfg }

// Subscribe registers fn for chunk and memory events. The returned func unsubscribes.
func (m *ChunkManager) Subscribe(fn func(Event)) func() {
	return m.events.subscribe(fn)
}

func (m *ChunkManager) SetGenerator(gen Generator) {
	m.srcMu.Lock()
	m.gen = gen
	m.srcMu.Unlock()
}

func (m *ChunkManager) Generator() Generator {
	m.srcMu.RLock()
	defer m.srcMu.RUnlock()
	return m.gen
}

func (m *ChunkManager) SetStorage(s ChunkStorage) {
	if s == nil {
		s = NopStorage{}
	}
	m.srcMu.Lock()
	m.storage = s
	m.srcMu.Unlock()
}

func (m *ChunkManager) sources() (Generator, ChunkStorage) {
	m.srcMu.RLock()
	defer m.srcMu.RUnlock()
	return m.gen, m.storage
}

// GetChunk returns a loaded chunk and refreshes its access time. A missing chunk is loaded
// synchronously; callers that must not block should rely on the load queue instead.
func (m *ChunkManager) GetChunk(coord ChunkCoord) *Chunk {
	m.tableMu.RLock()
	c := m.chunks[coord]
	m.tableMu.RUnlock()
	if c != nil {
		c.Touch()
		return c
	}
	return m.load(coord)
}

// Lookup returns a chunk only if it is loaded. It never loads.
func (m *ChunkManager) Lookup(coord ChunkCoord) (*Chunk, bool) {
	m.tableMu.RLock()
	c, ok := m.chunks[coord]
	m.tableMu.RUnlock()
	if ok {
		c.Touch()
	}
	return c, ok
}

func (m *ChunkManager) IsChunkLoaded(coord ChunkCoord) bool {
	m.tableMu.RLock()
	_, ok := m.chunks[coord]
	m.tableMu.RUnlock()
	return ok
}

// GetVoxel returns the voxel at world coordinates, or Air when its chunk is not loaded.
func (m *ChunkManager) GetVoxel(x, y, z int) Voxel {
	c, ok := m.Lookup(ChunkCoordFromWorld(x, y, z))
	if !ok {
		return Air
	}
	l := WorldToLocal(x, y, z)
	return c.Voxel(l.X, l.Y, l.Z)
}

// SetVoxel writes a voxel at world coordinates. It returns false when the chunk is not
// loaded, the voxel already held v, or the chunk was unloaded concurrently, in which case the
// edit may not have been persisted.
func (m *ChunkManager) SetVoxel(x, y, z int, v Voxel) bool {
	coord := ChunkCoordFromWorld(x, y, z)
	c, ok := m.Lookup(coord)
	if !ok {
		return false
	}
	l := WorldToLocal(x, y, z)
	if !c.SetVoxel(l.X, l.Y, l.Z, v) {
		return false
	}
	if !m.reaccount(c) {
		m.log.WithField("chunk", coord).Warn("Voxel edit raced a chunk unload")
		return false
	}
	m.events.emit(Event{Kind: EventChunkModified, Coord: coord})
	return true
}

// reaccount refreshes the memory charge of c and reports whether c is still the loaded chunk
// for its coordinate.
func (m *ChunkManager) reaccount(c *Chunk) bool {
	size := c.MemoryUsage()
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	if m.chunks[c.coord] != c {
		return false
	}
	m.usage += size - m.sizes[c.coord]
	m.sizes[c.coord] = size
	return true
}

// ForceLoadChunk loads a chunk from storage, or generates it, unless it is already loaded.
// It reports whether the chunk is loaded afterwards; failures degrade to an empty chunk.
func (m *ChunkManager) ForceLoadChunk(coord ChunkCoord) bool {
	return m.load(coord) != nil
}

func (m *ChunkManager) load(coord ChunkCoord) *Chunk {
	var done chan struct{}
	for {
		m.tableMu.Lock()
		if c, ok := m.chunks[coord]; ok {
			m.tableMu.Unlock()
			c.Touch()
			return c
		}
		busy, ok := m.inflight[coord]
		if !ok {
			done = make(chan struct{})
			m.inflight[coord] = done
			m.tableMu.Unlock()
			break
		}
		m.tableMu.Unlock()
		<-busy
	}

	c := m.produce(coord)
	size := c.MemoryUsage()

	m.tableMu.Lock()
	m.chunks[coord] = c
	m.sizes[coord] = size
	m.usage += size
	delete(m.inflight, coord)
	m.tableMu.Unlock()
	close(done)

	m.events.emit(Event{Kind: EventChunkLoaded, Coord: coord})
	return c
}

// produce reads a chunk from storage and falls back to generation. It never returns nil.
func (m *ChunkManager) produce(coord ChunkCoord) *Chunk {
	gen, storage := m.sources()

	c, err := storage.LoadChunk(coord)
	switch {
	case err == nil && c != nil && c.Coord() == coord:
		c.Touch()
		return c
	case err == nil && c != nil:
		m.log.WithFields(logrus.Fields{"chunk": coord, "stored": c.Coord()}).Warn("Chunk storage returned the wrong chunk, generating instead")
	case err == nil, errors.Is(err, ErrChunkNotFound):
	default:
		m.log.WithError(err).WithField("chunk", coord).Warn("Chunk storage load failed, generating instead")
	}

	if gen == nil {
		m.log.WithField("chunk", coord).Warn("No chunk generator configured, using empty chunk")
		return NewChunk(coord)
	}
	c = gen.GenerateChunk(coord)
	if c == nil {
		return NewChunk(coord)
	}
	c.Touch()
	return c
}

// ForceUnloadChunk saves a modified chunk and drops it. It returns false if the chunk was not
// loaded or its save failed, in which case the chunk stays loaded.
func (m *ChunkManager) ForceUnloadChunk(coord ChunkCoord) bool {
	return m.unload(coord, false)
}

func (m *ChunkManager) unload(coord ChunkCoord, respectPins bool) bool {
	var (
		c    *Chunk
		size int64
		done chan struct{}
	)
	for {
		m.tableMu.Lock()
		var ok bool
		if c, ok = m.chunks[coord]; !ok {
			m.tableMu.Unlock()
			return false
		}
		if respectPins && c.RefCount() > 0 {
			m.tableMu.Unlock()
			return false
		}
		busy, ok := m.inflight[coord]
		if !ok {
			done = make(chan struct{})
			m.inflight[coord] = done
			size = m.sizes[coord]
			delete(m.chunks, coord)
			delete(m.sizes, coord)
			m.usage -= size
			m.tableMu.Unlock()
			break
		}
		m.tableMu.Unlock()
		<-busy
	}

	err := m.save(c)

	m.tableMu.Lock()
	if err != nil {
		m.chunks[coord] = c
		m.sizes[coord] = size
		m.usage += size
	}
	delete(m.inflight, coord)
	m.tableMu.Unlock()
	close(done)

	if err != nil {
		m.log.WithError(err).WithField("chunk", coord).Warn("Chunk save failed, eviction deferred")
		return false
	}
	c.markEvicted()
	m.events.emit(Event{Kind: EventChunkUnloaded, Coord: coord})
	return true
}

func (m *ChunkManager) save(c *Chunk) error {
	if !c.IsModified() {
		return nil
	}
	_, storage := m.sources()
	if err := storage.SaveChunk(c); err != nil {
		return fmt.Errorf("save chunk %v: %w", c.Coord(), err)
	}
	c.ClearModified()
	return nil
}

// SaveAllChunks persists every modified chunk and joins the failures.
func (m *ChunkManager) SaveAllChunks() error {
	var errs []error
	for _, c := range m.snapshot() {
		if err := m.save(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *ChunkManager) snapshot() []*Chunk {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	out := make([]*Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c)
	}
	return out
}

// Chunks returns a copy of the chunk table.
func (m *ChunkManager) Chunks() map[ChunkCoord]*Chunk {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	out := make(map[ChunkCoord]*Chunk, len(m.chunks))
	for k, c := range m.chunks {
		out[k] = c
	}
	return out
}

func (m *ChunkManager) LoadedCount() int {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	return len(m.chunks)
}

// MemoryUsage returns the accounted memory of all loaded chunks in bytes.
func (m *ChunkManager) MemoryUsage() int64 {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	return m.usage
}

func (m *ChunkManager) MemoryBudget() int64 { return m.cfg.MemoryBudget }

func (m *ChunkManager) QueueLen() int {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return m.queue.Len()
}

// UpdateChunksAroundPoint replaces the load queue with every unloaded chunk within
// ViewDistance+1 rings of the viewer's chunk. Entries from earlier calls are discarded.
func (m *ChunkManager) UpdateChunksAroundPoint(viewer mgl32.Vec3) {
	defer profiling.Track("world.ChunkManager.UpdateChunksAroundPoint")()

	center := ChunkCoordFromPosition(viewer)
	r := m.cfg.ViewDistance + 1
	side := 2*r + 1
	reqs := make([]loadRequest, 0, side*side*side)

	m.tableMu.RLock()
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				coord := center.offset(dx, dy, dz)
				if _, ok := m.chunks[coord]; ok {
					continue
				}
				if _, ok := m.inflight[coord]; ok {
					continue
				}
				boosted := false
				for _, n := range coord.FaceNeighbors() {
					if _, ok := m.chunks[n]; ok {
						boosted = true
						break
					}
				}
				reqs = append(reqs, loadRequest{coord: coord, priority: loadPriority(coord, viewer, boosted)})
			}
		}
	}
	m.tableMu.RUnlock()

	h := buildLoadHeap(reqs)
	m.queueMu.Lock()
	m.queue = h
	m.queueMu.Unlock()
}

// ProcessLoadQueue pops up to LoadBatch of the highest-priority entries and loads them.
// It stops early once memory usage is over budget. It returns the number of chunks loaded.
func (m *ChunkManager) ProcessLoadQueue() int {
	defer profiling.Track("world.ChunkManager.ProcessLoadQueue")()

	if m.pool != nil {
		return m.processParallel()
	}
	loaded := 0
	for range m.cfg.LoadBatch {
		coord, ok := m.nextLoad()
		if !ok {
			break
		}
		if m.IsChunkLoaded(coord) {
			continue
		}
		if m.ForceLoadChunk(coord) {
			loaded++
		}
	}
	return loaded
}

// processParallel pops the batch up front and hands it to the pool. The budget is checked
// per pop, so a batch may overshoot by the chunks already in flight.
func (m *ChunkManager) processParallel() int {
	done := make(chan bool, m.cfg.LoadBatch)
	pending, loaded := 0, 0
	for range m.cfg.LoadBatch {
		coord, ok := m.nextLoad()
		if !ok {
			break
		}
		if m.IsChunkLoaded(coord) {
			continue
		}
		if m.pool.submit(loadJob{coord: coord, done: done}) {
			pending++
		} else if m.ForceLoadChunk(coord) {
			loaded++
		}
	}
	for range pending {
		if <-done {
			loaded++
		}
	}
	return loaded
}

// nextLoad pops the highest-priority request unless memory is already over budget.
func (m *ChunkManager) nextLoad() (ChunkCoord, bool) {
	if m.MemoryUsage() > m.cfg.MemoryBudget {
		return ChunkCoord{}, false
	}
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	if m.queue.Len() == 0 {
		return ChunkCoord{}, false
	}
	return heap.Pop(m.queue).(loadRequest).coord, true
}

// CheckMemoryUsage evicts least recently used chunks while usage exceeds the budget, until it
// drops to EvictTargetRatio of the budget. Pinned chunks and chunks whose save fails are skipped.
// It returns the number of evicted chunks.
func (m *ChunkManager) CheckMemoryUsage() int {
	defer profiling.Track("world.ChunkManager.CheckMemoryUsage")()

	usage := m.recount()
	budget := m.cfg.MemoryBudget
	evicted := 0
	if usage > budget {
		target := int64(float64(budget) * m.cfg.EvictTargetRatio)
		for _, c := range m.lruOrder() {
			if usage <= target {
				break
			}
			if m.unload(c.Coord(), true) {
				evicted++
				usage = m.MemoryUsage()
			}
		}
		m.log.WithFields(logrus.Fields{
			"evicted": evicted,
			"usage":   usage,
			"budget":  budget,
		}).Debug("Memory check evicted chunks")
	}
	m.events.emit(Event{Kind: EventMemoryUsage, MemoryUsage: usage, MemoryBudget: budget})
	return evicted
}

// recount recomputes every chunk's footprint, which drifts as collider caches are built.
func (m *ChunkManager) recount() int64 {
	chunks := m.snapshot()
	sizes := make([]int64, len(chunks))
	for i, c := range chunks {
		sizes[i] = c.MemoryUsage()
	}
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	for i, c := range chunks {
		if m.chunks[c.coord] == c {
			m.usage += sizes[i] - m.sizes[c.coord]
			m.sizes[c.coord] = sizes[i]
		}
	}
	return m.usage
}

// lruOrder returns the loaded chunks, least recently accessed first.
func (m *ChunkManager) lruOrder() []*Chunk {
	chunks := m.snapshot()
	stamps := make(map[*Chunk]int64, len(chunks))
	for _, c := range chunks {
		stamps[c] = c.LastAccess()
	}
	slices.SortFunc(chunks, func(a, b *Chunk) int {
		switch sa, sb := stamps[a], stamps[b]; {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	})
	return chunks
}

// Acquire loads a chunk if needed and pins it against eviction until the handle is released.
func (m *ChunkManager) Acquire(coord ChunkCoord) *ChunkHandle {
	for {
		m.load(coord)
		m.tableMu.RLock()
		c, ok := m.chunks[coord]
		if ok {
			c.Retain()
		}
		m.tableMu.RUnlock()
		if ok {
			c.Touch()
			return &ChunkHandle{chunk: c}
		}
	}
}

// ChunkHandle is a pinned reference to a chunk. A forced unload can still drop the chunk;
// Valid reports whether that happened.
type ChunkHandle struct {
	chunk *Chunk
	once  sync.Once
}

func (h *ChunkHandle) Chunk() *Chunk { return h.chunk }

func (h *ChunkHandle) Valid() bool { return !h.chunk.Evicted() }

func (h *ChunkHandle) Release() {
	h.once.Do(h.chunk.Release)
}

// Clear drops every chunk and the load queue without saving.
func (m *ChunkManager) Clear() {
	m.queueMu.Lock()
	m.queue = &loadHeap{}
	m.queueMu.Unlock()

	m.tableMu.Lock()
	dropped := make([]ChunkCoord, 0, len(m.chunks))
	for coord, c := range m.chunks {
		c.markEvicted()
		dropped = append(dropped, coord)
	}
	m.chunks = make(map[ChunkCoord]*Chunk)
	m.sizes = make(map[ChunkCoord]int64)
	m.usage = 0
	m.tableMu.Unlock()

	for _, coord := range dropped {
		m.events.emit(Event{Kind: EventChunkUnloaded, Coord: coord})
	}
}

// Run drives the load queue and the memory check until ctx is cancelled.
func (m *ChunkManager) Run(ctx context.Context) {
	load := time.NewTicker(m.cfg.LoadInterval)
	defer load.Stop()
	mem := time.NewTicker(m.cfg.MemoryCheckInterval)
	defer mem.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-load.C:
			m.ProcessLoadQueue()
		case <-mem.C:
			m.CheckMemoryUsage()
		}
	}
}

// Close saves every modified chunk and stops the load workers.
func (m *ChunkManager) Close() error {
	if m.pool != nil {
		m.pool.shutdown()
	}
	return m.SaveAllChunks()
}
