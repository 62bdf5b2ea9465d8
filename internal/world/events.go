package world

import "sync"

type EventKind int

const (
	EventChunkLoaded EventKind = iota
	EventChunkUnloaded
	EventChunkModified
	EventMemoryUsage
)

func (k EventKind) String() string {
	switch k {
	case EventChunkLoaded:
		return "chunk-loaded"
	case EventChunkUnloaded:
		return "chunk-unloaded"
	case EventChunkModified:
		return "chunk-modified"
	case EventMemoryUsage:
		return "memory-usage"
	}
	return "unknown"
}

// Event is delivered to subscribers of a ChunkManager. Coord is set for chunk events,
// MemoryUsage and MemoryBudget for memory events.
type Event struct {
	Kind         EventKind
	Coord        ChunkCoord
	MemoryUsage  int64
	MemoryBudget int64
}

// eventBus fans events out to listeners. Listeners run synchronously on the emitting
// goroutine and never under a manager lock.
type eventBus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(Event)
}

func (b *eventBus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *eventBus) emit(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}
