package world

import (
	"container/heap"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	priorityScale   = 1000.0
	adjacencyBoost  = 1.5
	priorityJitter  = 0.01
	jitterPrecision = 1 << 20
)

type loadRequest struct {
	coord    ChunkCoord
	priority float64
}

// loadHeap is a max-heap on priority.
type loadHeap []loadRequest

func (h loadHeap) Len() int { return len(h) }
func (h loadHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].coord.Hash() < h[j].coord.Hash()
}
func (h loadHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *loadHeap) Push(x any)   { *h = append(*h, x.(loadRequest)) }
func (h *loadHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// loadPriority ranks a chunk for loading: closer is higher, a loaded face neighbour boosts it,
// and a per-coordinate jitter in [0, 0.01) breaks ties the same way every time.
func loadPriority(coord ChunkCoord, viewer mgl32.Vec3, neighbourLoaded bool) float64 {
	d := coord.Center().Sub(viewer).Len() / float32(ChunkSize)
	p := priorityScale / (1 + float64(d))
	if neighbourLoaded {
		p *= adjacencyBoost
	}
	jitter := float64(coord.Hash()%jitterPrecision) / jitterPrecision * priorityJitter
	return p + jitter
}

// buildLoadHeap turns the candidate list into a heap. It runs without any manager lock.
func buildLoadHeap(reqs []loadRequest) *loadHeap {
	h := loadHeap(reqs)
	heap.Init(&h)
	return &h
}
