package world

import (
	"context"
	"sync"
)

type loadJob struct {
	coord ChunkCoord
	done  chan<- bool
}

// loadPool runs ForceLoadChunk calls on a fixed set of goroutines. Workers take no manager
// lock themselves; load does its own locking around the table.
type loadPool struct {
	jobs   chan loadJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex // held for reading while sending on jobs
	closed bool
}

func newLoadPool(m *ChunkManager, workers, queueSize int) *loadPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &loadPool{
		jobs:   make(chan loadJob, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for range workers {
		p.wg.Add(1)
		go p.worker(m)
	}
	return p
}

func (p *loadPool) worker(m *ChunkManager) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			job.done <- m.ForceLoadChunk(job.coord)
		case <-p.ctx.Done():
			return
		}
	}
}

// submit queues a job, blocking while the queue is full. It returns false once the pool
// is shut down.
func (p *loadPool) submit(job loadJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.jobs <- job
	return true
}

// shutdown stops the workers. Jobs still queued are answered with false.
func (p *loadPool) shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	for {
		select {
		case job := <-p.jobs:
			job.done <- false
		default:
			return
		}
	}
}
