package profiling

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Per-tick timing of hot world operations.

// Sample is the accumulated time and call count of one tracked name.
type Sample struct {
	Name  string
	Total time.Duration
	Calls int
}

var (
	mu     sync.Mutex
	totals = make(map[string]*Sample)
)

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer profiling.Track("pkg.Operation")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		s, ok := totals[name]
		if !ok {
			s = &Sample{Name: name}
			totals[name] = s
		}
		s.Total += d
		s.Calls++
		mu.Unlock()
	}
}

// ResetTick clears the current totals. Call at the start of each simulation tick.
func ResetTick() {
	mu.Lock()
	clear(totals)
	mu.Unlock()
}

// Snapshot returns the current samples, slowest first.
func Snapshot() []Sample {
	mu.Lock()
	out := make([]Sample, 0, len(totals))
	for _, s := range totals {
		out = append(out, *s)
	}
	mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopN formats the n slowest samples of the current tick.
// Example: "world.GenerateChunk:4.2ms x3, physics.MoveWithCollision:0.8ms x1"
func TopN(n int) string {
	list := Snapshot()
	n = min(n, len(list))
	parts := make([]string, 0, n)
	for _, s := range list[:n] {
		parts = append(parts, s.Name+":"+formatMs(s.Total)+" x"+strconv.Itoa(s.Calls))
	}
	return strings.Join(parts, ", ")
}

// one decimal, trailing .0 dropped
func formatMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	return strconv.FormatFloat(float64(int64(ms*10))/10, 'f', -1, 64) + "ms"
}
