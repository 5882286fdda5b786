package profiling

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Lightweight per-pass CPU profiler for rebuild insights.

// Sample is the accumulated time of one tracked pass.
type Sample struct {
	Total time.Duration
	Calls int
}

// Mean returns the average duration per call.
func (s Sample) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

var (
	mu      sync.Mutex
	samples = make(map[string]Sample)
)

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer profiling.Track("meshing.Assemble")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		s := samples[name]
		s.Total += d
		s.Calls++
		samples[name] = s
		mu.Unlock()
	}
}

// Reset clears all samples.
func Reset() {
	mu.Lock()
	clear(samples)
	mu.Unlock()
}

// Snapshot returns a copy of the current samples.
func Snapshot() map[string]Sample {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]Sample, len(samples))
	for k, v := range samples {
		out[k] = v
	}
	return out
}

// TopN formats the n most expensive passes.
// Example: "meshing.Assemble:42.1ms/12, lighting.Propagate:8.3ms/12"
func TopN(n int) string {
	ss := Snapshot()
	names := make([]string, 0, len(ss))
	for k := range ss {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if ss[names[i]].Total != ss[names[j]].Total {
			return ss[names[i]].Total > ss[names[j]].Total
		}
		return names[i] < names[j]
	})
	if n > len(names) {
		n = len(names)
	}
	parts := make([]string, 0, n)
	for _, name := range names[:n] {
		s := ss[name]
		ms := float64(s.Total.Microseconds()) / 1000.0
		parts = append(parts, name+":"+strconv.FormatFloat(ms, 'f', 1, 64)+"ms/"+strconv.Itoa(s.Calls))
	}
	return strings.Join(parts, ", ")
}
