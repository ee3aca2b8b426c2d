// Package profiler - Per-stage timing and memory reporting for the processing pipeline.
package profiler

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"
)

// RuntimeProfiler records how long each named operation takes.
//
// It is safe for concurrent use. A nil *RuntimeProfiler is valid and records nothing,
// so callers can pass one around unconditionally.
type RuntimeProfiler struct {
	mu             sync.Mutex
	startTime      time.Time
	maxSamples     int
	operationTimes map[string]*TimeTracker
	order          []string
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// Stats is a snapshot of one operation's timings.
type Stats struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// MaxSamples specifies maximum number of samples to keep per operation (default: 600)
	MaxSamples int
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600
	}
	return &RuntimeProfiler{
		startTime:      time.Now(),
		maxSamples:     opts.MaxSamples,
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	if rp == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		rp.recordOperationTime(name, time.Since(start))
	}
}

// recordOperationTime records the completion time of an operation.
func (rp *RuntimeProfiler) recordOperationTime(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			name:    name,
			minTime: duration,
			maxTime: duration,
		}
		rp.operationTimes[name] = tracker
		rp.order = append(rp.order, name)
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > rp.maxSamples {
		// Remove oldest sample
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Operations returns the timing statistics in first-seen order.
func (rp *RuntimeProfiler) Operations() []Stats {
	if rp == nil {
		return nil
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	out := make([]Stats, 0, len(rp.order))
	for _, name := range rp.order {
		t := rp.operationTimes[name]
		out = append(out, Stats{
			Name:  name,
			Count: t.count,
			Avg:   t.totalTime / time.Duration(len(t.durations)),
			Min:   t.minTime,
			Max:   t.maxTime,
		})
	}
	return out
}

// WriteReport prints the operation timings and the current memory usage.
func (rp *RuntimeProfiler) WriteReport(w io.Writer) {
	if rp == nil {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(w, "RUNTIME PROFILER STATUS REPORT - %s\n", time.Now().Format("15:04:05.000"))
	fmt.Fprintf(w, "Uptime: %v\n", time.Since(rp.startTime).Truncate(time.Millisecond))

	fmt.Fprintf(w, "\nMEMORY USAGE:\n")
	fmt.Fprintf(w, "  Heap Alloc: %s\n", formatBytes(mem.HeapAlloc))
	fmt.Fprintf(w, "  Total Alloc: %s\n", formatBytes(mem.TotalAlloc))
	fmt.Fprintf(w, "  Sys: %s\n", formatBytes(mem.Sys))
	fmt.Fprintf(w, "  GC Cycles: %d\n", mem.NumGC)

	ops := rp.Operations()
	if len(ops) == 0 {
		return
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	fmt.Fprintf(w, "\nOPERATION TIMINGS:\n")
	for _, op := range ops {
		fmt.Fprintf(w, "  %s: avg=%v, min=%v, max=%v, count=%d\n",
			op.Name, op.Avg.Truncate(time.Microsecond),
			op.Min.Truncate(time.Microsecond),
			op.Max.Truncate(time.Microsecond),
			op.Count)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
