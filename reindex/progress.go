package reindex

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a carriage-returned progress line to a writer as
// a maintenance run advances. Safe for concurrent use.
type ProgressTracker struct {
	mu          sync.Mutex
	w           io.Writer
	total       int
	current     int
	every       int
	sinceReport int
	begun       time.Time
	running     bool
}

// NewProgressTracker returns a tracker over total assets that prints a
// line roughly every `every` assets, typically to os.Stderr.
func NewProgressTracker(w io.Writer, total, every int) *ProgressTracker {
	return &ProgressTracker{w: w, total: total, every: every}
}

// Start resets the tracker and begins timing.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.begun = time.Now()
	p.running = true
	p.current = 0
	p.sinceReport = 0
}

// Increment advances progress by delta, capped at the total, printing a
// line whenever enough assets have passed since the last one. Before
// Start it does nothing.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	if remaining := p.total - p.current; delta > remaining {
		delta = remaining
	}
	p.current += delta
	p.sinceReport += delta

	if p.sinceReport >= p.every {
		p.print()
		p.sinceReport = 0
	}
}

// Finish forces the count to the total, prints the closing line, and
// terminates it with a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.current = p.total
	p.print()
	fmt.Fprintln(p.w)
}

// Elapsed reports how long the run has been going, zero before Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return 0
	}
	return time.Since(p.begun)
}

// print emits one progress line. Callers hold the mutex.
func (p *ProgressTracker) print() {
	var rate float64
	if secs := time.Since(p.begun).Seconds(); secs > 0 {
		rate = float64(p.current) / secs
	}

	var pct float64
	if p.total > 0 {
		pct = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.w, "\rProgress: %d/%d (%.1f%%) - %.1f assets/s",
		p.current, p.total, pct, rate)
}
