package search

import (
	"time"

	"github.com/ffirst2551/mercil/core"
)

// Monitor provides hooks to observe query execution. Implement this
// interface to track durations and result counts; the searcher calls it
// from whatever goroutine runs the query, so implementations must be safe
// for concurrent use.
type Monitor interface {
	// Start fires when a query begins, before any model call.
	Start(modality core.Modality)

	// Finish fires after ranking with the result count and total elapsed
	// time. It does not fire for queries that error out.
	Finish(modality core.Modality, resultCount int, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of Monitor.
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (*noopMonitor) Start(_ core.Modality)                          {}
func (*noopMonitor) Finish(_ core.Modality, _ int, _ time.Duration) {}
