package ingestion

import (
	"time"

	"github.com/ffirst2551/mercil/core"
)

// Outcome is the pipeline's verdict on one batch item. Outcomes keep the
// input order, so Outcomes[i] always describes batch[i].
type Outcome struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	ID    core.ID `json:"id,omitempty"`

	// Stored reports whether the item made it into the store. When false,
	// SkipReason says why.
	Stored     bool   `json:"stored"`
	SkipReason string `json:"skip_reason,omitempty"`

	// Located reports whether geocoding produced coordinates for the item.
	Located bool `json:"located,omitempty"`
}

// Report summarizes one batch run.
type Report struct {
	Outcomes []Outcome     `json:"outcomes"`
	Stored   int           `json:"stored"`
	Skipped  int           `json:"skipped"`
	Located  int           `json:"located"`
	Elapsed  time.Duration `json:"elapsed"`
}

// tally recomputes the counters from the outcomes.
func (r *Report) tally() {
	r.Stored, r.Skipped, r.Located = 0, 0, 0
	for _, o := range r.Outcomes {
		if o.Stored {
			r.Stored++
		} else {
			r.Skipped++
		}
		if o.Located {
			r.Located++
		}
	}
}
