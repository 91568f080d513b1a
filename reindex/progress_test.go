package reindex

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)
	tracker.Finish()

	assert.Greater(t, tracker.Elapsed(), time.Duration(0))

	output := buf.String()
	assert.Contains(t, output, "100/100")
	assert.Contains(t, output, "100.0%")
	assert.Contains(t, output, "assets/s")
}

func TestProgressTracker_FinishPadsToTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100", "finish reports the total")
	assert.Contains(t, output, "\n", "finish terminates the progress line")
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1000, 100)

	tracker.Start()

	tracker.Increment(50)
	assert.Empty(t, buf.String(), "under the interval, nothing prints")

	tracker.Increment(50)
	assert.Contains(t, buf.String(), "100/1000", "prints once the interval is crossed")

	buf.Reset()
	tracker.Increment(70)
	assert.Empty(t, buf.String(), "interval counts from the last report")

	tracker.Increment(70)
	assert.Contains(t, buf.String(), "240/1000")
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(150)

	assert.Contains(t, buf.String(), "100/100", "progress never exceeds the total")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Increment(10)
	tracker.Finish()

	assert.Empty(t, buf.String(), "no output before Start")
	assert.Zero(t, tracker.Elapsed())
}
