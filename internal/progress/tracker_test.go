package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func TestTrackerCounts(t *testing.T) {
	tracker := NewTracker(0)

	tracker.Observe(100, 20, 18, 2)
	tracker.Observe(50, 5, 5, 0)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(150), snap.MessagesProcessed)
	assert.Equal(t, int64(25), snap.MessagesMatched)
	assert.Equal(t, int64(23), snap.MessagesProduced)
	assert.Equal(t, int64(2), snap.MessagesFailed)
	assert.Nil(t, snap.MessagesTotal)
}

func TestTrackerThroughputWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(10 * time.Second)
	tracker.SetClock(fixedClock(&now))

	tracker.Observe(100, 0, 0, 0)
	now = now.Add(5 * time.Second)
	tracker.Observe(100, 0, 0, 0)

	snap := tracker.Snapshot()
	// 200 messages over a 5 second span
	assert.InDelta(t, 40.0, snap.Throughput, 0.01)

	// The first sample falls out of the window
	now = now.Add(8 * time.Second)
	snap = tracker.Snapshot()
	assert.InDelta(t, 100.0/8.0, snap.Throughput, 0.01)

	// All samples expired
	now = now.Add(time.Minute)
	snap = tracker.Snapshot()
	assert.Equal(t, 0.0, snap.Throughput)
	assert.Equal(t, int64(200), snap.MessagesProcessed)
}

func TestTrackerEstimate(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(10 * time.Second)
	tracker.SetClock(fixedClock(&now))
	tracker.SetTotal(1000)

	tracker.Observe(100, 0, 0, 0)
	now = now.Add(2 * time.Second)
	tracker.Observe(100, 0, 0, 0)

	snap := tracker.Snapshot()
	require.NotNil(t, snap.MessagesTotal)
	assert.Equal(t, int64(1000), *snap.MessagesTotal)

	// 200 processed over 2s = 100 msg/s; 800 remaining
	require.NotNil(t, snap.EstimatedSecondsRemaining)
	assert.Equal(t, int64(8), *snap.EstimatedSecondsRemaining)
}

func TestTrackerEstimateAbsentWithoutThroughput(t *testing.T) {
	tracker := NewTracker(time.Second)
	tracker.SetTotal(500)

	snap := tracker.Snapshot()
	require.NotNil(t, snap.MessagesTotal)
	assert.Nil(t, snap.EstimatedSecondsRemaining)
}

func TestTrackerMonotonicProcessed(t *testing.T) {
	tracker := NewTracker(time.Second)

	var last int64
	for i := 0; i < 20; i++ {
		tracker.Observe(10, 1, 1, 0)
		snap := tracker.Snapshot()
		assert.GreaterOrEqual(t, snap.MessagesProcessed, last)
		last = snap.MessagesProcessed
	}
}
