package progress

import (
	"sync"
	"time"

	"github.com/flowmesh/replayd/internal/replay"
)

// DefaultWindow is the trailing window throughput is computed over
const DefaultWindow = 10 * time.Second

type sample struct {
	at        time.Time
	processed int64
}

// Tracker accumulates counts and throughput for one execution attempt.
// Processed counts are monotonically non-decreasing within the attempt.
type Tracker struct {
	mu        sync.Mutex
	window    time.Duration
	processed int64
	matched   int64
	produced  int64
	failed    int64
	total     *int64
	samples   []sample
	now       func() time.Time
}

// NewTracker creates a tracker with the given trailing window
// (DefaultWindow if zero)
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window: window,
		now:    time.Now,
	}
}

// SetClock injects a clock for tests
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// SetTotal records the resolved range size once it is known
func (t *Tracker) SetTotal(total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = &total
}

// Observe adds the counts of one processed batch and takes a throughput sample
func (t *Tracker) Observe(processed, matched, produced, failed int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed += processed
	t.matched += matched
	t.produced += produced
	t.failed += failed

	now := t.now()
	t.samples = append(t.samples, sample{at: now, processed: processed})
	t.trim(now)
}

// Snapshot produces the current progress snapshot
func (t *Tracker) Snapshot() replay.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.trim(now)

	snap := replay.Progress{
		MessagesProcessed: t.processed,
		MessagesMatched:   t.matched,
		MessagesProduced:  t.produced,
		MessagesFailed:    t.failed,
		Throughput:        t.throughput(now),
	}
	if t.total != nil {
		total := *t.total
		snap.MessagesTotal = &total
		if snap.Throughput > 0 && total > t.processed {
			remaining := int64(float64(total-t.processed) / snap.Throughput)
			snap.EstimatedSecondsRemaining = &remaining
		}
	}
	return snap
}

// trim drops samples that fell out of the trailing window
func (t *Tracker) trim(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.samples) && t.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = append(t.samples[:0], t.samples[i:]...)
	}
}

// throughput is messages/sec over the span covered by retained samples
func (t *Tracker) throughput(now time.Time) float64 {
	if len(t.samples) == 0 {
		return 0
	}

	var count int64
	for _, s := range t.samples {
		count += s.processed
	}

	span := now.Sub(t.samples[0].at)
	if span <= 0 {
		span = time.Second
	}
	if span > t.window {
		span = t.window
	}
	return float64(count) / span.Seconds()
}
