package window

import (
	"sync"
	"time"
)

// WatermarkTracker derives a stream watermark from per-partition event
// times. Each partition's watermark is its max observed event time minus
// the allowed out-of-orderness; the stream watermark is the minimum
// across partitions seen so far. The stream watermark never regresses.
type WatermarkTracker struct {
	delay time.Duration

	mu      sync.Mutex
	maxSeen map[int32]time.Time
	current time.Time
}

func NewWatermarkTracker(delay time.Duration) *WatermarkTracker {
	return &WatermarkTracker{
		delay:   delay,
		maxSeen: make(map[int32]time.Time),
	}
}

// Observe records an event time for a partition and returns the (possibly
// advanced) stream watermark.
func (w *WatermarkTracker) Observe(partition int32, eventTime time.Time) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	if eventTime.After(w.maxSeen[partition]) {
		w.maxSeen[partition] = eventTime
	}

	var min time.Time
	first := true
	for _, max := range w.maxSeen {
		wm := max.Add(-w.delay)
		if first || wm.Before(min) {
			min, first = wm, false
		}
	}
	if min.After(w.current) {
		w.current = min
	}
	return w.current
}

// Current returns the stream watermark without observing anything. Zero
// until the first observation.
func (w *WatermarkTracker) Current() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
