// Package window implements hopping (sliding) event-time windows and the
// watermark tracking that decides when they close.
package window

import (
	"fmt"
	"time"
)

// Interval is one window: left-inclusive, right-exclusive.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// Assigner maps event times to hopping windows of a fixed Length that
// advance by Slide. Window starts are aligned to integer multiples of
// Slide so assignment is stable regardless of arrival order.
type Assigner struct {
	Length time.Duration
	Slide  time.Duration
}

func NewAssigner(length, slide time.Duration) (Assigner, error) {
	if length <= 0 || slide <= 0 {
		return Assigner{}, fmt.Errorf("window: length and slide must be positive (got %v/%v)", length, slide)
	}
	if slide > length {
		return Assigner{}, fmt.Errorf("window: slide %v exceeds length %v", slide, length)
	}
	return Assigner{Length: length, Slide: slide}, nil
}

// Assign returns every window whose interval contains the event time,
// most recent first. For the highest candidate, the start is the largest
// multiple of Slide not after the event time; earlier windows follow by
// stepping back one Slide at a time while they still contain the event.
func (a Assigner) Assign(eventTime time.Time) []Interval {
	slideNS := a.Slide.Nanoseconds()
	startNS := (eventTime.UnixNano() / slideNS) * slideNS
	if eventTime.UnixNano() < 0 && eventTime.UnixNano()%slideNS != 0 {
		startNS -= slideNS
	}

	start := time.Unix(0, startNS).UTC()
	end := start.Add(a.Length)

	var out []Interval
	for !start.After(eventTime) && end.After(eventTime) {
		out = append(out, Interval{Start: start, End: end})
		start = start.Add(-a.Slide)
		end = end.Add(-a.Slide)
	}
	return out
}
