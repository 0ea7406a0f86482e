// Package aggregate keeps per-group accumulators for active hopping
// windows and finalizes them as the watermark advances.
package aggregate

import (
	"sort"
	"time"

	"weir/internal/window"
)

// Acc is one group's running aggregate for one window.
type Acc struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Over  int64 // measurements strictly above the threshold
}

func (a *Acc) Fold(v, threshold float64) {
	if a.Count == 0 {
		a.Min, a.Max = v, v
	} else {
		if v < a.Min {
			a.Min = v
		}
		if v > a.Max {
			a.Max = v
		}
	}
	a.Count++
	a.Sum += v
	if v > threshold {
		a.Over++
	}
}

func (a *Acc) Avg() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// Result is one finalized (key, window) aggregate, tagged with the
// window's end time.
type Result struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Key         string
	Count       int64
	Sum         float64
	Avg         float64
	Min         float64
	Max         float64
	Over        int64
}

type activeWindow struct {
	iv     window.Interval
	groups map[string]*Acc
}

// Store tracks active windows in end-time order. Not safe for concurrent
// use; the job runner serializes access.
type Store struct {
	assigner  window.Assigner
	threshold float64

	active []*activeWindow // sorted by End ascending
	index  map[window.Interval]*activeWindow
}

func NewStore(assigner window.Assigner, threshold float64) *Store {
	return &Store{
		assigner:  assigner,
		threshold: threshold,
		index:     make(map[window.Interval]*activeWindow),
	}
}

// Fold adds one measurement to every window containing the event time and
// reports how many windows were touched.
func (s *Store) Fold(key string, eventTime time.Time, v float64) int {
	ivs := s.assigner.Assign(eventTime)
	for _, iv := range ivs {
		aw := s.index[iv]
		if aw == nil {
			aw = &activeWindow{iv: iv, groups: make(map[string]*Acc)}
			s.index[iv] = aw
			s.insert(aw)
		}
		acc := aw.groups[key]
		if acc == nil {
			acc = &Acc{}
			aw.groups[key] = acc
		}
		acc.Fold(v, s.threshold)
	}
	return len(ivs)
}

// insertion keeps active sorted by window end; new windows usually land
// at the tail, so scan backwards.
func (s *Store) insert(aw *activeWindow) {
	i := len(s.active)
	for i > 0 && s.active[i-1].iv.End.After(aw.iv.End) {
		i--
	}
	s.active = append(s.active, nil)
	copy(s.active[i+1:], s.active[i:])
	s.active[i] = aw
}

// CloseThrough finalizes every window whose end is at or before the
// watermark and returns their results, ordered by window end and then by
// key for determinism.
func (s *Store) CloseThrough(watermark time.Time) []Result {
	var out []Result
	n := 0
	for _, aw := range s.active {
		if aw.iv.End.After(watermark) {
			break
		}
		n++
		keys := make([]string, 0, len(aw.groups))
		for k := range aw.groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			acc := aw.groups[k]
			out = append(out, Result{
				WindowStart: aw.iv.Start,
				WindowEnd:   aw.iv.End,
				Key:         k,
				Count:       acc.Count,
				Sum:         acc.Sum,
				Avg:         acc.Avg(),
				Min:         acc.Min,
				Max:         acc.Max,
				Over:        acc.Over,
			})
		}
		delete(s.index, aw.iv)
	}
	s.active = s.active[n:]
	return out
}

// ActiveWindows reports how many windows are currently open.
func (s *Store) ActiveWindows() int { return len(s.active) }
