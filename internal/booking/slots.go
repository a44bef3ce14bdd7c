package booking

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) overlaps [b.Start, b.End).
// Intervals that only touch at an endpoint do not overlap, so back-to-back
// appointments are allowed.
func (b Interval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// OpenSlots returns slot start times within [windowStart, windowEnd) where a
// booking of length duration would not overlap any of the busy intervals.
// Candidates advance from windowStart by step and are dropped once the
// service would run past windowEnd. Slots starting before now are skipped.
//
// All times are expected to be in the same location (timezone).
func OpenSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
