package metrics

import "time"

// Range is a resolved inclusive date window. Inverted reports start > end;
// the selection still runs and callers are expected to warn about it.
type Range struct {
	Start     time.Time
	End       time.Time
	Defaulted bool
	Inverted  bool
}

// DefaultBounds returns the earliest and latest ScheduledAt dates in ds, or
// the date of now for both when no record carries a timestamp.
func DefaultBounds(ds Dataset, now time.Time) (time.Time, time.Time) {
	var minT, maxT time.Time
	found := false
	for _, r := range ds {
		if r.ScheduledAt == nil {
			continue
		}
		t := *r.ScheduledAt
		if !found || dayKey(t) < dayKey(minT) {
			minT = t
		}
		if !found || dayKey(t) > dayKey(maxT) {
			maxT = t
		}
		found = true
	}
	if !found {
		today := startOfDay(now)
		return today, today
	}
	return startOfDay(minT), startOfDay(maxT)
}

// ResolveRange fills missing bounds from DefaultBounds.
func ResolveRange(ds Dataset, start, end *time.Time, now time.Time) Range {
	defStart, defEnd := DefaultBounds(ds, now)
	rg := Range{Start: defStart, End: defEnd, Defaulted: start == nil && end == nil}
	if start != nil {
		rg.Start = startOfDay(*start)
	}
	if end != nil {
		rg.End = startOfDay(*end)
	}
	rg.Inverted = dayKey(rg.Start) > dayKey(rg.End)
	return rg
}

// WithinRange keeps the records whose ScheduledAt date lies in
// [start, end], both ends inclusive. Records without a timestamp are dropped.
func WithinRange(ds Dataset, start, end time.Time) Dataset {
	lo, hi := dayKey(start), dayKey(end)
	out := make(Dataset, 0, len(ds))
	for _, r := range ds {
		if r.ScheduledAt == nil {
			continue
		}
		k := dayKey(*r.ScheduledAt)
		if k >= lo && k <= hi {
			out = append(out, r)
		}
	}
	return out
}

func (rg Range) Apply(ds Dataset) Dataset {
	return WithinRange(ds, rg.Start, rg.End)
}
