package timeperiod

import "sort"

// Period is an inclusive closed range of whole days.
type Period struct {
	Start Day `json:"startDate"`
	End   Day `json:"endDate"`
}

// Normalize swaps inverted bounds.
func (p Period) Normalize() Period {
	if p.End.Before(p.Start) {
		return Period{Start: p.End, End: p.Start}
	}
	return p
}

// Contains reports whether d lies within [Start, End].
func (p Period) Contains(d Day) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns the inclusive length of the period in days.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Overlaps reports whether p and q share at least one day.
func (p Period) Overlaps(q Period) bool {
	return !p.End.Before(q.Start) && !q.End.Before(p.Start)
}

// Clip returns the part of p inside window. ok is false when nothing is left.
func (p Period) Clip(window Period) (clipped Period, ok bool) {
	if p.Start.IsZero() || p.End.IsZero() || !p.Overlaps(window) {
		return Period{}, false
	}
	clipped = p
	if clipped.Start.Before(window.Start) {
		clipped.Start = window.Start
	}
	if clipped.End.After(window.End) {
		clipped.End = window.End
	}
	return clipped, true
}

// HorizonDays bounds how far from a reference day Horizon reaches on either
// side.
const HorizonDays = 5 * 366

// Horizon is the window of HorizonDays before and after ref. Expansions of
// backend data are clipped to it.
func Horizon(ref Day) Period {
	return Period{Start: ref.AddDays(-HorizonDays), End: ref.AddDays(HorizonDays)}
}

// OverlapsAny reports whether p shares a day with any of periods.
func OverlapsAny(p Period, periods []Period) bool {
	for _, q := range periods {
		if q.Start.IsZero() || q.End.IsZero() {
			continue
		}
		if p.Overlaps(q.Normalize()) {
			return true
		}
	}
	return false
}

// DaySet is a set of calendar days.
type DaySet map[Day]struct{}

// NewDaySet builds a set from the given days.
func NewDaySet(days ...Day) DaySet {
	set := make(DaySet, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}

func (s DaySet) Has(d Day) bool {
	_, ok := s[d]
	return ok
}

// Union returns a new set holding the days of both sets.
func (s DaySet) Union(other DaySet) DaySet {
	out := make(DaySet, len(s)+len(other))
	for d := range s {
		out[d] = struct{}{}
	}
	for d := range other {
		out[d] = struct{}{}
	}
	return out
}

// Sorted returns the days in ascending order.
func (s DaySet) Sorted() []Day {
	days := make([]Day, 0, len(s))
	for d := range s {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Expand returns one entry per day from p.Start to p.End inclusive. An
// inverted period expands to the empty set.
func Expand(p Period) DaySet {
	set := DaySet{}
	if p.Start.IsZero() || p.End.IsZero() {
		return set
	}
	for d := p.Start; !d.After(p.End); d = d.AddDays(1) {
		set[d] = struct{}{}
	}
	return set
}

// ExpandAll expands every period into one set. Periods from outside the
// process should go through ExpandWithin.
func ExpandAll(periods []Period) DaySet {
	set := DaySet{}
	for _, p := range periods {
		for d := range Expand(p) {
			set[d] = struct{}{}
		}
	}
	return set
}

// ExpandWithin expands the parts of periods that fall inside window.
func ExpandWithin(periods []Period, window Period) DaySet {
	set := DaySet{}
	for _, p := range periods {
		clipped, ok := p.Clip(window)
		if !ok {
			continue
		}
		for d := clipped.Start; !d.After(clipped.End); d = d.AddDays(1) {
			set[d] = struct{}{}
		}
	}
	return set
}

// RangeIntersects reports whether any day of [pickup, ret] is in set. A
// missing return date never intersects. The cost is bounded by the smaller
// of the range length and the set size.
func RangeIntersects(pickup Day, ret *Day, set DaySet) bool {
	if ret == nil || pickup.IsZero() || ret.IsZero() || len(set) == 0 || ret.Before(pickup) {
		return false
	}
	if DaysBetween(pickup, *ret) >= len(set) {
		rng := Period{Start: pickup, End: *ret}
		for d := range set {
			if rng.Contains(d) {
				return true
			}
		}
		return false
	}
	for d := pickup; !d.After(*ret); d = d.AddDays(1) {
		if set.Has(d) {
			return true
		}
	}
	return false
}
