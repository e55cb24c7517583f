package cart

import (
	"slices"
	"time"

	"github.com/angelmondragon/lendcart/pkg/reservation"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

// Entry is one pending rental selection.
type Entry struct {
	ID           string
	ProductID    string
	Quantity     int
	Message      string
	RentalPeriod reservation.Period
	RentalError  reservation.Reason

	// Cached backend data. DisabledDates is UnavailablePeriods expanded within
	// the horizon around the day the data was applied.
	UnavailablePeriods []timeperiod.Period
	DisabledDates      timeperiod.DaySet
	MaxLendingDays     int
	Name               string
	Location           string

	// AvailabilityQuantity is the quantity UnavailablePeriods was fetched for;
	// zero when nothing was fetched yet.
	AvailabilityQuantity int
	// EnrichedAt is kept in memory only.
	EnrichedAt *time.Time
}

// HasCompletePeriod reports whether the entry holds an accepted pickup and
// return pair.
func (e Entry) HasCompletePeriod() bool {
	return e.RentalPeriod.IsComplete() && e.RentalError == reservation.ReasonNone
}

// Bookable reports whether the period passes the rental rules against
// availability fetched for the current quantity.
func (e Entry) Bookable() bool {
	if !e.HasCompletePeriod() || e.AvailabilityQuantity != e.Quantity {
		return false
	}
	return reservation.Validate(e.candidate(e.RentalPeriod.Pickup, e.RentalPeriod.Return)).Accepted()
}

func (e Entry) candidate(pickup, ret *timeperiod.Day) reservation.Candidate {
	return reservation.Candidate{
		Pickup:         pickup,
		Return:         ret,
		Disabled:       e.DisabledDates,
		MaxLendingDays: e.MaxLendingDays,
		Unavailable:    e.UnavailablePeriods,
	}
}

func (e Entry) clone() Entry {
	out := e
	out.RentalPeriod = clonePeriod(e.RentalPeriod)
	out.UnavailablePeriods = slices.Clone(e.UnavailablePeriods)
	if e.DisabledDates != nil {
		out.DisabledDates = timeperiod.NewDaySet().Union(e.DisabledDates)
	}
	if e.EnrichedAt != nil {
		at := *e.EnrichedAt
		out.EnrichedAt = &at
	}
	return out
}

func (e *Entry) setAvailability(periods []timeperiod.Period, quantity int, today timeperiod.Day) {
	e.UnavailablePeriods = slices.Clone(periods)
	e.DisabledDates = timeperiod.ExpandWithin(periods, timeperiod.Horizon(today))
	e.AvailabilityQuantity = quantity
}

// revalidate clears a complete period that no longer passes against the
// cached availability.
func (e *Entry) revalidate() {
	if !e.RentalPeriod.IsComplete() {
		return
	}
	outcome := reservation.Validate(e.candidate(e.RentalPeriod.Pickup, e.RentalPeriod.Return))
	if outcome.Accepted() {
		return
	}
	e.RentalPeriod = reservation.Period{}
	e.RentalError = outcome.Reason
}

func clonePeriod(p reservation.Period) reservation.Period {
	var out reservation.Period
	if p.Pickup != nil {
		d := *p.Pickup
		out.Pickup = &d
	}
	if p.Return != nil {
		d := *p.Return
		out.Return = &d
	}
	return out
}

func sameDay(a, b *timeperiod.Day) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// sameState compares everything that is persisted.
func sameState(a, b Entry) bool {
	return a.ID == b.ID &&
		a.ProductID == b.ProductID &&
		a.Quantity == b.Quantity &&
		a.Message == b.Message &&
		sameDay(a.RentalPeriod.Pickup, b.RentalPeriod.Pickup) &&
		sameDay(a.RentalPeriod.Return, b.RentalPeriod.Return) &&
		a.RentalError == b.RentalError &&
		slices.Equal(a.UnavailablePeriods, b.UnavailablePeriods) &&
		a.MaxLendingDays == b.MaxLendingDays &&
		a.Name == b.Name &&
		a.Location == b.Location &&
		a.AvailabilityQuantity == b.AvailabilityQuantity
}

// Snapshot is a consistent copy of the cart at Version.
type Snapshot struct {
	Version uint64
	Items   []Entry
}

// Count is the number of entries in the snapshot.
func (s Snapshot) Count() int {
	return len(s.Items)
}
