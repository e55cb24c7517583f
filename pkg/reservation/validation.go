package reservation

import (
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

// Reason explains why a candidate rental period was rejected. The values are
// shown to users verbatim.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonInvalidRange        Reason = "invalid range"
	ReasonMaxDurationExceeded Reason = "maximum rental duration exceeded"
	ReasonUnavailable         Reason = "unavailable in selected period"
	ReasonQuantityChanged     Reason = "quantity changed"
	ReasonPeriodExpired       Reason = "rental period lies in the past"
	ReasonBookingFailed       Reason = "booking failed"
)

// Period is a rental selection: empty, pickup only, or a complete pair.
type Period struct {
	Pickup *timeperiod.Day
	Return *timeperiod.Day
}

// IsEmpty reports whether no pickup date is selected.
func (p Period) IsEmpty() bool {
	return p.Pickup == nil
}

// IsComplete reports whether both dates are selected.
func (p Period) IsComplete() bool {
	return p.Pickup != nil && p.Return != nil
}

// Candidate is the input to Validate.
type Candidate struct {
	Pickup         *timeperiod.Day
	Return         *timeperiod.Day
	Disabled       timeperiod.DaySet
	MaxLendingDays int
	// Unavailable are the periods Disabled was expanded from. They are
	// checked directly so days outside the expansion horizon still count.
	Unavailable []timeperiod.Period
}

// Outcome holds the accepted period (possibly empty) and the rejection reason.
type Outcome struct {
	Period Period
	Reason Reason
}

// Accepted reports whether the candidate passed.
func (o Outcome) Accepted() bool {
	return o.Reason == ReasonNone
}

// Validate applies the rental rules in order: pickup-only selections pass,
// inverted ranges fail, spans longer than MaxLendingDays fail, ranges touching
// a disabled day fail. A rejection never substitutes other dates.
//
// MaxLendingDays <= 0 means the product limit is not known yet.
func Validate(c Candidate) Outcome {
	if c.Pickup == nil || c.Pickup.IsZero() {
		return Outcome{}
	}
	pickup := *c.Pickup
	if c.Return == nil || c.Return.IsZero() {
		return Outcome{Period: Period{Pickup: &pickup}}
	}
	ret := *c.Return

	if ret.Before(pickup) {
		return Outcome{Reason: ReasonInvalidRange}
	}
	if c.MaxLendingDays > 0 && timeperiod.DaysBetween(pickup, ret) > c.MaxLendingDays {
		return Outcome{Reason: ReasonMaxDurationExceeded}
	}
	if timeperiod.RangeIntersects(pickup, &ret, c.Disabled) ||
		timeperiod.OverlapsAny(timeperiod.Period{Start: pickup, End: ret}, c.Unavailable) {
		return Outcome{Reason: ReasonUnavailable}
	}
	return Outcome{Period: Period{Pickup: &pickup, Return: &ret}}
}
