package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

func day(m time.Month, d int) *timeperiod.Day {
	v := timeperiod.Date(2025, m, d)
	return &v
}

func TestValidateScenario(t *testing.T) {
	disabled := timeperiod.NewDaySet(*day(time.June, 10))

	tests := []struct {
		name   string
		pickup *timeperiod.Day
		ret    *timeperiod.Day
		want   Reason
	}{
		{name: "free window", pickup: day(time.June, 5), ret: day(time.June, 9), want: ReasonNone},
		{name: "overlaps disabled day", pickup: day(time.June, 5), ret: day(time.June, 11), want: ReasonUnavailable},
		{name: "too long wins over overlap", pickup: day(time.June, 1), ret: day(time.June, 10), want: ReasonMaxDurationExceeded},
		{name: "inverted", pickup: day(time.June, 9), ret: day(time.June, 5), want: ReasonInvalidRange},
		{name: "single day", pickup: day(time.June, 9), ret: day(time.June, 9), want: ReasonNone},
		{name: "exactly max", pickup: day(time.June, 1), ret: day(time.June, 8), want: ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Validate(Candidate{Pickup: tt.pickup, Return: tt.ret, Disabled: disabled, MaxLendingDays: 7})
			assert.Equal(t, tt.want, out.Reason)
			if tt.want == ReasonNone {
				require.True(t, out.Period.IsComplete())
				assert.Equal(t, *tt.pickup, *out.Period.Pickup)
				assert.Equal(t, *tt.ret, *out.Period.Return)
			} else {
				assert.True(t, out.Period.IsEmpty(), "rejection must clear the period")
			}
		})
	}
}

func TestValidatePickupOnlyIsPartial(t *testing.T) {
	disabled := timeperiod.NewDaySet(*day(time.June, 10))
	out := Validate(Candidate{Pickup: day(time.June, 10), Disabled: disabled, MaxLendingDays: 7})
	assert.True(t, out.Accepted())
	require.NotNil(t, out.Period.Pickup)
	assert.Nil(t, out.Period.Return)
}

func TestValidateNoPickupClears(t *testing.T) {
	out := Validate(Candidate{Return: day(time.June, 10)})
	assert.True(t, out.Accepted())
	assert.True(t, out.Period.IsEmpty())
}

func TestValidateUnknownLimitSkipsDurationRule(t *testing.T) {
	out := Validate(Candidate{Pickup: day(time.January, 1), Return: day(time.June, 1)})
	assert.True(t, out.Accepted())
}

func TestValidateMonotonicUnderSubsets(t *testing.T) {
	full := timeperiod.NewDaySet(*day(time.June, 2), *day(time.June, 20), *day(time.June, 21), *day(time.July, 1))
	subsets := []timeperiod.DaySet{
		{},
		timeperiod.NewDaySet(*day(time.June, 2)),
		timeperiod.NewDaySet(*day(time.June, 20), *day(time.July, 1)),
		full,
	}
	pickup, ret := day(time.June, 10), day(time.June, 15)
	require.True(t, Validate(Candidate{Pickup: pickup, Return: ret, Disabled: full, MaxLendingDays: 14}).Accepted())
	for _, s := range subsets {
		out := Validate(Candidate{Pickup: pickup, Return: ret, Disabled: s, MaxLendingDays: 14})
		assert.True(t, out.Accepted(), "subset %v must still accept", s.Sorted())
	}
}

func TestValidateDoesNotAliasInput(t *testing.T) {
	pickup, ret := day(time.June, 5), day(time.June, 9)
	out := Validate(Candidate{Pickup: pickup, Return: ret})
	*pickup = timeperiod.Date(2030, time.January, 1)
	assert.Equal(t, timeperiod.Date(2025, time.June, 5), *out.Period.Pickup)
}

func TestValidateRejectsOverlapBeyondExpandedDays(t *testing.T) {
	pickup := timeperiod.Date(2040, time.March, 1)
	ret := timeperiod.Date(2040, time.March, 3)
	out := Validate(Candidate{
		Pickup:      &pickup,
		Return:      &ret,
		Disabled:    timeperiod.DaySet{},
		Unavailable: []timeperiod.Period{{Start: timeperiod.Date(2030, time.January, 1), End: timeperiod.Date(9999, time.December, 31)}},
	})
	assert.Equal(t, ReasonUnavailable, out.Reason)
	assert.True(t, out.Period.IsEmpty())
}
