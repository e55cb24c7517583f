package availability

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
	"github.com/angelmondragon/lendcart/pkg/lending"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

type periodSource interface {
	GetUnavailablePeriods(ctx context.Context, productID string, requiredQuantity int) ([]lending.UnavailablePeriod, error)
}

// Result is the resolved availability of a product for one quantity.
type Result struct {
	Periods  []timeperiod.Period
	Disabled timeperiod.DaySet
}

// Resolver turns backend unavailability windows into calendar days.
type Resolver struct {
	source periodSource
	loc    *time.Location
	now    func() time.Time
}

// NewResolver builds a resolver reading days in loc.
func NewResolver(source periodSource, loc *time.Location) (*Resolver, error) {
	if source == nil {
		return nil, fmt.Errorf("period source required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{source: source, loc: loc, now: time.Now}, nil
}

// Resolve fetches the unavailable periods of productID for quantity and
// expands them within the horizon around today. Inverted periods are
// normalized.
func (r *Resolver) Resolve(ctx context.Context, productID string, quantity int) (Result, error) {
	raw, err := r.source.GetUnavailablePeriods(ctx, productID, quantity)
	if err != nil {
		return Result{}, err
	}

	periods := make([]timeperiod.Period, 0, len(raw))
	for i, p := range raw {
		start, err := timeperiod.ParseInstant(p.StartDate, r.loc)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("malformed unavailable period %d start", i))
		}
		end, err := timeperiod.ParseInstant(p.EndDate, r.loc)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("malformed unavailable period %d end", i))
		}
		periods = append(periods, timeperiod.Period{Start: start, End: end}.Normalize())
	}

	return Result{
		Periods:  periods,
		Disabled: timeperiod.ExpandWithin(periods, timeperiod.Horizon(timeperiod.DayIn(r.now(), r.loc))),
	}, nil
}
