package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/lendcart/internal/cart"
	pkgcheckout "github.com/angelmondragon/lendcart/pkg/checkout"
	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
	"github.com/angelmondragon/lendcart/pkg/lending"
	"github.com/angelmondragon/lendcart/pkg/logger"
	"github.com/angelmondragon/lendcart/pkg/metrics"
	"github.com/angelmondragon/lendcart/pkg/reservation"
)

const (
	OutcomeBooked   = "booked"
	OutcomePartial  = "partial"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeLocked   = "locked"
)

type cartStore interface {
	Items() []cart.Entry
	Location() *time.Location
	Clear(ctx context.Context) error
	RemoveItems(ctx context.Context, ids ...string) error
	MarkRentalError(ctx context.Context, reason reservation.Reason, ids ...string) error
}

type bookingClient interface {
	CreateBooking(ctx context.Context, req lending.BookingRequest) (*lending.Booking, error)
}

// Service submits the cart as bookings.
type Service interface {
	Checkout(ctx context.Context) (*Result, error)
}

// BookedItem is one entry that was turned into a booking.
type BookedItem struct {
	CartItemID string          `json:"cartItemId"`
	ProductID  string          `json:"productId"`
	BookingID  json.RawMessage `json:"bookingId,omitempty"`
	Status     string          `json:"status,omitempty"`
}

// FailedItem is one entry the backend refused.
type FailedItem struct {
	CartItemID string `json:"cartItemId"`
	ProductID  string `json:"productId"`
	Error      string `json:"error"`
}

// Result lists the outcome per entry.
type Result struct {
	Booked []BookedItem `json:"booked"`
	Failed []FailedItem `json:"failed"`
}

type service struct {
	store   cartStore
	booking bookingClient
	lock    Lock
	logg    *logger.Logger
	metrics *metrics.CartMetrics
}

// NewService builds the checkout service. logg and m may be nil.
func NewService(store cartStore, booking bookingClient, lock Lock, logg *logger.Logger, m *metrics.CartMetrics) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if booking == nil {
		return nil, fmt.Errorf("booking client required")
	}
	if lock == nil {
		lock = NewLocalLock()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{store: store, booking: booking, lock: lock, logg: logg, metrics: m}, nil
}

// Checkout books every entry in cart order. When all bookings succeed the
// cart is cleared. Otherwise booked entries are removed, failed ones are
// marked and a CodeDependency error listing the failures is returned along
// with the result.
func (s *service) Checkout(ctx context.Context) (*Result, error) {
	token, ok, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.IncCheckout(OutcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if !ok {
		s.metrics.IncCheckout(OutcomeLocked)
		return nil, pkgerrors.New(pkgerrors.CodeLocked, "checkout already in progress")
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), token); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.lock_release_failed")
		}
	}()

	items := s.store.Items()
	if err := pkgcheckout.ValidateReadiness(readinessInputs(items)); err != nil {
		s.metrics.IncCheckout(OutcomeRejected)
		return nil, err
	}

	loc := s.store.Location()
	result := &Result{Booked: []BookedItem{}, Failed: []FailedItem{}}
	var bookErr error
	for _, e := range items {
		ectx := s.logg.WithProductID(s.logg.WithCartItemID(ctx, e.ID), e.ProductID)
		booking, err := s.booking.CreateBooking(ctx, lending.BookingRequest{
			ItemID:    e.ProductID,
			StartDate: e.RentalPeriod.Pickup.Midnight(loc),
			EndDate:   e.RentalPeriod.Return.Midnight(loc),
			Message:   e.Message,
		})
		if err != nil {
			s.logg.Error(ectx, "checkout.booking_failed", err)
			bookErr = multierr.Append(bookErr, fmt.Errorf("cart item %s: %w", e.ID, err))
			result.Failed = append(result.Failed, FailedItem{CartItemID: e.ID, ProductID: e.ProductID, Error: err.Error()})
			continue
		}
		item := BookedItem{CartItemID: e.ID, ProductID: e.ProductID}
		if booking != nil {
			item.BookingID = booking.ID
			item.Status = booking.Status
		}
		result.Booked = append(result.Booked, item)
		s.logg.Info(ectx, "checkout.booked")
	}

	if len(result.Failed) == 0 {
		s.metrics.IncCheckout(OutcomeBooked)
		if err := s.store.Clear(ctx); err != nil {
			return result, err
		}
		return result, nil
	}

	outcome := OutcomePartial
	if len(result.Booked) == 0 {
		outcome = OutcomeFailed
	}
	s.metrics.IncCheckout(outcome)

	booked := make([]string, 0, len(result.Booked))
	for _, b := range result.Booked {
		booked = append(booked, b.CartItemID)
	}
	failed := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, f.CartItemID)
	}
	var storeErr error
	if len(booked) > 0 {
		storeErr = multierr.Append(storeErr, s.store.RemoveItems(ctx, booked...))
	}
	storeErr = multierr.Append(storeErr, s.store.MarkRentalError(ctx, reservation.ReasonBookingFailed, failed...))
	if storeErr != nil {
		s.logg.Error(ctx, "checkout.cart_update_failed", storeErr)
	}

	return result, pkgerrors.Wrap(pkgerrors.CodeDependency, bookErr,
		fmt.Sprintf("%d of %d booking(s) failed", len(result.Failed), len(items))).WithDetails(map[string]any{
		"failed": result.Failed,
		"booked": result.Booked,
	})
}

func readinessInputs(items []cart.Entry) []pkgcheckout.ReadinessInput {
	inputs := make([]pkgcheckout.ReadinessInput, len(items))
	for i, e := range items {
		inputs[i] = pkgcheckout.ReadinessInput{
			CartItemID:  e.ID,
			ProductID:   e.ProductID,
			Name:        e.Name,
			Quantity:    e.Quantity,
			HasPickup:   e.RentalPeriod.Pickup != nil,
			HasReturn:   e.RentalPeriod.Return != nil,
			RentalError: string(e.RentalError),
			Validated:   e.Bookable(),
		}
	}
	return inputs
}
