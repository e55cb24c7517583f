package cart

import (
	"time"

	cartsvc "github.com/angelmondragon/lendcart/internal/cart"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

type cartItemResponse struct {
	CartItemID           string              `json:"cartItemId"`
	ProductID            string              `json:"productId"`
	Quantity             int                 `json:"quantity"`
	Message              string              `json:"message"`
	PickupDate           *timeperiod.Day     `json:"pickupDate"`
	ReturnDate           *timeperiod.Day     `json:"returnDate"`
	RentalError          string              `json:"rentalError,omitempty"`
	Name                 string              `json:"name,omitempty"`
	Location             string              `json:"location,omitempty"`
	MaxLendingDays       int                 `json:"maxLendingDays,omitempty"`
	UnavailablePeriods   []timeperiod.Period `json:"unavailablePeriods"`
	DisabledDates        []timeperiod.Day    `json:"disabledDates"`
	AvailabilityQuantity int                 `json:"availabilityQuantity,omitempty"`
	EnrichedAt           *time.Time          `json:"enrichedAt,omitempty"`
}

type cartResponse struct {
	Version uint64             `json:"version"`
	Count   int                `json:"count"`
	Items   []cartItemResponse `json:"items"`
}

type countResponse struct {
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
}

type removeResponse struct {
	CartItemID string `json:"cartItemId"`
	Removed    bool   `json:"removed"`
}

func newCartItem(e cartsvc.Entry) cartItemResponse {
	periods := e.UnavailablePeriods
	if periods == nil {
		periods = []timeperiod.Period{}
	}
	return cartItemResponse{
		CartItemID:           e.ID,
		ProductID:            e.ProductID,
		Quantity:             e.Quantity,
		Message:              e.Message,
		PickupDate:           e.RentalPeriod.Pickup,
		ReturnDate:           e.RentalPeriod.Return,
		RentalError:          string(e.RentalError),
		Name:                 e.Name,
		Location:             e.Location,
		MaxLendingDays:       e.MaxLendingDays,
		UnavailablePeriods:   periods,
		DisabledDates:        e.DisabledDates.Sorted(),
		AvailabilityQuantity: e.AvailabilityQuantity,
		EnrichedAt:           e.EnrichedAt,
	}
}

func newCart(s cartsvc.Snapshot) cartResponse {
	items := make([]cartItemResponse, 0, len(s.Items))
	for _, e := range s.Items {
		items = append(items, newCartItem(e))
	}
	return cartResponse{Version: s.Version, Count: s.Count(), Items: items}
}
