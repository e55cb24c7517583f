package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/lendcart/api/validators"
	cartsvc "github.com/angelmondragon/lendcart/internal/cart"
	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

const maxMessageLength = 1000

// productID accepts both JSON strings and numbers, since the lending backend
// uses numeric ids.
type productID string

func (p *productID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*p = productID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("productId must be a string or number")
	}
	*p = productID(n.String())
	return nil
}

// requestDay parses a "2006-01-02" date or a date-time. A date-time is read
// as the calendar day it falls on in loc, so a browser sending local
// midnight as UTC gets the day it picked. Empty means no date.
func requestDay(field string, value *string, loc *time.Location) (*timeperiod.Day, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	d, err := timeperiod.ParseInstant(*value, loc)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid date").WithDetails(map[string]string{
			field: "must be a date (YYYY-MM-DD) or an RFC 3339 date-time",
		})
	}
	return &d, nil
}

func requestPeriod(pickup, ret *string, loc *time.Location) (*timeperiod.Day, *timeperiod.Day, error) {
	p, err := requestDay("pickupDate", pickup, loc)
	if err != nil {
		return nil, nil, err
	}
	r, err := requestDay("returnDate", ret, loc)
	if err != nil {
		return nil, nil, err
	}
	return p, r, nil
}

type addItemRequest struct {
	ProductID  productID `json:"productId" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
	Message    string    `json:"message" validate:"max=1000"`
	PickupDate *string   `json:"pickupDate"`
	ReturnDate *string   `json:"returnDate"`
}

func (r addItemRequest) toInput(loc *time.Location) (cartsvc.AddItemInput, error) {
	pickup, ret, err := requestPeriod(r.PickupDate, r.ReturnDate, loc)
	if err != nil {
		return cartsvc.AddItemInput{}, err
	}
	return cartsvc.AddItemInput{
		ProductID: validators.SanitizeIdentifier(string(r.ProductID)),
		Quantity:  r.Quantity,
		Message:   validators.SanitizeText(r.Message, maxMessageLength),
		Pickup:    pickup,
		Return:    ret,
	}, nil
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type updateMessageRequest struct {
	Message string `json:"message" validate:"max=1000"`
}

type updateRentalPeriodRequest struct {
	PickupDate *string `json:"pickupDate"`
	ReturnDate *string `json:"returnDate"`
}
