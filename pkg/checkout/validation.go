package checkout

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
)

const (
	ProblemEmptyCart        = "cart is empty"
	ProblemMissingPeriod    = "rental period incomplete"
	ProblemRentalError      = "rental error pending"
	ProblemInvalidQuantity  = "quantity must be at least 1"
	ProblemMissingProductID = "product id missing"
	ProblemNotValidated     = "rental period not checked against availability"
)

// ReadinessInput describes the data required to decide whether a cart entry
// can be booked.
type ReadinessInput struct {
	CartItemID  string
	ProductID   string
	Name        string
	Quantity    int
	HasPickup   bool
	HasReturn   bool
	RentalError string
	// Validated is set when the period passed the rental rules against
	// availability fetched for the current quantity.
	Validated bool
}

// ReadinessViolation exposes the data returned to callers when an entry is
// not ready.
type ReadinessViolation struct {
	CartItemID  string `json:"cart_item_id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name,omitempty"`
	Problem     string `json:"problem"`
	RentalError string `json:"rental_error,omitempty"`
}

// ValidateReadiness ensures the cart holds at least one entry and that every
// entry carries a complete rental period validated against availability for
// its quantity.
func ValidateReadiness(items []ReadinessInput) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, ProblemEmptyCart)
	}

	var violations []ReadinessViolation
	for _, item := range items {
		problem := ""
		switch {
		case item.ProductID == "":
			problem = ProblemMissingProductID
		case item.Quantity < 1:
			problem = ProblemInvalidQuantity
		case item.RentalError != "":
			problem = ProblemRentalError
		case !item.HasPickup || !item.HasReturn:
			problem = ProblemMissingPeriod
		case !item.Validated:
			problem = ProblemNotValidated
		}
		if problem == "" {
			continue
		}
		violations = append(violations, ReadinessViolation{
			CartItemID:  item.CartItemID,
			ProductID:   item.ProductID,
			Name:        item.Name,
			Problem:     problem,
			RentalError: item.RentalError,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%d cart item(s) not ready for checkout", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
