package cart

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/lendcart/api/responses"
	"github.com/angelmondragon/lendcart/api/validators"
	cartsvc "github.com/angelmondragon/lendcart/internal/cart"
	checkoutsvc "github.com/angelmondragon/lendcart/internal/checkout"
	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
	"github.com/angelmondragon/lendcart/pkg/logger"
	"github.com/angelmondragon/lendcart/pkg/timeperiod"
)

// Store is the cart surface used by the HTTP handlers.
type Store interface {
	AddItem(ctx context.Context, in cartsvc.AddItemInput) (cartsvc.Entry, error)
	RemoveItem(ctx context.Context, id string) (bool, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) (cartsvc.Entry, error)
	UpdateMessage(ctx context.Context, id, message string) (cartsvc.Entry, error)
	UpdateRentalPeriod(ctx context.Context, id string, pickup, ret *timeperiod.Day) (cartsvc.Entry, error)
	Clear(ctx context.Context) error
	ItemByID(id string) (cartsvc.Entry, bool)
	Snapshot() cartsvc.Snapshot
	Location() *time.Location
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
}

func cartItemID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "cartItemId"))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cartItemId is required")
	}
	return id, nil
}

// CartFetch returns every entry with the snapshot version.
func CartFetch(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		responses.WriteSuccess(w, newCart(store.Snapshot()))
	}
}

// CartCount is the badge view of the cart.
func CartCount(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		snap := store.Snapshot()
		responses.WriteSuccess(w, countResponse{Version: snap.Version, Count: snap.Count()})
	}
}

func CartItemFetch(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := cartItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, ok := store.ItemByID(id)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeNotFound, "cart item %s not found", id))
			return
		}
		responses.WriteSuccess(w, newCartItem(entry))
	}
}

// CartItemAdd appends a new entry.
func CartItemAdd(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(store.Location())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := store.AddItem(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartItem(entry))
	}
}

func CartItemUpdateQuantity(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := cartItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := store.UpdateQuantity(r.Context(), id, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartItem(entry))
	}
}

func CartItemUpdateMessage(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := cartItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateMessageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := store.UpdateMessage(r.Context(), id, validators.SanitizeText(payload.Message, maxMessageLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartItem(entry))
	}
}

// CartItemUpdateRentalPeriod validates and stores a period. A rejected
// period still answers 200; the entry carries the rental error.
func CartItemUpdateRentalPeriod(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := cartItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateRentalPeriodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pickup, ret, err := requestPeriod(payload.PickupDate, payload.ReturnDate, store.Location())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := store.UpdateRentalPeriod(r.Context(), id, pickup, ret)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartItem(entry))
	}
}

func CartItemRemove(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := cartItemID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		removed, err := store.RemoveItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, removeResponse{CartItemID: id, Removed: removed})
	}
}

func CartClear(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			unavailable(w, r, logg)
			return
		}
		if err := store.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(store.Snapshot()))
	}
}

// CartCheckout books the cart.
func CartCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		result, err := svc.Checkout(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
