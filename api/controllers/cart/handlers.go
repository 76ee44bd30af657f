package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quickbite/quickbite-backend/api/middleware"
	"github.com/quickbite/quickbite-backend/api/responses"
	"github.com/quickbite/quickbite-backend/api/validators"
	cartsvc "github.com/quickbite/quickbite-backend/internal/cart"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
)

// Stores resolves the cart of a session.
type Stores interface {
	Get(ctx context.Context, sessionID string) (*cartsvc.Store, error)
}

func sessionStore(r *http.Request, stores Stores) (*cartsvc.Store, error) {
	if stores == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable")
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	return stores.Get(r.Context(), sessionID)
}

// CartFetch returns the cart snapshot: items, count, subtotal and live events.
func CartFetch(stores Stores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := sessionStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartAddItem adds one unit of the posted item.
func CartAddItem(stores Stores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := sessionStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := payload.toLineItem()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.AddToCart(r.Context(), item, payload.Source); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.Snapshot())
	}
}

func CartGetItem(stores Stores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := sessionStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, ok := store.Item(itemID(r))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart"))
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func CartUpdateQuantity(stores Stores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := sessionStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.UpdateQuantity(r.Context(), itemID(r), *payload.Quantity, payload.Source, payload.Item)
		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartRemoveItem removes the item. Removing an absent item is not an error.
func CartRemoveItem(stores Stores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := sessionStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload removeItemRequest
		if _, err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store.RemoveFromCart(r.Context(), itemID(r), payload.Source, payload.Item)
		responses.WriteSuccess(w, store.Snapshot())
	}
}

func CartClear(stores Stores, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := sessionStore(r, stores)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store.Clear(r.Context())
		responses.WriteNoContent(w)
	}
}

func itemID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "itemId"))
}
