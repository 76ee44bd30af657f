package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quickbite/quickbite-backend/api/responses"
	"github.com/quickbite/quickbite-backend/api/validators"
	"github.com/quickbite/quickbite-backend/internal/addressbook"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/geo"
	"github.com/quickbite/quickbite-backend/pkg/logger"
)

type AddressBook interface {
	List(ctx context.Context, userID uuid.UUID, from *geo.Point) ([]addressbook.Entry, error)
	Nearest(ctx context.Context, userID uuid.UUID, p geo.Point) (addressbook.Entry, error)
	Select(ctx context.Context, userID uuid.UUID, label string) (addressbook.Entry, error)
	Create(ctx context.Context, userID uuid.UUID, in addressbook.CreateInput) (addressbook.Entry, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// AddressList lists the caller's entries, nearest first when lat/lng are given.
func AddressList(book AddressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := signedInUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		point, ok, err := validators.ParseOptionalCoordinates(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var from *geo.Point
		if ok {
			from = &point
		}
		entries, err := book.List(r.Context(), userID, from)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

func AddressNearest(book AddressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := signedInUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		point, err := validators.ParseCoordinates(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := book.Nearest(r.Context(), userID, point)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

// AddressSelect picks the caller's entry for a label (Home, Office, Other).
func AddressSelect(book AddressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := signedInUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := book.Select(r.Context(), userID, strings.TrimSpace(chi.URLParam(r, "label")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func AddressCreate(book AddressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := signedInUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addressbook.CreateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := book.Create(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func AddressDelete(book AddressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := signedInUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "addressId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address id"))
			return
		}
		if err := book.Delete(r.Context(), userID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
