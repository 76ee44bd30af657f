package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/quickbite/quickbite-backend/api/middleware"
	"github.com/quickbite/quickbite-backend/api/responses"
	"github.com/quickbite/quickbite-backend/api/validators"
	"github.com/quickbite/quickbite-backend/internal/location"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
)

// UserLocationService is the saved "my location" of signed-in users.
type UserLocationService interface {
	Get(ctx context.Context, userID uuid.UUID) (location.Record, error)
	Update(ctx context.Context, userID uuid.UUID, rec location.Record) (location.Record, error)
}

type updateMyLocationRequest struct {
	Latitude         *float64 `json:"latitude" validate:"required,latitude"`
	Longitude        *float64 `json:"longitude" validate:"required,longitude"`
	City             string   `json:"city" validate:"max=128"`
	State            string   `json:"state" validate:"max=128"`
	Country          string   `json:"country" validate:"max=128"`
	Area             string   `json:"area" validate:"max=128"`
	Street           string   `json:"street" validate:"max=256"`
	Postcode         string   `json:"postcode" validate:"max=16"`
	FormattedAddress string   `json:"formattedAddress" validate:"max=512"`
	Address          string   `json:"address" validate:"max=512"`
	Source           string   `json:"source" validate:"max=32"`
}

func (r updateMyLocationRequest) toRecord() location.Record {
	rec := location.NewRecord(*r.Latitude, *r.Longitude)
	rec.City = r.City
	rec.State = r.State
	rec.Country = r.Country
	rec.Area = r.Area
	rec.Street = r.Street
	rec.Postcode = r.Postcode
	rec.FormattedAddress = r.FormattedAddress
	rec.Address = r.Address
	rec.Source = strings.ToLower(strings.TrimSpace(r.Source))
	return rec
}

func signedInUser(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in to continue")
	}
	return id, nil
}

func GetMyLocation(svc UserLocationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := signedInUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rec)
	}
}

func UpdateMyLocation(svc UserLocationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := signedInUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateMyLocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := svc.Update(r.Context(), userID, payload.toRecord())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rec)
	}
}
