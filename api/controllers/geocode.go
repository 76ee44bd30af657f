package controllers

import (
	"net/http"

	"github.com/quickbite/quickbite-backend/api/responses"
	"github.com/quickbite/quickbite-backend/api/validators"
	"github.com/quickbite/quickbite-backend/internal/geocoding"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
)

type reverseGeocodeResponse struct {
	Results []geocoding.Result `json:"results"`
}

// GeocodeReverse answers GET /geocode/reverse?lat=&lng=. The envelope's
// source field names the provider that produced the results.
func GeocodeReverse(svc geocoding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "geocoding service unavailable"))
			return
		}
		point, err := validators.ParseCoordinates(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := svc.Reverse(r.Context(), point.Lat, point.Lng)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessFrom(w, resp.Source, reverseGeocodeResponse{Results: resp.Results})
	}
}
