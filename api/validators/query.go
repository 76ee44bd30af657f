package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/geo"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseCoordinates reads the required lat and lng query parameters.
func ParseCoordinates(r *http.Request) (geo.Point, error) {
	point, ok, err := ParseOptionalCoordinates(r)
	if err != nil {
		return geo.Point{}, err
	}
	if !ok {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeValidation, "Latitude and longitude are required").
			WithDetails(map[string]any{"fields": []string{"lat", "lng"}})
	}
	return point, nil
}

// ParseOptionalCoordinates reports ok=false when neither lat nor lng is given.
// Supplying only one of them is an error.
func ParseOptionalCoordinates(r *http.Request) (geo.Point, bool, error) {
	q := r.URL.Query()
	rawLat, rawLng := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if rawLat == "" && rawLng == "" {
		return geo.Point{}, false, nil
	}
	if rawLat == "" || rawLng == "" {
		return geo.Point{}, false, pkgerrors.New(pkgerrors.CodeValidation, "Latitude and longitude are required").
			WithDetails(map[string]any{"fields": []string{"lat", "lng"}})
	}
	lat, latErr := strconv.ParseFloat(rawLat, 64)
	lng, lngErr := strconv.ParseFloat(rawLng, 64)
	point := geo.Point{Lat: lat, Lng: lng}
	if latErr != nil || lngErr != nil || !point.Valid() {
		return geo.Point{}, false, pkgerrors.New(pkgerrors.CodeValidation, "Invalid coordinates").
			WithDetails(map[string]any{"lat": rawLat, "lng": rawLng})
	}
	return point, true, nil
}
