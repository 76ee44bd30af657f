package geocoding

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/geo"
	"github.com/quickbite/quickbite-backend/pkg/logger"
	"github.com/quickbite/quickbite-backend/pkg/maps"
	"github.com/quickbite/quickbite-backend/pkg/metrics"
	"github.com/quickbite/quickbite-backend/pkg/nominatim"
	"github.com/quickbite/quickbite-backend/pkg/storage"
)

const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"

	DefaultCacheTTL = 10 * time.Minute

	strategyGoogle    = "google"
	strategyNominatim = "nominatim"
)

// AddressComponents is the flattened address the clients consume.
type AddressComponents struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Area    string `json:"area"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
	Street  string `json:"street"`
}

type Result struct {
	FormattedAddress  string            `json:"formatted_address"`
	AddressComponents AddressComponents `json:"address_components"`
}

// Reverse is the reverse geocoding answer; Source tells which provider produced it.
type Reverse struct {
	Results []Result `json:"results"`
	Source  string   `json:"source"`
}

type Service interface {
	Reverse(ctx context.Context, lat, lng float64) (Reverse, error)
}

// PrimaryGeocoder is satisfied by *maps.Client.
type PrimaryGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*maps.GeocodeResult, error)
}

// FallbackGeocoder is satisfied by *nominatim.Client.
type FallbackGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (*nominatim.Place, error)
}

type Options struct {
	Primary  PrimaryGeocoder
	Fallback FallbackGeocoder
	Cache    storage.KV
	CacheTTL time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.GeocodeMetrics
}

type service struct {
	primary  PrimaryGeocoder
	fallback FallbackGeocoder
	cache    storage.KV
	cacheTTL time.Duration
	logg     *logger.Logger
	metrics  *metrics.GeocodeMetrics
	now      func() time.Time
}

func NewService(opts Options) Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &service{
		primary:  opts.Primary,
		fallback: opts.Fallback,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logg:     opts.Logger,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

func (s *service) Reverse(ctx context.Context, lat, lng float64) (Reverse, error) {
	if !(geo.Point{Lat: lat, Lng: lng}).Valid() {
		return Reverse{}, pkgerrors.New(pkgerrors.CodeValidation, "lat must be within [-90, 90] and lng within [-180, 180]")
	}
	if cached, ok := s.readCache(ctx, lat, lng); ok {
		return cached, nil
	}

	var errs error
	if s.primary != nil {
		start := s.now()
		result, err := s.primary.ReverseGeocode(ctx, lat, lng)
		s.metrics.Observe(strategyGoogle, s.now().Sub(start), err)
		if err == nil {
			return s.store(ctx, lat, lng, Reverse{Results: []Result{fromGoogle(result)}, Source: SourcePrimary}), nil
		}
		s.logg.WarnErr(ctx, "google reverse geocode failed; using nominatim", err)
		errs = multierr.Append(errs, err)
	}

	if s.fallback == nil {
		if errs == nil {
			return Reverse{}, pkgerrors.New(pkgerrors.CodeDependency, "no geocoding provider configured")
		}
		return Reverse{}, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "reverse geocoding failed")
	}

	start := s.now()
	place, err := s.fallback.Reverse(ctx, lat, lng)
	s.metrics.Observe(strategyNominatim, s.now().Sub(start), err)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return Reverse{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "no address found for coordinates")
		}
		return Reverse{}, pkgerrors.Wrap(pkgerrors.CodeDependency, multierr.Append(errs, err), "reverse geocoding failed")
	}
	return s.store(ctx, lat, lng, Reverse{Results: []Result{fromNominatim(place)}, Source: SourceFallback}), nil
}

func (s *service) readCache(ctx context.Context, lat, lng float64) (Reverse, bool) {
	if s.cache == nil {
		return Reverse{}, false
	}
	raw, found, err := s.cache.Read(ctx, storage.GeocodeKey(lat, lng))
	if err != nil {
		s.logg.WarnErr(ctx, "geocode cache read failed", err)
		return Reverse{}, false
	}
	if !found {
		return Reverse{}, false
	}
	var cached Reverse
	if err := json.Unmarshal([]byte(raw), &cached); err != nil || len(cached.Results) == 0 {
		return Reverse{}, false
	}
	return cached, true
}

func (s *service) store(ctx context.Context, lat, lng float64, resp Reverse) Reverse {
	if s.cache == nil {
		return resp
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return resp
	}
	if err := s.cache.Write(ctx, storage.GeocodeKey(lat, lng), string(payload), s.cacheTTL); err != nil {
		s.logg.WarnErr(ctx, "geocode cache write failed", err)
	}
	return resp
}

func fromGoogle(result *maps.GeocodeResult) Result {
	street := result.Component("route")
	if number := result.Component("street_number"); number != "" && street != "" {
		street = number + " " + street
	}
	return Result{
		FormattedAddress: strings.TrimSpace(result.FormattedAddress),
		AddressComponents: AddressComponents{
			City:    result.Component("locality", "postal_town", "administrative_area_level_2"),
			State:   result.Component("administrative_area_level_1"),
			Area:    result.Component("sublocality_level_1", "sublocality", "neighborhood"),
			Pincode: result.Component("postal_code"),
			Country: result.Component("country"),
			Street:  street,
		},
	}
}

func fromNominatim(place *nominatim.Place) Result {
	return Result{
		FormattedAddress: strings.TrimSpace(place.DisplayName),
		AddressComponents: AddressComponents{
			City:    place.City,
			State:   place.State,
			Area:    place.Area,
			Pincode: place.Postcode,
			Country: place.Country,
			Street:  place.Road,
		},
	}
}
