package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quickbite/quickbite-backend/api/controllers"
	cartcontrollers "github.com/quickbite/quickbite-backend/api/controllers/cart"
	locationcontrollers "github.com/quickbite/quickbite-backend/api/controllers/location"
	ordercontrollers "github.com/quickbite/quickbite-backend/api/controllers/orders"
	"github.com/quickbite/quickbite-backend/api/middleware"
	"github.com/quickbite/quickbite-backend/internal/geocoding"
	"github.com/quickbite/quickbite-backend/pkg/auth"
	"github.com/quickbite/quickbite-backend/pkg/auth/session"
	"github.com/quickbite/quickbite-backend/pkg/config"
	"github.com/quickbite/quickbite-backend/pkg/logger"
)

type sessionManager interface {
	session.AccessSessionChecker
	controllers.SessionIssuer
}

// Deps are the services the router mounts. Orders, Limiter and Metrics may be
// nil; the related routes then answer 503, skip limiting or are not mounted.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Readiness     map[string]controllers.Pinger
	Sessions      sessionManager
	Limiter       middleware.WindowLimiter
	Carts         cartcontrollers.Stores
	Locations     locationcontrollers.Sessions
	Geocoder      geocoding.Service
	UserLocations controllers.UserLocationService
	Addresses     controllers.AddressBook
	Orders        ordercontrollers.Client
	Metrics       http.Handler
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	geocodePolicy := middleware.NewRateLimitPolicy("geocode", cfg.Geocoding.RateWindow, cfg.Geocoding.RateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Readiness))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.JWT, d.Sessions, logg))

		r.With(middleware.RateLimit(geocodePolicy, d.Limiter, logg)).
			Get("/geocode/reverse", controllers.GeocodeReverse(d.Geocoder, logg))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", controllers.SessionOpen(d.Sessions, cfg.JWT, logg))
			r.With(middleware.RequireSession(logg)).Delete("/", controllers.SessionClose(d.Sessions, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(d.Carts, logg))
				r.Delete("/", cartcontrollers.CartClear(d.Carts, logg))
				r.Post("/items", cartcontrollers.CartAddItem(d.Carts, logg))
				r.Get("/items/{itemId}", cartcontrollers.CartGetItem(d.Carts, logg))
				r.Patch("/items/{itemId}", cartcontrollers.CartUpdateQuantity(d.Carts, logg))
				r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(d.Carts, logg))
			})

			r.Route("/location", func(r chi.Router) {
				r.Get("/", locationcontrollers.LocationCurrent(d.Locations, logg))
				r.Post("/resolve", locationcontrollers.LocationResolve(d.Locations, logg))
				r.Post("/refresh", locationcontrollers.LocationRefresh(d.Locations, logg))
				r.Post("/positions", locationcontrollers.LocationPushPosition(d.Locations, logg))
				r.Post("/tracking", locationcontrollers.LocationStartTracking(d.Locations, logg))
				r.Delete("/tracking", locationcontrollers.LocationStopTracking(d.Locations, logg))
				r.Get("/distance", locationcontrollers.LocationDistance(d.Locations, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))

			r.Get("/users/me/location", controllers.GetMyLocation(d.UserLocations, logg))
			r.Put("/users/me/location", controllers.UpdateMyLocation(d.UserLocations, logg))

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(d.Addresses, logg))
				r.Post("/", controllers.AddressCreate(d.Addresses, logg))
				r.Get("/nearest", controllers.AddressNearest(d.Addresses, logg))
				r.Get("/labels/{label}", controllers.AddressSelect(d.Addresses, logg))
				r.Delete("/{addressId}", controllers.AddressDelete(d.Addresses, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.RequireRole(string(auth.RoleAdmin), logg))

		r.Get("/ping", controllers.AdminPing())
		r.Get("/orders", ordercontrollers.AdminOrderList(d.Orders, logg))
		r.Post("/orders/{orderRef}/refund", ordercontrollers.AdminOrderRefund(d.Orders, logg))
	})

	return r
}
