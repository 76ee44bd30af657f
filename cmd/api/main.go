package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/quickbite/quickbite-backend/api/controllers"
	"github.com/quickbite/quickbite-backend/api/routes"
	"github.com/quickbite/quickbite-backend/internal/addressbook"
	"github.com/quickbite/quickbite-backend/internal/cart"
	"github.com/quickbite/quickbite-backend/internal/cron"
	"github.com/quickbite/quickbite-backend/internal/geocoding"
	"github.com/quickbite/quickbite-backend/internal/location"
	"github.com/quickbite/quickbite-backend/internal/orders"
	"github.com/quickbite/quickbite-backend/internal/userlocation"
	"github.com/quickbite/quickbite-backend/pkg/auth/session"
	"github.com/quickbite/quickbite-backend/pkg/config"
	"github.com/quickbite/quickbite-backend/pkg/db"
	"github.com/quickbite/quickbite-backend/pkg/instance"
	"github.com/quickbite/quickbite-backend/pkg/logger"
	"github.com/quickbite/quickbite-backend/pkg/maps"
	"github.com/quickbite/quickbite-backend/pkg/metrics"
	"github.com/quickbite/quickbite-backend/pkg/migrate"
	"github.com/quickbite/quickbite-backend/pkg/nominatim"
	"github.com/quickbite/quickbite-backend/pkg/redis"
	"github.com/quickbite/quickbite-backend/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// kvStore is the session store plus the rate limiter counter it backs.
type kvStore interface {
	storage.KV
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{"database": dbClient}
	closers := []func() error{dbClient.Close}

	var (
		kv     kvStore
		memory *storage.Memory
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		kv = redisClient
		readiness["redis"] = redisClient
		closers = append(closers, redisClient.Close)
	} else {
		logg.Warn(ctx, "redis not configured, session state is process-local")
		memory = storage.NewMemory()
		kv = memory
	}

	registry := prometheus.NewRegistry()
	geocodeMetrics := metrics.NewGeocodeMetrics(registry)

	geoOpts := geocoding.Options{
		Fallback: nominatim.NewClient(
			nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
			nominatim.WithUserAgent(cfg.Nominatim.UserAgent),
		),
		Cache:    kv,
		CacheTTL: cfg.Geocoding.CacheTTL,
		Logger:   logg,
		Metrics:  geocodeMetrics,
	}
	if cfg.GoogleMaps.APIKey != "" {
		var mapsOpts []maps.Option
		if cfg.GoogleMaps.BaseURL != "" {
			mapsOpts = append(mapsOpts, maps.WithBaseURL(cfg.GoogleMaps.BaseURL))
		}
		mapsClient, err := maps.NewClient(cfg.GoogleMaps.APIKey, mapsOpts...)
		if err != nil {
			logg.Error(ctx, "failed to create google maps client", err)
			os.Exit(1)
		}
		geoOpts.Primary = mapsClient
	} else {
		logg.Warn(ctx, "google maps key not set, reverse geocoding uses nominatim only")
	}
	geocoder := geocoding.NewService(geoOpts)

	// The backend resolver serves in-process so location lookups skip the
	// per-client geocode rate limit.
	resolver := location.NewChain(logg, geocodeMetrics,
		location.NewBackendResolver(cfg.Geocoding.BackendURL, cfg.Geocoding.BackendTimeout,
			location.WithBackendHandler(controllers.GeocodeReverse(geocoder, logg))),
		location.NewDirectResolver(cfg.Geocoding.DirectURL, cfg.Geocoding.DirectTimeout, nil),
		location.CoordinatesResolver{},
	)

	userLocations := userlocation.NewService(userlocation.NewRepository(dbClient.DB()))
	locations := location.NewManager(location.ManagerOptions{
		Resolver: resolver,
		Storage:  kv,
		Logger:   logg,
		Metrics:  metrics.NewLocationMetrics(registry),
		Config: location.Config{
			PositionTimeout:   cfg.Location.PositionTimeout,
			RelaxedMaximumAge: cfg.Location.RelaxedMaximumAge,
			MinUpdateInterval: cfg.Location.MinUpdateInterval,
			MinDistanceMeters: cfg.Location.MinDistanceMeters,
			DistanceFilter:    cfg.Location.DistanceFilter,
			CacheTTL:          cfg.Sessions.TTL,
		},
		ProfileFor: userLocations.ForUser,
	})
	closers = append(closers, func() error {
		locations.Close()
		return nil
	})

	carts := cart.NewManager(cart.ManagerOptions{
		Storage:    kv,
		Logger:     logg,
		Metrics:    metrics.NewCartMetrics(registry),
		EventTTL:   cfg.Cart.AnimationTTL,
		StorageTTL: cfg.Cart.StorageTTL,
	})

	sessions, err := session.NewManager(kv, cfg.Sessions.TTL)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config:        cfg,
		Logger:        logg,
		Readiness:     readiness,
		Sessions:      sessions,
		Limiter:       kv,
		Carts:         carts,
		Locations:     locations,
		Geocoder:      geocoder,
		UserLocations: userLocations,
		Addresses:     addressbook.NewService(addressbook.NewRepository(dbClient.DB())),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if cfg.Orders.BaseURL != "" {
		ordersClient, err := orders.NewClient(cfg.Orders.BaseURL, cfg.Orders.Timeout, orders.WithToken(cfg.Orders.APIToken))
		if err != nil {
			logg.Error(ctx, "failed to create orders client", err)
			os.Exit(1)
		}
		deps.Orders = ordersClient
	}

	evictionJob, err := cron.NewSessionEvictionJob(logg, cfg.Sessions.IdleTimeout, map[string]cron.Evictor{
		"cart":     carts,
		"location": locations,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session eviction job", err)
		os.Exit(1)
	}
	jobs := cron.NewRegistry(evictionJob)
	if memory != nil {
		sweepJob, err := cron.NewKVSweepJob(logg, memory)
		if err != nil {
			logg.Error(ctx, "failed to create kv sweep job", err)
			os.Exit(1)
		}
		if err := jobs.Register(sweepJob); err != nil {
			logg.Error(ctx, "failed to register kv sweep job", err)
			os.Exit(1)
		}
	}
	janitor, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Metrics:  metrics.NewJobMetrics(registry),
		Interval: cfg.Sessions.SweepInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}
	go func() {
		if err := janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "cron service stopped", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)
	for _, closeFn := range closers {
		shutdownErr = multierr.Append(shutdownErr, closeFn())
	}
	if shutdownErr != nil {
		logg.Error(serverCtx, "errors during shutdown", shutdownErr)
		exitCode = 1
	}
	os.Exit(exitCode)
}
