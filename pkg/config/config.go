package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GoogleMaps   GoogleMapsConfig
	Nominatim    NominatimConfig
	Geocoding    GeocodingConfig
	Location     LocationConfig
	Cart         CartConfig
	Orders       OrdersConfig
	Sessions     SessionsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	if cfg.Geocoding.BackendURL == "" {
		cfg.Geocoding.BackendURL = cfg.App.PublicBaseURL
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string `envconfig:"QUICKBITE_APP_ENV" required:"true"`
	Port          string `envconfig:"QUICKBITE_APP_PORT" default:"8080"`
	PublicBaseURL string `envconfig:"QUICKBITE_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	LogLevel      string `envconfig:"QUICKBITE_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"QUICKBITE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"QUICKBITE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"QUICKBITE_DB_DSN" required:"true"`
	Driver string `envconfig:"QUICKBITE_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"QUICKBITE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"QUICKBITE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"QUICKBITE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"QUICKBITE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) validate() error {
	switch strings.ToLower(db.Driver) {
	case DriverPostgres, DriverSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, db.Driver)
	}
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// RedisConfig is optional: without a URL or address, session state stays in process memory.
type RedisConfig struct {
	URL          string        `envconfig:"QUICKBITE_REDIS_URL"`
	Address      string        `envconfig:"QUICKBITE_REDIS_ADDR"`
	Password     string        `envconfig:"QUICKBITE_REDIS_PASSWORD"`
	DB           int           `envconfig:"QUICKBITE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"QUICKBITE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"QUICKBITE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"QUICKBITE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QUICKBITE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"QUICKBITE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig verifies bearer tokens minted by the auth service. An empty secret
// disables bearer auth and sessions fall back to the X-Session-Id header.
type JWTConfig struct {
	Secret            string `envconfig:"QUICKBITE_JWT_SECRET"`
	Issuer            string `envconfig:"QUICKBITE_JWT_ISSUER" default:"quickbite"`
	ExpirationMinutes int    `envconfig:"QUICKBITE_JWT_EXPIRATION_MINUTES" default:"1440"`
}

func (j JWTConfig) Enabled() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"QUICKBITE_AUTO_MIGRATE" default:"false"`
}

type GoogleMapsConfig struct {
	APIKey  string `envconfig:"QUICKBITE_GOOGLE_MAPS_API_KEY"`
	BaseURL string `envconfig:"QUICKBITE_GOOGLE_MAPS_BASE_URL"`
}

type NominatimConfig struct {
	BaseURL   string `envconfig:"QUICKBITE_NOMINATIM_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	UserAgent string `envconfig:"QUICKBITE_NOMINATIM_USER_AGENT" default:"quickbite-backend/1.0"`
}

type GeocodingConfig struct {
	BackendURL     string        `envconfig:"QUICKBITE_GEOCODE_BACKEND_URL"`
	BackendTimeout time.Duration `envconfig:"QUICKBITE_GEOCODE_BACKEND_TIMEOUT" default:"8s"`
	DirectURL      string        `envconfig:"QUICKBITE_GEOCODE_DIRECT_URL" default:"https://api.bigdatacloud.net/data/reverse-geocode-client?latitude={lat}&longitude={lng}&localityLanguage=en"`
	DirectTimeout  time.Duration `envconfig:"QUICKBITE_GEOCODE_DIRECT_TIMEOUT" default:"5s"`
	CacheTTL       time.Duration `envconfig:"QUICKBITE_GEOCODE_CACHE_TTL" default:"10m"`
	// RateLimit caps reverse geocode requests per client IP per RateWindow; zero disables it.
	RateLimit  int           `envconfig:"QUICKBITE_GEOCODE_RATE_LIMIT" default:"60"`
	RateWindow time.Duration `envconfig:"QUICKBITE_GEOCODE_RATE_WINDOW" default:"1m"`
}

type LocationConfig struct {
	PositionTimeout   time.Duration `envconfig:"QUICKBITE_LOCATION_POSITION_TIMEOUT" default:"30s"`
	RelaxedMaximumAge time.Duration `envconfig:"QUICKBITE_LOCATION_RELAXED_MAX_AGE" default:"5m"`
	MinUpdateInterval time.Duration `envconfig:"QUICKBITE_LOCATION_MIN_UPDATE_INTERVAL" default:"2s"`
	MinDistanceMeters float64       `envconfig:"QUICKBITE_LOCATION_MIN_DISTANCE_METERS" default:"10"`
	DistanceFilter    bool          `envconfig:"QUICKBITE_LOCATION_DISTANCE_FILTER" default:"false"`
}

type CartConfig struct {
	AnimationTTL time.Duration `envconfig:"QUICKBITE_CART_ANIMATION_TTL" default:"1500ms"`
	StorageTTL   time.Duration `envconfig:"QUICKBITE_CART_STORAGE_TTL" default:"720h"`
}

type OrdersConfig struct {
	BaseURL  string        `envconfig:"QUICKBITE_ORDERS_BASE_URL"`
	APIToken string        `envconfig:"QUICKBITE_ORDERS_API_TOKEN"`
	Timeout  time.Duration `envconfig:"QUICKBITE_ORDERS_TIMEOUT" default:"10s"`
}

// SessionsConfig governs in-process session state. Idle sessions are swept
// every SweepInterval; persisted cart and location data outlive them.
type SessionsConfig struct {
	TTL           time.Duration `envconfig:"QUICKBITE_SESSION_TTL" default:"720h"`
	IdleTimeout   time.Duration `envconfig:"QUICKBITE_SESSION_IDLE_TIMEOUT" default:"30m"`
	SweepInterval time.Duration `envconfig:"QUICKBITE_SESSION_SWEEP_INTERVAL" default:"5m"`
}
