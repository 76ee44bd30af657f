package config

// EnvPrefix is empty because every field names its full variable.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "QUICKBITE_APP_ENV"
	EnvPort            = "QUICKBITE_APP_PORT"
	EnvPublicBaseURL   = "QUICKBITE_PUBLIC_BASE_URL"
	EnvDBDSN           = "QUICKBITE_DB_DSN"
	EnvDBDriver        = "QUICKBITE_DB_DRIVER"
	EnvRedisURL        = "QUICKBITE_REDIS_URL"
	EnvJWTSecret       = "QUICKBITE_JWT_SECRET"
	EnvJWTIssuer       = "QUICKBITE_JWT_ISSUER"
	EnvGoogleMapsKey   = "QUICKBITE_GOOGLE_MAPS_API_KEY"
	EnvBackendTimeout  = "QUICKBITE_GEOCODE_BACKEND_TIMEOUT"
	EnvDirectTimeout   = "QUICKBITE_GEOCODE_DIRECT_TIMEOUT"
	EnvMinUpdateGap    = "QUICKBITE_LOCATION_MIN_UPDATE_INTERVAL"
	EnvMinDistance     = "QUICKBITE_LOCATION_MIN_DISTANCE_METERS"
	EnvOrdersBaseURL   = "QUICKBITE_ORDERS_BASE_URL"
	EnvCartStorageTTL  = "QUICKBITE_CART_STORAGE_TTL"
	EnvAnimationExpiry = "QUICKBITE_CART_ANIMATION_TTL"
)
