package config

const EnvPrefix = "lendcart"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SlotDriverRedis  = "redis"
	SlotDriverSQL    = "sql"
	SlotDriverMemory = "memory"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv            = "LENDCART_APP_ENV"
	EnvPort              = "LENDCART_APP_PORT"
	EnvLogLevel          = "LENDCART_LOG_LEVEL"
	EnvCartSlotName      = "LENDCART_CART_SLOT_NAME"
	EnvCartSlotDriver    = "LENDCART_CART_SLOT_DRIVER"
	EnvCartTimezone      = "LENDCART_CART_TIMEZONE"
	EnvCartContextID     = "LENDCART_CART_CONTEXT_ID"
	EnvBackendBaseURL    = "LENDCART_BACKEND_BASE_URL"
	EnvRedisURL          = "LENDCART_REDIS_URL"
	EnvRedisAddr         = "LENDCART_REDIS_ADDR"
	EnvDBDSN             = "LENDCART_DB_DSN"
	EnvDBDriver          = "LENDCART_DB_DRIVER"
	EnvDBHost            = "LENDCART_DB_HOST"
	EnvDBUser            = "LENDCART_DB_USER"
	EnvDBName            = "LENDCART_DB_NAME"
	EnvCheckoutLockTTL   = "LENDCART_CHECKOUT_LOCK_TTL"
	EnvMetricsEnabled    = "LENDCART_METRICS_ENABLED"
	EnvCartFetchTimeout  = "LENDCART_CART_FETCH_TIMEOUT"
	EnvCartEnrichWorkers = "LENDCART_CART_ENRICH_CONCURRENCY"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
