package config

// EnvPrefix is handed to envconfig; every variable below already carries it.
const EnvPrefix = "STOREPOS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "STOREPOS_APP_ENV"
	EnvPort         = "STOREPOS_APP_PORT"
	EnvLogLevel     = "STOREPOS_LOG_LEVEL"
	EnvLogWarnStack = "STOREPOS_LOG_WARN_STACK"

	EnvDBDSN         = "STOREPOS_DB_DSN"
	EnvDBDriver      = "STOREPOS_DB_DRIVER"
	EnvDBHost        = "STOREPOS_DB_HOST"
	EnvDBPort        = "STOREPOS_DB_PORT"
	EnvDBUser        = "STOREPOS_DB_USER"
	EnvDBPassword    = "STOREPOS_DB_PASSWORD"
	EnvDBName        = "STOREPOS_DB_NAME"
	EnvDBSSLMode     = "STOREPOS_DB_SSLMODE"
	EnvDBLockTimeout = "STOREPOS_DB_LOCK_TIMEOUT"

	EnvRedisURL  = "STOREPOS_REDIS_URL"
	EnvRedisAddr = "STOREPOS_REDIS_ADDR"

	EnvJWTSecret  = "STOREPOS_JWT_SECRET"
	EnvJWTIssuer  = "STOREPOS_JWT_ISSUER"
	EnvJWTExpMins = "STOREPOS_JWT_EXPIRATION_MINUTES"

	EnvTaxRate              = "STOREPOS_TAX_RATE"
	EnvLowStockThreshold    = "STOREPOS_LOW_STOCK_THRESHOLD"
	EnvBookingMaxAttempts   = "STOREPOS_SALE_BOOKING_MAX_ATTEMPTS"
	EnvBookingTimeout       = "STOREPOS_SALE_BOOKING_TIMEOUT"
	EnvLoyaltyPointsPerUnit = "STOREPOS_LOYALTY_POINTS_PER_UNIT"

	EnvGCPProjectID      = "STOREPOS_GCP_PROJECT_ID"
	EnvPubSubEventsTopic = "STOREPOS_PUBSUB_EVENTS_TOPIC"
	EnvBigQueryDataset   = "STOREPOS_BIGQUERY_DATASET"

	EnvUseSQLite   = "STOREPOS_USE_SQLITE"
	EnvAutoMigrate = "STOREPOS_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
