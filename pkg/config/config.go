package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:storepos.db?_busy_timeout=5000&_foreign_keys=on"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Sales         SalesConfig
	Outbox        OutboxConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvDBDriver, DriverPostgres, DriverSQLite, c.DB.Driver)
	}
	if c.Sales.TaxRate.IsNegative() || c.Sales.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1), got %s", EnvTaxRate, c.Sales.TaxRate.String())
	}
	if c.Sales.BookingMaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvBookingMaxAttempts)
	}
	if c.Sales.LoyaltyPointsPerUnit.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvLoyaltyPointsPerUnit)
	}
	if (c.PubSub.Enabled() || c.BigQuery.Enabled()) && strings.TrimSpace(c.GCP.ProjectID) == "" {
		return fmt.Errorf("%s is required when %s or %s is set", EnvGCPProjectID, EnvPubSubEventsTopic, EnvBigQueryDataset)
	}
	if !c.App.IsDev() && strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New(EnvJWTSecret + " is required outside dev")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREPOS_APP_ENV" required:"true"`
	Version      string `envconfig:"STOREPOS_APP_VERSION" default:"dev"`
	Port         string `envconfig:"STOREPOS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREPOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREPOS_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists the till front-ends allowed to call the API.
	CORSOrigins []string `envconfig:"STOREPOS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREPOS_DB_DSN"`
	Driver string `envconfig:"STOREPOS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREPOS_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREPOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREPOS_DB_USER"`
	LegacyPassword string `envconfig:"STOREPOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREPOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREPOS_DB_SSLMODE" default:"disable"`

	// LockTimeout bounds how long a booking waits on a contended product row.
	LockTimeout time.Duration `envconfig:"STOREPOS_DB_LOCK_TIMEOUT" default:"3s"`

	MaxOpenConns    int           `envconfig:"STOREPOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREPOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREPOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREPOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the store runs on the embedded SQLite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREPOS_REDIS_URL"`
	Address      string        `envconfig:"STOREPOS_REDIS_ADDR"`
	Password     string        `envconfig:"STOREPOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREPOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREPOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREPOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREPOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREPOS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREPOS_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether any Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREPOS_JWT_SECRET"`
	Issuer            string `envconfig:"STOREPOS_JWT_ISSUER" default:"storepos"`
	ExpirationMinutes int    `envconfig:"STOREPOS_JWT_EXPIRATION_MINUTES" default:"720"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREPOS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREPOS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREPOS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREPOS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREPOS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STOREPOS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"STOREPOS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginUsernameLimit int           `envconfig:"STOREPOS_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
}

// SalesConfig holds the constants the sale booking path consumes but does not own.
type SalesConfig struct {
	TaxRate              decimal.Decimal `envconfig:"STOREPOS_TAX_RATE" default:"0.10"`
	LowStockThreshold    int             `envconfig:"STOREPOS_LOW_STOCK_THRESHOLD" default:"10"`
	BookingMaxAttempts   int             `envconfig:"STOREPOS_SALE_BOOKING_MAX_ATTEMPTS" default:"3"`
	BookingTimeout       time.Duration   `envconfig:"STOREPOS_SALE_BOOKING_TIMEOUT" default:"5s"`
	LoyaltyPointsPerUnit decimal.Decimal `envconfig:"STOREPOS_LOYALTY_POINTS_PER_UNIT" default:"1"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREPOS_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREPOS_OUTBOX_POLL_MS" default:"1000"`
	MaxAttempts    int `envconfig:"STOREPOS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// RetentionDays is how long published events are kept for replay and audit.
	RetentionDays int `envconfig:"STOREPOS_OUTBOX_RETENTION_DAYS" default:"14"`
}

// GCPConfig is shared by the optional Pub/Sub and BigQuery exporters.
type GCPConfig struct {
	ProjectID              string `envconfig:"STOREPOS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREPOS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig points the outbox worker at the topic that receives exported events.
type PubSubConfig struct {
	EventsTopic string `envconfig:"STOREPOS_PUBSUB_EVENTS_TOPIC"`
}

// Enabled reports whether event export is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.EventsTopic) != ""
}

// BigQueryConfig names the dataset and tables that receive sale and stock facts.
type BigQueryConfig struct {
	Dataset    string `envconfig:"STOREPOS_BIGQUERY_DATASET"`
	SalesTable string `envconfig:"STOREPOS_BIGQUERY_SALES_TABLE" default:"sale_facts"`
	StockTable string `envconfig:"STOREPOS_BIGQUERY_STOCK_TABLE" default:"stock_movement_facts"`
	// CreateTables lets the worker create missing fact tables on startup.
	CreateTables bool `envconfig:"STOREPOS_BIGQUERY_CREATE_TABLES" default:"false"`
}

// Enabled reports whether analytics export is configured.
func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREPOS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREPOS_AUTO_MIGRATE" default:"false"`
	// InProcessOutbox runs the outbox dispatcher inside the api process.
	InProcessOutbox bool `envconfig:"STOREPOS_IN_PROCESS_OUTBOX" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}
	db.DSN = u.String()
	return nil
}
