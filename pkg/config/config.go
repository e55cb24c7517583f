package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Cart     CartConfig
	Backend  BackendConfig
	Redis    RedisConfig
	DB       DBConfig
	Checkout CheckoutConfig
	Metrics  MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Cart.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	switch cfg.Cart.SlotDriver {
	case SlotDriverRedis:
		if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
			return nil, fmt.Errorf("%s or %s is required for the redis slot driver", EnvRedisURL, EnvRedisAddr)
		}
	case SlotDriverSQL:
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadMigrate reads only the App and DB sections, for the migrate binary.
func LoadMigrate() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.App); err != nil {
		return nil, fmt.Errorf("parsing app config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"LENDCART_APP_ENV" required:"true"`
	Port         string   `envconfig:"LENDCART_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"LENDCART_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"LENDCART_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"LENDCART_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"LENDCART_APP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CartConfig controls the durable slot and the enrichment pipeline.
type CartConfig struct {
	SlotName          string        `envconfig:"LENDCART_CART_SLOT_NAME" default:"cart"`
	SlotDriver        string        `envconfig:"LENDCART_CART_SLOT_DRIVER" default:"redis"`
	Timezone          string        `envconfig:"LENDCART_CART_TIMEZONE" default:"Local"`
	ContextID         string        `envconfig:"LENDCART_CART_CONTEXT_ID"`
	EnrichConcurrency int           `envconfig:"LENDCART_CART_ENRICH_CONCURRENCY" default:"8"`
	FetchTimeout      time.Duration `envconfig:"LENDCART_CART_FETCH_TIMEOUT" default:"10s"`
	PollInterval      time.Duration `envconfig:"LENDCART_CART_POLL_INTERVAL" default:"2s"`

	location *time.Location
}

// Location returns the timezone calendar days are computed in.
func (c CartConfig) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *CartConfig) normalize() error {
	c.SlotName = strings.TrimSpace(c.SlotName)
	if c.SlotName == "" {
		return fmt.Errorf("%s must not be empty", EnvCartSlotName)
	}

	c.SlotDriver = strings.ToLower(strings.TrimSpace(c.SlotDriver))
	switch c.SlotDriver {
	case SlotDriverRedis, SlotDriverSQL, SlotDriverMemory:
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s; got %q", EnvCartSlotDriver, SlotDriverRedis, SlotDriverSQL, SlotDriverMemory, c.SlotDriver)
	}

	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvCartTimezone, err)
	}
	c.location = loc

	if c.ContextID == "" {
		c.ContextID = uuid.NewString()
	}
	if c.EnrichConcurrency <= 0 {
		c.EnrichConcurrency = 1
	}
	return nil
}

// BackendConfig points at the lending REST API.
type BackendConfig struct {
	BaseURL  string        `envconfig:"LENDCART_BACKEND_BASE_URL" required:"true"`
	Timeout  time.Duration `envconfig:"LENDCART_BACKEND_TIMEOUT" default:"10s"`
	APIToken string        `envconfig:"LENDCART_BACKEND_API_TOKEN"`
}

func (b BackendConfig) validate() error {
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", EnvBackendBaseURL, b.BaseURL)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"LENDCART_REDIS_URL"`
	Address      string        `envconfig:"LENDCART_REDIS_ADDR"`
	Password     string        `envconfig:"LENDCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"LENDCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LENDCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LENDCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LENDCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LENDCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LENDCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	DSN    string `envconfig:"LENDCART_DB_DSN"`
	Driver string `envconfig:"LENDCART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LENDCART_DB_HOST"`
	Port     int    `envconfig:"LENDCART_DB_PORT" default:"5432"`
	User     string `envconfig:"LENDCART_DB_USER"`
	Password string `envconfig:"LENDCART_DB_PASSWORD"`
	Name     string `envconfig:"LENDCART_DB_NAME"`
	SSLMode  string `envconfig:"LENDCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LENDCART_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"LENDCART_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"LENDCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LENDCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"LENDCART_DB_AUTO_MIGRATE" default:"false"`
}

// IsSQLite reports whether the slot table lives in SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type CheckoutConfig struct {
	LockTTL time.Duration `envconfig:"LENDCART_CHECKOUT_LOCK_TTL" default:"2m"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"LENDCART_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"LENDCART_METRICS_PATH" default:"/metrics"`
}

func (db *DBConfig) ensureDSN() error {
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	if db.Driver != DBDriverPostgres && db.Driver != DBDriverSQLite {
		return fmt.Errorf("%s must be %s or %s, got %q", EnvDBDriver, DBDriverPostgres, DBDriverSQLite, db.Driver)
	}
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for sqlite", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
