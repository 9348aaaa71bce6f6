package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	Sweeper  SweeperConfig
	Flags    FlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STORELANE_APP_ENV" required:"true"`
	Port         string `envconfig:"STORELANE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STORELANE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STORELANE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"STORELANE_DB_DSN"`

	Host     string `envconfig:"STORELANE_DB_HOST"`
	Port     int    `envconfig:"STORELANE_DB_PORT" default:"5432"`
	User     string `envconfig:"STORELANE_DB_USER"`
	Password string `envconfig:"STORELANE_DB_PASSWORD"`
	Name     string `envconfig:"STORELANE_DB_NAME"`
	SSLMode  string `envconfig:"STORELANE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STORELANE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STORELANE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STORELANE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STORELANE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// LockTimeout bounds row-lock waits inside transactions so contended
	// checkouts surface a retryable error instead of blocking.
	LockTimeout time.Duration `envconfig:"STORELANE_DB_LOCK_TIMEOUT" default:"3s"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"STORELANE_REDIS_URL"`
	Address      string        `envconfig:"STORELANE_REDIS_ADDR"`
	Password     string        `envconfig:"STORELANE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STORELANE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STORELANE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STORELANE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STORELANE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STORELANE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STORELANE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"STORELANE_STRIPE_API_KEY"`
	Secret string `envconfig:"STORELANE_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"STORELANE_STRIPE_ENV" default:"test"`

	// EventIdempotencyTTL bounds the redis fast-path dedupe of webhook
	// event ids; the transaction reference id remains the durable guard.
	EventIdempotencyTTL time.Duration `envconfig:"STORELANE_STRIPE_EVENT_IDEMPOTENCY_TTL" default:"72h"`
}

func (s StripeConfig) Environment() string {
	return s.Env
}

type CheckoutConfig struct {
	// ReservationTTL is how long a checkout session holds stock before the
	// sweeper releases it. Stripe accepts 30m-24h session expiries.
	ReservationTTL time.Duration `envconfig:"STORELANE_CHECKOUT_RESERVATION_TTL" default:"24h"`
	SuccessURL     string        `envconfig:"STORELANE_CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/payment/success"`
	Currency       string        `envconfig:"STORELANE_CHECKOUT_CURRENCY" default:"usd"`
}

type SweeperConfig struct {
	Interval    time.Duration `envconfig:"STORELANE_SWEEPER_INTERVAL" default:"10m"`
	LockTTL     time.Duration `envconfig:"STORELANE_SWEEPER_LOCK_TTL" default:"15m"`
	MetricsPort string        `envconfig:"STORELANE_SWEEPER_METRICS_PORT" default:"9100"`
}

type FlagsConfig struct {
	AutoMigrate bool `envconfig:"STORELANE_AUTO_MIGRATE" default:"false"`
}
