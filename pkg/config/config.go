package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PILLCART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Paygate      PaygateConfig
	Shipblu      ShipbluConfig
	Webhooks     WebhookConfig
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
	Env          string `envconfig:"PILLCART_APP_ENV" required:"true"`
	Port         string `envconfig:"PILLCART_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"PILLCART_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"PILLCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PILLCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PILLCART_DB_DSN"`
	Driver string `envconfig:"PILLCART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PILLCART_DB_HOST"`
	Port     int    `envconfig:"PILLCART_DB_PORT" default:"5432"`
	User     string `envconfig:"PILLCART_DB_USER"`
	Password string `envconfig:"PILLCART_DB_PASSWORD"`
	Name     string `envconfig:"PILLCART_DB_NAME"`
	SSLMode  string `envconfig:"PILLCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PILLCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PILLCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PILLCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PILLCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("db config requires either DSN or host/user/name")
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
	URL          string        `envconfig:"PILLCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PILLCART_REDIS_ADDR"`
	Password     string        `envconfig:"PILLCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"PILLCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PILLCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PILLCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PILLCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PILLCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PILLCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PILLCART_AUTO_MIGRATE" default:"false"`
}

// PaygateConfig carries the payment provider credentials and endpoints.
type PaygateConfig struct {
	BaseURL       string        `envconfig:"PILLCART_PAYGATE_BASE_URL" default:"https://api.paygate.example"`
	APIKey        string        `envconfig:"PILLCART_PAYGATE_API_KEY"`
	WebhookSecret string        `envconfig:"PILLCART_PAYGATE_WEBHOOK_SECRET"`
	Currency      string        `envconfig:"PILLCART_PAYGATE_CURRENCY" default:"EGP"`
	Timeout       time.Duration `envconfig:"PILLCART_PAYGATE_TIMEOUT" default:"15s"`
}

// ShipbluConfig carries the fulfillment provider credentials and endpoints.
type ShipbluConfig struct {
	BaseURL       string        `envconfig:"PILLCART_SHIPBLU_BASE_URL" default:"https://api.shipblu.example"`
	RefreshToken  string        `envconfig:"PILLCART_SHIPBLU_REFRESH_TOKEN"`
	WebhookSecret string        `envconfig:"PILLCART_SHIPBLU_WEBHOOK_SECRET"`
	StoreName     string        `envconfig:"PILLCART_SHIPBLU_STORE_NAME" default:"pillcart"`
	Timeout       time.Duration `envconfig:"PILLCART_SHIPBLU_TIMEOUT" default:"15s"`
}

// WebhookConfig tunes the inbound webhook guards.
type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PILLCART_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}
