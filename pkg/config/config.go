package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "recon"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "RECON_APP_ENV"
	EnvPort          = "RECON_APP_PORT"
	EnvRedisURL      = "RECON_REDIS_URL"
	EnvGatewaySecret = "RECON_GATEWAY_SIGNING_SECRET"

	EnvDBDSN      = "RECON_DB_DSN"
	EnvDBHost     = "RECON_DB_HOST"
	EnvDBPort     = "RECON_DB_PORT"
	EnvDBUser     = "RECON_DB_USER"
	EnvDBPassword = "RECON_DB_PASSWORD"
	EnvDBName     = "RECON_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Statuses     OrderStatusConfig
	Retention    RetentionConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"RECON_APP_ENV" required:"true"`
	Port         string `envconfig:"RECON_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RECON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RECON_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RECON_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RECON_DB_DSN"`
	Driver string `envconfig:"RECON_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RECON_DB_HOST"`
	LegacyPort     int    `envconfig:"RECON_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RECON_DB_USER"`
	LegacyPassword string `envconfig:"RECON_DB_PASSWORD"`
	LegacyName     string `envconfig:"RECON_DB_NAME"`
	LegacySSLMode  string `envconfig:"RECON_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RECON_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RECON_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RECON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RECON_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RECON_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RECON_REDIS_ADDR"`
	Password     string        `envconfig:"RECON_REDIS_PASSWORD"`
	DB           int           `envconfig:"RECON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RECON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RECON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RECON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RECON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RECON_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig describes the payment gateway integration surface.
type GatewayConfig struct {
	SigningSecret  string        `envconfig:"RECON_GATEWAY_SIGNING_SECRET" required:"true"`
	EventGuardTTL  time.Duration `envconfig:"RECON_GATEWAY_EVENT_GUARD_TTL" default:"24h"`
	MethodCodes    []string      `envconfig:"RECON_GATEWAY_METHODS" default:"checkout_card,checkout_apm,checkout_vault"`
	APMMethodCodes []string      `envconfig:"RECON_GATEWAY_APM_METHODS" default:"checkout_apm"`
}

// IsManagedMethod reports whether the payment method code belongs to this gateway.
func (g GatewayConfig) IsManagedMethod(code string) bool {
	return containsFold(g.MethodCodes, code)
}

// IsAlternativeMethod reports whether the payment method code is an
// alternative payment method, which captures without a prior authorization.
func (g GatewayConfig) IsAlternativeMethod(code string) bool {
	return containsFold(g.APMMethodCodes, code)
}

func containsFold(values []string, code string) bool {
	code = strings.TrimSpace(code)
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), code) {
			return true
		}
	}
	return false
}

// OrderStatusConfig maps transaction outcomes to order statuses.
type OrderStatusConfig struct {
	Pending    string `envconfig:"RECON_ORDER_STATUS_PENDING" default:"pending"`
	Authorized string `envconfig:"RECON_ORDER_STATUS_AUTHORIZED" default:"authorized"`
	Captured   string `envconfig:"RECON_ORDER_STATUS_CAPTURED" default:"processing"`
	Voided     string `envconfig:"RECON_ORDER_STATUS_VOIDED" default:"canceled"`
	Refunded   string `envconfig:"RECON_ORDER_STATUS_REFUNDED" default:"refunded"`
}

type RetentionConfig struct {
	GraceWindow   time.Duration `envconfig:"RECON_RETENTION_GRACE_WINDOW" default:"5m"`
	CommandMinAge time.Duration `envconfig:"RECON_RETENTION_COMMAND_MIN_AGE" default:"24h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"RECON_CRON_INTERVAL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RECON_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RECON_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RECON_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentTopic        string `envconfig:"RECON_PUBSUB_PAYMENT_TOPIC" default:"recon-payment-events"`
	PaymentSubscription string `envconfig:"RECON_PUBSUB_PAYMENT_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RECON_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RECON_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RECON_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RECON_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
