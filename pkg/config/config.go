package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Billing      BillingConfig
	PubSub       PubSubConfig
	GCP          GCPConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"TAVOLO_APP_ENV" required:"true"`
	Port         string `envconfig:"TAVOLO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TAVOLO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TAVOLO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TAVOLO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TAVOLO_DB_DSN"`
	Driver string `envconfig:"TAVOLO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TAVOLO_DB_HOST"`
	LegacyPort     int    `envconfig:"TAVOLO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TAVOLO_DB_USER"`
	LegacyPassword string `envconfig:"TAVOLO_DB_PASSWORD"`
	LegacyName     string `envconfig:"TAVOLO_DB_NAME"`
	LegacySSLMode  string `envconfig:"TAVOLO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TAVOLO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TAVOLO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TAVOLO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TAVOLO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TAVOLO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TAVOLO_REDIS_ADDR"`
	Password     string        `envconfig:"TAVOLO_REDIS_PASSWORD"`
	DB           int           `envconfig:"TAVOLO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TAVOLO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TAVOLO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TAVOLO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TAVOLO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TAVOLO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type RateLimitConfig struct {
	Window        time.Duration `envconfig:"TAVOLO_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit       int           `envconfig:"TAVOLO_RATE_LIMIT_IP" default:"300"`
	MerchantLimit int           `envconfig:"TAVOLO_RATE_LIMIT_MERCHANT" default:"120"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TAVOLO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TAVOLO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TAVOLO_JWT_EXPIRATION_MINUTES" required:"true"`
}

// BillingConfig groups every tunable of the subscription and balance engine.
type BillingConfig struct {
	TrialDays              int           `envconfig:"TAVOLO_BILLING_TRIAL_DAYS" default:"14"`
	PaymentRequestTTL      time.Duration `envconfig:"TAVOLO_BILLING_PAYMENT_REQUEST_TTL" default:"48h"`
	CreateCooldown         time.Duration `envconfig:"TAVOLO_BILLING_CREATE_COOLDOWN" default:"1m"`
	MinDepositBalance      string        `envconfig:"TAVOLO_BILLING_MIN_DEPOSIT_BALANCE" default:"0"`
	DefaultCurrency        string        `envconfig:"TAVOLO_BILLING_DEFAULT_CURRENCY" default:"USD"`
	BankName               string        `envconfig:"TAVOLO_BILLING_BANK_NAME"`
	BankAccount            string        `envconfig:"TAVOLO_BILLING_BANK_ACCOUNT"`
	BankAccountName        string        `envconfig:"TAVOLO_BILLING_BANK_ACCOUNT_NAME"`
	BankReferencePrefix    string        `envconfig:"TAVOLO_BILLING_BANK_REFERENCE_PREFIX" default:"TAV"`
	HistoryDefaultPageSize int           `envconfig:"TAVOLO_BILLING_HISTORY_PAGE_SIZE" default:"50"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TAVOLO_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TAVOLO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TAVOLO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BillingTopic        string `envconfig:"TAVOLO_PUBSUB_BILLING_TOPIC" required:"true"`
	BillingSubscription string `envconfig:"TAVOLO_PUBSUB_BILLING_SUBSCRIPTION" required:"true"`

	// OrdersSubscription feeds completed orders into the fee hook; only the
	// order worker needs it set.
	OrdersSubscription string `envconfig:"TAVOLO_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TAVOLO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TAVOLO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TAVOLO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TAVOLO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TAVOLO_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	ExpirySweepInterval    time.Duration `envconfig:"TAVOLO_CRON_EXPIRY_SWEEP_INTERVAL" default:"5m"`
	ReconcileSweepInterval time.Duration `envconfig:"TAVOLO_CRON_RECONCILE_SWEEP_INTERVAL" default:"15m"`
	LockTTL                time.Duration `envconfig:"TAVOLO_CRON_LOCK_TTL" default:"4m"`
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
