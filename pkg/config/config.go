package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SOFRA_DB_DSN"
	EnvDBHost = "SOFRA_DB_HOST"
	EnvDBUser = "SOFRA_DB_USER"
	EnvDBName = "SOFRA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Commission CommissionConfig
	Trust      TrustConfig
	Settlement SettlementConfig
	Reconcile  ReconcileConfig
	Flags      FeatureFlagsConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Outbox     OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commission.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Trust.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SOFRA_APP_ENV" required:"true"`
	Port         string `envconfig:"SOFRA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOFRA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOFRA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SOFRA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOFRA_DB_DSN"`
	Driver string `envconfig:"SOFRA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOFRA_DB_HOST"`
	LegacyPort     int    `envconfig:"SOFRA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOFRA_DB_USER"`
	LegacyPassword string `envconfig:"SOFRA_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOFRA_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOFRA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOFRA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOFRA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOFRA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOFRA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOFRA_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"SOFRA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOFRA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOFRA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOFRA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOFRA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CommissionConfig carries the money-affecting rate constants. None of them
// default: a missing value must fail boot, never settle at zero.
type CommissionConfig struct {
	PerItemPlatformFeeCents  int64  `envconfig:"SOFRA_PER_ITEM_PLATFORM_FEE_CENTS"`
	PerItemReferrerRateCents int64  `envconfig:"SOFRA_PER_ITEM_REFERRER_RATE_CENTS"`
	CourierDeductionCents    int64  `envconfig:"SOFRA_COURIER_DEDUCTION_CENTS"`
	CourierDeductionRate     string `envconfig:"SOFRA_COURIER_DEDUCTION_RATE"`
}

// Validate enforces the presence and sanity of commission rates.
func (c CommissionConfig) Validate() error {
	if c.PerItemPlatformFeeCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "per-item platform fee is required")
	}
	if c.PerItemReferrerRateCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "per-item referrer rate is required")
	}
	if c.CourierDeductionCents < 0 {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "courier deduction must not be negative")
	}
	if c.CourierDeductionCents > 0 && strings.TrimSpace(c.CourierDeductionRate) != "" {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "courier deduction flat amount and rate are mutually exclusive")
	}
	if _, err := c.courierRate(); err != nil {
		return err
	}
	return nil
}

func (c CommissionConfig) courierRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.CourierDeductionRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeConfigMissing, err, "courier deduction rate is not a decimal")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeConfigMissing, "courier deduction rate must be within [0, 1]")
	}
	return rate, nil
}

// CourierDeductionRateDecimal returns the parsed rate; Validate must have
// succeeded first.
func (c CommissionConfig) CourierDeductionRateDecimal() decimal.Decimal {
	rate, _ := c.courierRate()
	return rate
}

// TrustConfig carries the trust-point thresholds and per-signal deltas.
// Deltas for negative signals are stored as negative numbers.
type TrustConfig struct {
	StartingPoints      int64 `envconfig:"SOFRA_TRUST_STARTING_POINTS"`
	FloorPoints         int64 `envconfig:"SOFRA_TRUST_FLOOR_POINTS" default:"0"`
	CeilingPoints       int64 `envconfig:"SOFRA_TRUST_CEILING_POINTS"`
	WarningThreshold    int64 `envconfig:"SOFRA_TRUST_WARNING_THRESHOLD"`
	SuspensionThreshold int64 `envconfig:"SOFRA_TRUST_SUSPENSION_THRESHOLD"`

	DeliveredDelta    int64 `envconfig:"SOFRA_TRUST_DELIVERED_DELTA"`
	CancelledDelta    int64 `envconfig:"SOFRA_TRUST_CANCELLED_DELTA"`
	LateDeliveryDelta int64 `envconfig:"SOFRA_TRUST_LATE_DELIVERY_DELTA"`
	ComplaintDelta    int64 `envconfig:"SOFRA_TRUST_COMPLAINT_DELTA"`
}

// Validate enforces threshold ordering and delta signs.
func (t TrustConfig) Validate() error {
	if t.CeilingPoints <= t.FloorPoints {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "trust ceiling must exceed floor")
	}
	if t.StartingPoints < t.FloorPoints || t.StartingPoints > t.CeilingPoints {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "trust starting points must sit within [floor, ceiling]")
	}
	if t.SuspensionThreshold <= t.FloorPoints || t.SuspensionThreshold > t.CeilingPoints {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "trust suspension threshold must sit within (floor, ceiling]")
	}
	if t.WarningThreshold < t.SuspensionThreshold {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "trust warning threshold must not sit below suspension threshold")
	}
	if t.DeliveredDelta <= 0 {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "delivered trust delta must be positive")
	}
	if t.CancelledDelta >= 0 || t.LateDeliveryDelta >= 0 || t.ComplaintDelta >= 0 {
		return pkgerrors.New(pkgerrors.CodeConfigMissing, "negative trust signals require negative deltas")
	}
	return nil
}

type SettlementConfig struct {
	ConflictRetries int `envconfig:"SOFRA_SETTLEMENT_CONFLICT_RETRIES" default:"3"`
}

type ReconcileConfig struct {
	Interval time.Duration `envconfig:"SOFRA_RECONCILE_INTERVAL" default:"10m"`
	LockKey  string        `envconfig:"SOFRA_RECONCILE_LOCK_KEY" default:"sofra:cron:reconcile"`
	LockTTL  time.Duration `envconfig:"SOFRA_RECONCILE_LOCK_TTL" default:"15m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SOFRA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SOFRA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SOFRA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"SOFRA_PUBSUB_DOMAIN_TOPIC" default:"sofra-domain-events"`
	DomainSubscription string `envconfig:"SOFRA_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SOFRA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SOFRA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SOFRA_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
