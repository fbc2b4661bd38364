package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	Chat         ChatConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COLLECTIBLES_APP_ENV" required:"true"`
	Port         string `envconfig:"COLLECTIBLES_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COLLECTIBLES_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COLLECTIBLES_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"COLLECTIBLES_DB_DSN"`

	LegacyHost     string `envconfig:"COLLECTIBLES_DB_HOST"`
	LegacyPort     int    `envconfig:"COLLECTIBLES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COLLECTIBLES_DB_USER"`
	LegacyPassword string `envconfig:"COLLECTIBLES_DB_PASSWORD"`
	LegacyName     string `envconfig:"COLLECTIBLES_DB_NAME"`
	LegacySSLMode  string `envconfig:"COLLECTIBLES_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"COLLECTIBLES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COLLECTIBLES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COLLECTIBLES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COLLECTIBLES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional. An empty URL and address disables Redis-backed features.
type RedisConfig struct {
	URL          string        `envconfig:"COLLECTIBLES_REDIS_URL"`
	Address      string        `envconfig:"COLLECTIBLES_REDIS_ADDR"`
	Password     string        `envconfig:"COLLECTIBLES_REDIS_PASSWORD"`
	DB           int           `envconfig:"COLLECTIBLES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COLLECTIBLES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COLLECTIBLES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COLLECTIBLES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COLLECTIBLES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COLLECTIBLES_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// AuthConfig describes the hosted auth backend's token signing. Tokens are
// issued elsewhere; this service only verifies them.
type AuthConfig struct {
	JWTSecret   string `envconfig:"COLLECTIBLES_AUTH_JWT_SECRET"`
	JWTAudience string `envconfig:"COLLECTIBLES_AUTH_JWT_AUDIENCE" default:"authenticated"`
	JWTIssuer   string `envconfig:"COLLECTIBLES_AUTH_JWT_ISSUER"`
}

func (a AuthConfig) Enabled() bool {
	return strings.TrimSpace(a.JWTSecret) != ""
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"COLLECTIBLES_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COLLECTIBLES_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COLLECTIBLES_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	SecretKey     string `envconfig:"COLLECTIBLES_STRIPE_SECRET_KEY"`
	WebhookSecret string `envconfig:"COLLECTIBLES_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"COLLECTIBLES_STRIPE_ENV" default:"test"`
	// EventGuardTTL bounds how long a processed webhook event id is remembered in Redis.
	EventGuardTTL time.Duration `envconfig:"COLLECTIBLES_STRIPE_EVENT_GUARD_TTL" default:"720h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	Currency           string        `envconfig:"COLLECTIBLES_CHECKOUT_CURRENCY" default:"usd"`
	MinimumChargeUnits int64         `envconfig:"COLLECTIBLES_CHECKOUT_MIN_CHARGE_UNITS" default:"50"`
	DefaultOrigin      string        `envconfig:"COLLECTIBLES_CHECKOUT_DEFAULT_ORIGIN" default:"http://localhost:3000"`
	OrderTTL           time.Duration `envconfig:"COLLECTIBLES_ORDER_TTL" default:"24h"`
}

func (c CheckoutConfig) validate() error {
	if _, err := enums.ParseCurrency(c.Currency); err != nil {
		return fmt.Errorf("COLLECTIBLES_CHECKOUT_CURRENCY: %w", err)
	}
	if c.MinimumChargeUnits < 0 {
		return fmt.Errorf("%s must be >= 0", EnvCheckoutMinCharge)
	}
	if c.OrderTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvOrderTTL)
	}
	if _, err := url.Parse(c.DefaultOrigin); err != nil {
		return fmt.Errorf("%s: %w", EnvCheckoutDefaultOrigin, err)
	}
	return nil
}

type ChatConfig struct {
	APIKey       string        `envconfig:"COLLECTIBLES_CHAT_API_KEY"`
	BaseURL      string        `envconfig:"COLLECTIBLES_CHAT_BASE_URL" default:"https://api.groq.com/openai/v1"`
	Model        string        `envconfig:"COLLECTIBLES_CHAT_MODEL" default:"gemma2-9b-it"`
	Timeout      time.Duration `envconfig:"COLLECTIBLES_CHAT_TIMEOUT" default:"30s"`
	RateLimit    int           `envconfig:"COLLECTIBLES_CHAT_RATE_LIMIT" default:"20"`
	RateWindow   time.Duration `envconfig:"COLLECTIBLES_CHAT_RATE_WINDOW" default:"1m"`
	SystemPrompt string        `envconfig:"COLLECTIBLES_CHAT_SYSTEM_PROMPT" default:"You are a trade assistant. Help users with trading strategies, market analysis, and collectible valuation."`
}

type GCPConfig struct {
	ProjectID string `envconfig:"COLLECTIBLES_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ActivityTopic string `envconfig:"COLLECTIBLES_PUBSUB_ACTIVITY_TOPIC" default:"marketplace-activity"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COLLECTIBLES_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COLLECTIBLES_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COLLECTIBLES_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:collectibles.db?cache=shared"
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
