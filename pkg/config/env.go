package config

// EnvPrefix is empty because every tag spells out its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "COLLECTIBLES_APP_ENV"
	EnvPort     = "COLLECTIBLES_APP_PORT"
	EnvLogLevel = "COLLECTIBLES_LOG_LEVEL"

	EnvDBDSN  = "COLLECTIBLES_DB_DSN"
	EnvDBHost = "COLLECTIBLES_DB_HOST"
	EnvDBUser = "COLLECTIBLES_DB_USER"
	EnvDBName = "COLLECTIBLES_DB_NAME"

	EnvRedisURL = "COLLECTIBLES_REDIS_URL"

	EnvAuthJWTSecret = "COLLECTIBLES_AUTH_JWT_SECRET"

	EnvUseSQLite   = "COLLECTIBLES_USE_SQLITE"
	EnvAutoMigrate = "COLLECTIBLES_AUTO_MIGRATE"

	EnvStripeSecretKey     = "COLLECTIBLES_STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "COLLECTIBLES_STRIPE_WEBHOOK_SECRET"

	EnvCheckoutMinCharge     = "COLLECTIBLES_CHECKOUT_MIN_CHARGE_UNITS"
	EnvCheckoutDefaultOrigin = "COLLECTIBLES_CHECKOUT_DEFAULT_ORIGIN"
	EnvOrderTTL              = "COLLECTIBLES_ORDER_TTL"

	EnvChatAPIKey = "COLLECTIBLES_CHAT_API_KEY"

	EnvGCPProjectID        = "COLLECTIBLES_GCP_PROJECT_ID"
	EnvPubSubActivityTopic = "COLLECTIBLES_PUBSUB_ACTIVITY_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
