package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "ORDERDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	OrderIDStrategyUUID       = "uuid"
	OrderIDStrategySequential = "sequential"
)

const (
	EnvAppEnv          = "ORDERDESK_APP_ENV"
	EnvPort            = "ORDERDESK_APP_PORT"
	EnvLogLevel        = "ORDERDESK_LOG_LEVEL"
	EnvDBDSN           = "ORDERDESK_DB_DSN"
	EnvDBDriver        = "ORDERDESK_DB_DRIVER"
	EnvDBHost          = "ORDERDESK_DB_HOST"
	EnvDBUser          = "ORDERDESK_DB_USER"
	EnvDBName          = "ORDERDESK_DB_NAME"
	EnvRedisURL        = "ORDERDESK_REDIS_URL"
	EnvJWTSecret       = "ORDERDESK_JWT_SECRET"
	EnvJWTIssuer       = "ORDERDESK_JWT_ISSUER"
	EnvJWTExpMins      = "ORDERDESK_JWT_EXPIRATION_MINUTES"
	EnvRoleFulfillment = "ORDERDESK_ROLE_FULFILLMENT"
	EnvOrderIDStrategy = "ORDERDESK_ORDER_ID_STRATEGY"
	EnvItemTracking    = "ORDERDESK_REQUIRE_ITEM_COMPLETION_TRACKING"
	EnvGCPProjectID    = "ORDERDESK_GCP_PROJECT_ID"
	EnvPubSubOrders    = "ORDERDESK_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
