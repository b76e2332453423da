package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "TAVOLO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "TAVOLO_APP_ENV"
	EnvPort   = "TAVOLO_APP_PORT"

	EnvDBDSN  = "TAVOLO_DB_DSN"
	EnvDBHost = "TAVOLO_DB_HOST"
	EnvDBUser = "TAVOLO_DB_USER"
	EnvDBName = "TAVOLO_DB_NAME"

	EnvRedisURL = "TAVOLO_REDIS_URL"

	EnvJWTSecret  = "TAVOLO_JWT_SECRET"
	EnvJWTIssuer  = "TAVOLO_JWT_ISSUER"
	EnvJWTExpMins = "TAVOLO_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID       = "TAVOLO_GCP_PROJECT_ID"
	EnvPubSubBillingTopic = "TAVOLO_PUBSUB_BILLING_TOPIC"
	EnvPubSubBillingSub   = "TAVOLO_PUBSUB_BILLING_SUBSCRIPTION"
	EnvPubSubOrdersSub    = "TAVOLO_PUBSUB_ORDERS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
