package config

const (
	EnvPrefix = "BLINGBRIDGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv   = "BLINGBRIDGE_APP_ENV"
	EnvPort     = "BLINGBRIDGE_APP_PORT"
	EnvDBDSN    = "BLINGBRIDGE_DB_DSN"
	EnvDBHost   = "BLINGBRIDGE_DB_HOST"
	EnvDBUser   = "BLINGBRIDGE_DB_USER"
	EnvDBName   = "BLINGBRIDGE_DB_NAME"
	EnvRedisURL = "BLINGBRIDGE_REDIS_URL"

	EnvJWTSecret = "BLINGBRIDGE_JWT_SECRET"
	EnvJWTIssuer = "BLINGBRIDGE_JWT_ISSUER"

	EnvBlingClientID      = "BLINGBRIDGE_BLING_CLIENT_ID"
	EnvBlingClientSecret  = "BLINGBRIDGE_BLING_CLIENT_SECRET"
	EnvBlingWebhookSecret = "BLINGBRIDGE_BLING_WEBHOOK_SECRET"

	EnvInvoiceTriggerStatuses = "BLINGBRIDGE_INVOICE_TRIGGER_STATUSES"
	EnvInvoiceAutoCreate      = "BLINGBRIDGE_INVOICE_AUTO_CREATE"
	EnvSalesChannelID         = "BLINGBRIDGE_SALES_CHANNEL_ID"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
