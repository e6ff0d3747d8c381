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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Bling        BlingConfig
	Invoice      InvoiceConfig
	Cache        CacheConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"BLINGBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"BLINGBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BLINGBRIDGE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BLINGBRIDGE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BLINGBRIDGE_LOG_WARN_STACK" default:"false"`
	Debug        bool   `envconfig:"BLINGBRIDGE_DEBUG" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"BLINGBRIDGE_DB_DSN"`
	Driver string `envconfig:"BLINGBRIDGE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BLINGBRIDGE_DB_HOST"`
	Port     int    `envconfig:"BLINGBRIDGE_DB_PORT" default:"5432"`
	User     string `envconfig:"BLINGBRIDGE_DB_USER"`
	Password string `envconfig:"BLINGBRIDGE_DB_PASSWORD"`
	Name     string `envconfig:"BLINGBRIDGE_DB_NAME"`
	SSLMode  string `envconfig:"BLINGBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BLINGBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BLINGBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BLINGBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BLINGBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BLINGBRIDGE_REDIS_URL"`
	Address      string        `envconfig:"BLINGBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"BLINGBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BLINGBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BLINGBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BLINGBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BLINGBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BLINGBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BLINGBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig validates the admin tokens presented to the privileged endpoints.
type JWTConfig struct {
	Secret            string `envconfig:"BLINGBRIDGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BLINGBRIDGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BLINGBRIDGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BLINGBRIDGE_AUTO_MIGRATE" default:"false"`
}

type BlingConfig struct {
	ClientID       string        `envconfig:"BLINGBRIDGE_BLING_CLIENT_ID"`
	ClientSecret   string        `envconfig:"BLINGBRIDGE_BLING_CLIENT_SECRET"`
	WebhookSecret  string        `envconfig:"BLINGBRIDGE_BLING_WEBHOOK_SECRET"`
	BaseURL        string        `envconfig:"BLINGBRIDGE_BLING_BASE_URL" default:"https://www.bling.com.br/Api/v3"`
	TokenURL       string        `envconfig:"BLINGBRIDGE_BLING_TOKEN_URL" default:"https://www.bling.com.br/Api/v3/oauth/token"`
	RedirectURL    string        `envconfig:"BLINGBRIDGE_BLING_REDIRECT_URL"`
	SuccessURL     string        `envconfig:"BLINGBRIDGE_BLING_OAUTH_SUCCESS_URL"`
	RequestTimeout time.Duration `envconfig:"BLINGBRIDGE_BLING_REQUEST_TIMEOUT" default:"30s"`
}

// SigningSecret returns the webhook secret, falling back to the OAuth client secret.
func (b BlingConfig) SigningSecret() string {
	if secret := strings.TrimSpace(b.WebhookSecret); secret != "" {
		return secret
	}
	return strings.TrimSpace(b.ClientSecret)
}

type InvoiceConfig struct {
	Series               int      `envconfig:"BLINGBRIDGE_INVOICE_SERIES" default:"1"`
	Purpose              int      `envconfig:"BLINGBRIDGE_INVOICE_PURPOSE" default:"1"`
	OperationID          int64    `envconfig:"BLINGBRIDGE_INVOICE_OPERATION_ID"`
	TriggerStatuses      []string `envconfig:"BLINGBRIDGE_INVOICE_TRIGGER_STATUSES" default:"completed"`
	AutoCreate           bool     `envconfig:"BLINGBRIDGE_INVOICE_AUTO_CREATE" default:"false"`
	SendEmail            bool     `envconfig:"BLINGBRIDGE_INVOICE_SEND_EMAIL" default:"false"`
	SyncCustomers        bool     `envconfig:"BLINGBRIDGE_SYNC_CUSTOMERS" default:"true"`
	SyncProducts         bool     `envconfig:"BLINGBRIDGE_SYNC_PRODUCTS" default:"false"`
	SalesChannelID       int64    `envconfig:"BLINGBRIDGE_SALES_CHANNEL_ID"`
	StoreURL             string   `envconfig:"BLINGBRIDGE_STORE_URL"`
	ContactOverwriteName bool     `envconfig:"BLINGBRIDGE_CONTACT_OVERWRITE_NAME" default:"false"`
}

type CacheConfig struct {
	SalesChannelTTL time.Duration `envconfig:"BLINGBRIDGE_CACHE_SALES_CHANNEL_TTL" default:"1h"`
	InvoiceLockTTL  time.Duration `envconfig:"BLINGBRIDGE_INVOICE_LOCK_TTL" default:"5m"`
	WebhookDedupTTL time.Duration `envconfig:"BLINGBRIDGE_WEBHOOK_DEDUP_TTL" default:"24h"`
}

type PubSubConfig struct {
	ProjectID       string `envconfig:"BLINGBRIDGE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"BLINGBRIDGE_GCP_CREDENTIALS_JSON"`
	TriggersTopic   string `envconfig:"BLINGBRIDGE_PUBSUB_TRIGGERS_TOPIC"`
}

// Enabled reports whether triggers should be published to Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != "" && strings.TrimSpace(p.TriggersTopic) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DriverSQLite) {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
