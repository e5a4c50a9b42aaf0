package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

const minSecretLength = 32

type Config struct {
	Server       ServerConfig       `env:",prefix=SERVER_"`
	Postgres     PostgresConfig     `env:",prefix=POSTGRES_"`
	Redis        RedisConfig        `env:",prefix=REDIS_"`
	Token        TokenConfig        `env:",prefix=TOKEN_"`
	DecryptAlert DecryptAlertConfig `env:",prefix=DECRYPT_ALERT_"`
	EBay         EBayConfig         `env:",prefix=EBAY_"`
	Operator     OperatorConfig     `env:",prefix=OPERATOR_"`
	Scheduler    SchedulerConfig    `env:",prefix=SCHEDULER_"`
	Security     SecurityConfig     `env:",prefix="`
	CORS         CORSConfig         `env:",prefix=CORS_"`
	Env          string             `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=60s"`
}

type PostgresConfig struct {
	Host        string `env:"HOST,default=localhost"`
	Port        string `env:"PORT,default=5432"`
	User        string `env:"USER,default=ebay_connector"`
	Password    string `env:"PASSWORD,default=ebay_connector_password"`
	DBName      string `env:"DB,default=ebay_connector_db"`
	SSLMode     string `env:"SSLMODE,default=disable"`
	AutoMigrate bool   `env:"AUTO_MIGRATE,default=true"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// TokenConfig controls the token provider and the at-rest cipher.
type TokenConfig struct {
	EncryptionKey   string   `env:"ENCRYPTION_KEY,required"`
	FreshnessWindow Duration `env:"FRESHNESS_WINDOW,default=10m"`
	LockTTL         Duration `env:"LOCK_TTL,default=30s"`
	LockWait        Duration `env:"LOCK_WAIT,default=20s"`
	ReauthThreshold int      `env:"REAUTH_THRESHOLD,default=3"`
}

type DecryptAlertConfig struct {
	Threshold int      `env:"THRESHOLD,default=3"`
	Window    Duration `env:"WINDOW,default=5m"`
}

// EBayConfig holds the OAuth application credentials for each marketplace environment.
type EBayConfig struct {
	HTTPTimeout Duration           `env:"HTTP_TIMEOUT,default=15s"`
	Scopes      []string           `env:"SCOPES,default=https://api.ebay.com/oauth/api_scope,https://api.ebay.com/oauth/api_scope/sell.inventory,https://api.ebay.com/oauth/api_scope/sell.fulfillment,https://api.ebay.com/oauth/api_scope/sell.finances"`
	Production  EBayEndpointConfig `env:",prefix=PRODUCTION_"`
	Sandbox     EBayEndpointConfig `env:",prefix=SANDBOX_"`
}

type EBayEndpointConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RuName       string `env:"RU_NAME"`
	TokenURL     string `env:"TOKEN_URL"`
	AuthURL      string `env:"AUTH_URL"`
}

// OperatorConfig gates the diagnostic and manual-trigger endpoints.
type OperatorConfig struct {
	JWTSecret    string   `env:"JWT_SECRET,required"`
	TokenExpiry  Duration `env:"TOKEN_EXPIRY,default=1h"`
	Username     string   `env:"USERNAME,default=operator"`
	PasswordHash string   `env:"PASSWORD_HASH,default="`
}

type SchedulerConfig struct {
	Enabled     bool     `env:"ENABLED,default=false"`
	Interval    Duration `env:"INTERVAL,default=15m"`
	Concurrency int      `env:"CONCURRENCY,default=4"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=30"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}

func (c *Config) validate() error {
	if len(c.Token.EncryptionKey) < minSecretLength {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be at least %d characters long", minSecretLength)
	}

	if len(c.Operator.JWTSecret) < minSecretLength {
		return fmt.Errorf("OPERATOR_JWT_SECRET must be at least %d characters long", minSecretLength)
	}

	if c.Token.FreshnessWindow.Duration <= 0 {
		return fmt.Errorf("TOKEN_FRESHNESS_WINDOW must be positive")
	}

	// The lock must outlive one upstream call, otherwise a second process can start a refresh
	// while the first is still waiting on eBay.
	if c.Token.LockTTL.Duration <= c.EBay.HTTPTimeout.Duration {
		return fmt.Errorf("TOKEN_LOCK_TTL (%s) must be greater than EBAY_HTTP_TIMEOUT (%s)",
			c.Token.LockTTL, c.EBay.HTTPTimeout)
	}

	// A follower waits up to one lock wait plus one upstream call before its response is written.
	if c.Server.WriteTimeout.Duration <= c.Token.LockWait.Duration+c.EBay.HTTPTimeout.Duration {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must be greater than TOKEN_LOCK_WAIT (%s) plus EBAY_HTTP_TIMEOUT (%s)",
			c.Server.WriteTimeout, c.Token.LockWait, c.EBay.HTTPTimeout)
	}

	if c.Scheduler.Interval.Duration <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}

	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("SCHEDULER_CONCURRENCY must be at least 1")
	}

	return nil
}
