package config

import (
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/credit-gateway/pkg/logger"
	"github.com/nimasrn/credit-gateway/pkg/pg"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"

var config *Config

// Config holds every configuration value of the service. Nothing else should
// read the environment directly.
type Config struct {
	AppEnv              string `env:"APP_ENV"`
	AppName             string `env:"APP_NAME"`
	AppDebug            bool   `env:"APP_DEBUG"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`
	AppBaseUrl          string `env:"APP_BASE_URL"`

	HttpListenAddr            string        `env:"HTTP_LISTEN_ADDR"`
	HttpBaseRequestUrl        string        `env:"HTTP_BASE_REQUEST_URI"`
	HttpRequestTimeout        time.Duration `env:"HTTP_REQUEST_TIMEOUT"`
	HttpServerReadBufferSize  int           `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int           `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`
	PostgresSSLMode       string `env:"POSTGRES_SSLMODE"`
	PostgresMaxOpenConns  int    `env:"POSTGRES_MAX_OPEN_CONNS"`
	MigrationsDir         string `env:"MIGRATIONS_DIR"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel string `env:"LOG_LEVEL"`

	RazorpayKeyID                  string        `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret              string        `env:"RAZORPAY_KEY_SECRET"`
	RazorpayBaseUrl                string        `env:"RAZORPAY_BASE_URL"`
	RazorpayTimeout                time.Duration `env:"RAZORPAY_TIMEOUT"`
	GatewayCircuitBreakerThreshold int           `env:"GATEWAY_CB_THRESHOLD"`
	GatewayCircuitBreakerTimeout   time.Duration `env:"GATEWAY_CB_TIMEOUT"`

	PaymentCurrency    string `env:"PAYMENT_CURRENCY"`
	LedgerInitialGrant int64  `env:"LEDGER_INITIAL_GRANT"`
	LedgerHistoryLimit int    `env:"LEDGER_HISTORY_LIMIT"`
	CreditPackagesFile string `env:"CREDIT_PACKAGES_FILE"`

	AuthJwtSecret string `env:"AUTH_JWT_SECRET"`

	SettlementLockTTL time.Duration `env:"SETTLEMENT_LOCK_TTL"`

	SandboxListenAddr string `env:"SANDBOX_LISTEN_ADDR"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return err
	}

	config = c
	return nil
}

// LedgerInitialGrant is only defaulted when unset, so an explicit 0 needs
// LEDGER_INITIAL_GRANT=0 and is honoured.
func (c *Config) applyDefaults() {
	setString(&c.AppEnv, "dev")
	setString(&c.AppName, "credit_gateway")
	setString(&c.HttpListenAddr, ":8080")
	setString(&c.HttpBaseRequestUrl, "/api/v1")
	setString(&c.AppDebugMetricsURI, "/metrics")
	setString(&c.PromNamespace, "credit_gateway")
	setString(&c.RedisUniversalKeyPrefix, "credit_gateway")
	setString(&c.PostgresSSLMode, "disable")
	setString(&c.MigrationsDir, "migrations")
	setString(&c.RazorpayBaseUrl, "https://api.razorpay.com")
	setString(&c.PaymentCurrency, "INR")
	setString(&c.SandboxListenAddr, ":9090")

	setDuration(&c.HttpRequestTimeout, 10*time.Second)
	setDuration(&c.RazorpayTimeout, 10*time.Second)
	setDuration(&c.GatewayCircuitBreakerTimeout, 30*time.Second)
	setDuration(&c.SettlementLockTTL, 30*time.Second)

	if c.GatewayCircuitBreakerThreshold <= 0 {
		c.GatewayCircuitBreakerThreshold = 5
	}
	if c.LedgerHistoryLimit <= 0 {
		c.LedgerHistoryLimit = 50
	}
	if _, ok := os.LookupEnv("LEDGER_INITIAL_GRANT"); !ok {
		c.LedgerInitialGrant = 20
	}
}

func (c *Config) Validate() error {
	if c.LedgerInitialGrant < 0 {
		return errors.Errorf("LEDGER_INITIAL_GRANT must not be negative, got %d", c.LedgerInitialGrant)
	}
	if c.LedgerHistoryLimit > 1000 {
		return errors.Errorf("LEDGER_HISTORY_LIMIT must be at most 1000, got %d", c.LedgerHistoryLimit)
	}
	if len(c.PaymentCurrency) != 3 {
		return errors.Errorf("PAYMENT_CURRENCY must be an ISO 4217 code, got %q", c.PaymentCurrency)
	}
	return nil
}

// RedisEnabled reports whether the settlement lease should be used.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		User:         c.PostgresReadUser,
		Host:         c.PostgresReadHost,
		Port:         c.PostgresReadPort,
		Password:     c.PostgresReadPassword,
		Database:     c.PostgresReadDatabase,
		SSLMode:      c.PostgresSSLMode,
		MaxOpenConns: c.PostgresMaxOpenConns,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		User:         c.PostgresWriteUser,
		Host:         c.PostgresWriteHost,
		Port:         c.PostgresWritePort,
		Password:     c.PostgresWritePassword,
		Database:     c.PostgresWriteDatabase,
		SSLMode:      c.PostgresSSLMode,
		MaxOpenConns: c.PostgresMaxOpenConns,
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
