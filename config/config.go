package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Fees       FeesConfig       `mapstructure:"fees"`
	Checkout   CheckoutConfig   `mapstructure:"checkout"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver   string `mapstructure:"driver"`    // postgres, memory
	SeedDemo bool   `mapstructure:"seed_demo"` // load the demo property catalog on start
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// FeesConfig holds the platform pricing rates, each within [0,1].
type FeesConfig struct {
	CommissionRate  float64 `mapstructure:"commission_rate"`
	DiasporaFeeRate float64 `mapstructure:"diaspora_fee_rate"`
}

// CheckoutConfig bounds the lifetime of checkout sessions and confirmations.
type CheckoutConfig struct {
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// SettlementConfig selects the payment provider.
type SettlementConfig struct {
	Provider        string        `mapstructure:"provider"` // simulated, stripe
	Delay           time.Duration `mapstructure:"delay"`
	StripeSecretKey string        `mapstructure:"stripe_secret_key"`
	// PaymentMethod id charged on confirm, e.g. a saved card "pm_...".
	StripePaymentMethod string `mapstructure:"stripe_payment_method"`
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Fees.CommissionRate < 0 || c.Fees.CommissionRate > 1 {
		return fmt.Errorf("fees.commission_rate must be within [0,1], got %v", c.Fees.CommissionRate)
	}
	if c.Fees.DiasporaFeeRate < 0 || c.Fees.DiasporaFeeRate > 1 {
		return fmt.Errorf("fees.diaspora_fee_rate must be within [0,1], got %v", c.Fees.DiasporaFeeRate)
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.Settlement.Provider {
	case "simulated":
	case "stripe":
		if c.Settlement.StripeSecretKey == "" {
			return errors.New("settlement.stripe_secret_key is required for the stripe provider")
		}
		if c.Settlement.StripePaymentMethod == "" {
			return errors.New("settlement.stripe_payment_method is required for the stripe provider")
		}
	default:
		return fmt.Errorf("settlement.provider must be simulated or stripe, got %q", c.Settlement.Provider)
	}
	if c.Checkout.ConfirmTimeout <= 0 {
		return errors.New("checkout.confirm_timeout must be positive")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	return nil
}

// LoadEnv loads variables from .env files into the process environment.
// Variables already set are kept. Missing files are not an error.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: ZMB_.
// Nested keys use underscore: ZMB_DATABASE_HOST, ZMB_FEES_COMMISSION_RATE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.seed_demo", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "zimba")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "zimba-booking")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("fees.commission_rate", 0.05)
	v.SetDefault("fees.diaspora_fee_rate", 0.02)
	v.SetDefault("checkout.session_ttl", "30m")
	v.SetDefault("checkout.confirm_timeout", "30s")
	v.SetDefault("checkout.idempotency_ttl", "24h")
	v.SetDefault("settlement.provider", "simulated")
	v.SetDefault("settlement.delay", "2s")
	v.SetDefault("settlement.stripe_secret_key", "")
	v.SetDefault("settlement.stripe_payment_method", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// ZMB_DATABASE_HOST -> database.host
	v.SetEnvPrefix("ZMB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
