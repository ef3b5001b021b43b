package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store drivers accepted by STORE_DRIVER
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds the runtime settings of the auction server.
type Config struct {
	HTTPAddr    string
	StoreDriver string
	LogLevel    string
	SeedDemo    bool

	DB DBConfig

	RedisAddr    string
	RedisLockTTL time.Duration

	MinBidIncrement     decimal.Decimal
	HistoryPollInterval time.Duration
	ExpiryCheckInterval time.Duration
}

// DBConfig contains the postgres connection settings
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection url used by pgx and golang-migrate
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Defaults returns the development configuration.
func Defaults() Config {
	return Config{
		HTTPAddr:    ":9000",
		StoreDriver: StoreMemory,
		LogLevel:    "info",
		SeedDemo:    true,
		DB: DBConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "quickbid",
			SSLMode: "disable",
		},
		RedisLockTTL:        5 * time.Second,
		MinBidIncrement:     decimal.NewFromInt(25),
		HistoryPollInterval: 10 * time.Second,
		ExpiryCheckInterval: time.Second,
	}
}

// Load reads an optional .env file and overlays the environment on top of Defaults.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv overlays the variables returned by lookup on top of Defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	var err error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" || err != nil {
			return
		}
		d, perr := time.ParseDuration(v)
		if perr != nil || d <= 0 {
			err = fmt.Errorf("config: %s must be a positive duration, got %q", key, v)
			return
		}
		*dst = d
	}

	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("STORE_DRIVER", &cfg.StoreDriver)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("DB_HOST", &cfg.DB.Host)
	str("DB_PORT", &cfg.DB.Port)
	str("DB_USER", &cfg.DB.User)
	str("DB_PASSWORD", &cfg.DB.Password)
	str("DB_NAME", &cfg.DB.Name)
	str("DB_SSLMODE", &cfg.DB.SSLMode)
	str("REDIS_ADDR", &cfg.RedisAddr)
	dur("REDIS_LOCK_TTL", &cfg.RedisLockTTL)
	dur("HISTORY_POLL_INTERVAL", &cfg.HistoryPollInterval)
	dur("EXPIRY_CHECK_INTERVAL", &cfg.ExpiryCheckInterval)
	if err != nil {
		return Config{}, err
	}

	if v, ok := lookup("SEED_DEMO"); ok && v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return Config{}, fmt.Errorf("config: SEED_DEMO must be a boolean, got %q", v)
		}
		cfg.SeedDemo = b
	}

	if v, ok := lookup("MIN_BID_INCREMENT"); ok && v != "" {
		inc, perr := decimal.NewFromString(v)
		if perr != nil || inc.IsNegative() || !inc.Equal(inc.Round(2)) {
			return Config{}, fmt.Errorf("config: MIN_BID_INCREMENT must be a non-negative amount in whole cents, got %q", v)
		}
		cfg.MinBidIncrement = inc
	}

	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	if cfg.StoreDriver != StoreMemory && cfg.StoreDriver != StorePostgres {
		return Config{}, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}
