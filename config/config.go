package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Events    EventsConfig    `mapstructure:"events"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
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
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LedgerConfig tunes the balance reconciler and its background jobs.
type LedgerConfig struct {
	Store         string        `mapstructure:"store"`        // postgres, memory
	LockTimeout   time.Duration `mapstructure:"lock_timeout"` // max wait for a wallet lock
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // 0 disables the drift sweeper
	SweepLockTTL  time.Duration `mapstructure:"sweep_lock_ttl"`
}

type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"` // empty disables publishing
	Exchange string `mapstructure:"exchange"`
}

// RateLimitConfig caps requests per client IP. Enforced only when Redis is enabled.
type RateLimitConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	WriteLimit int64         `mapstructure:"write_limit"`
	Window     time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLG_ (Wallet LedGer).
// Nested keys use underscore: WLG_DATABASE_HOST, WLG_LEDGER_STORE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ledger.store", "postgres")
	v.SetDefault("ledger.lock_timeout", "5s")
	v.SetDefault("ledger.max_attempts", 3)
	v.SetDefault("ledger.retry_backoff", "50ms")
	v.SetDefault("ledger.cache_ttl", "30s")
	v.SetDefault("ledger.sweep_interval", "0s")
	v.SetDefault("ledger.sweep_lock_ttl", "1m")
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "ledger.events")
	v.SetDefault("rate_limit.read_limit", 300)
	v.SetDefault("rate_limit.write_limit", 120)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WLG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WLG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Ledger.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid ledger.store %q: want postgres or memory", c.Ledger.Store)
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger.max_attempts must be at least 1, got %d", c.Ledger.MaxAttempts)
	}
	if c.RateLimit.ReadLimit < 1 || c.RateLimit.WriteLimit < 1 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit limits and window must be positive")
	}
	return nil
}
