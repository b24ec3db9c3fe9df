// Package config loads the service configuration.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SALES_DATABASE_DSN.
const EnvPrefix = "SALES"

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Legacy   LegacyConfig
	Redis    RedisConfig
	Stamping StampingConfig
	Audit    AuditConfig
	Log      LogConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name string
	Env  string
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	StatementTimeout time.Duration
	LockTimeout      time.Duration
}

// LegacyConfig overrides the catalog table names of the legacy schema.
type LegacyConfig struct {
	ClientsTable  string
	VendorsTable  string
	SitesTable    string
	ProductsTable string
}

// RedisConfig holds the consolidation lock backend. Locking is skipped when disabled.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// StampingConfig holds tax-authority settings.
type StampingConfig struct {
	Timeout      time.Duration
	IssuerID     string
	TechnicalKey string
	// SandboxLatency simulates the authority round trip
	SandboxLatency time.Duration
}

// AuditConfig holds activity log settings.
type AuditConfig struct {
	LogCapacity       int
	CompressThreshold int
	Persist           bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// Load reads configuration.
// Priority (highest to lowest):
//  1. Environment variables with SALES_ prefix (e.g. SALES_DATABASE_DSN)
//  2. config.yaml in the working directory or /etc/salescycle
//  3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/salescycle")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

// LoadFile reads configuration from an explicit file plus environment overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Port:               v.GetString("http.port"),
			ReadTimeout:        v.GetDuration("http.read_timeout"),
			WriteTimeout:       v.GetDuration("http.write_timeout"),
			IdleTimeout:        v.GetDuration("http.idle_timeout"),
			IdempotencyEnabled: v.GetBool("http.idempotency_enabled"),
			IdempotencyTTL:     v.GetDuration("http.idempotency_ttl"),
		},
		Database: DatabaseConfig{
			DSN:              v.GetString("database.dsn"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			LockTimeout:      v.GetDuration("database.lock_timeout"),
		},
		Legacy: LegacyConfig{
			ClientsTable:  v.GetString("legacy.clients_table"),
			VendorsTable:  v.GetString("legacy.vendors_table"),
			SitesTable:    v.GetString("legacy.sites_table"),
			ProductsTable: v.GetString("legacy.products_table"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Stamping: StampingConfig{
			Timeout:        v.GetDuration("stamping.timeout"),
			IssuerID:       v.GetString("stamping.issuer_id"),
			TechnicalKey:   v.GetString("stamping.technical_key"),
			SandboxLatency: v.GetDuration("stamping.sandbox_latency"),
		},
		Audit: AuditConfig{
			LogCapacity:       v.GetInt("audit.log_capacity"),
			CompressThreshold: v.GetInt("audit.compress_threshold"),
			Persist:           v.GetBool("audit.persist"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "salescycle"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// stamping can take up to its own timeout
		cfg.HTTP.WriteTimeout = 45 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdempotencyTTL == 0 {
		cfg.HTTP.IdempotencyTTL = 10 * time.Minute
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 25
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Database.StatementTimeout == 0 {
		cfg.Database.StatementTimeout = 30 * time.Second
	}
	if cfg.Database.LockTimeout == 0 {
		cfg.Database.LockTimeout = 5 * time.Second
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Stamping.Timeout == 0 {
		cfg.Stamping.Timeout = 30 * time.Second
	}
	if cfg.Audit.LogCapacity == 0 {
		cfg.Audit.LogCapacity = 1000
	}
	if cfg.Audit.CompressThreshold == 0 {
		cfg.Audit.CompressThreshold = 4 * 1024
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required (SALES_DATABASE_DSN)")
	}
	if port, err := strconv.Atoi(c.HTTP.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("http.port must be a valid port, got %q", c.HTTP.Port)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Stamping.Timeout < 0 {
		return errors.New("stamping.timeout must be positive")
	}
	if c.Audit.LogCapacity < 0 {
		return errors.New("audit.log_capacity must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}
