// Package config loads process configuration from the environment.
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

// Config is the full process configuration shared by the binaries.
type Config struct {
	AppEnv          string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	GzipEnabled     bool
	MetricsEnabled  bool

	Log      LogConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Sales    SalesConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
}

type LogConfig struct {
	Level       string
	Development bool
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// SalesConfig drives invoice totals and numbering.
type SalesConfig struct {
	TaxRate        decimal.Decimal
	InvoicePrefix  string
	NumberAttempts int
	Location       *time.Location
}

// RedisConfig is optional. An empty URL selects the in-process dashboard cache.
type RedisConfig struct {
	URL          string
	DashboardTTL time.Duration
}

// KafkaConfig is optional. Without brokers the worker only logs relayed events.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		AppEnv:          appEnv,
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		GzipEnabled:     getEnvBool("GZIP_ENABLED", true),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvBool("LOG_DEVELOPMENT", appEnv == "development"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    getEnvDuration("JWT_TTL", 12*time.Hour),
		},
		Sales: SalesConfig{
			TaxRate:        getEnvDecimal("TAX_RATE", decimal.NewFromInt(14)),
			InvoicePrefix:  getEnv("INVOICE_PREFIX", "FAC"),
			NumberAttempts: getEnvInt("INVOICE_NUMBER_RETRIES", 3),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			DashboardTTL: getEnvDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "pharmacy.events"),
		},
		Outbox: OutboxConfig{
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
		},
	}

	tz := getEnv("TIMEZONE", "Africa/Nouakchott")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", tz, err)
	}
	cfg.Sales.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if c.Sales.TaxRate.IsNegative() || c.Sales.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("TAX_RATE must be between 0 and 100, got %s", c.Sales.TaxRate)
	}
	if c.Sales.NumberAttempts < 1 {
		return fmt.Errorf("INVOICE_NUMBER_RETRIES must be at least 1")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
