package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Server  ServerConfig
	Storage StorageConfig
	DB      PostgresConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Payment PaymentConfig
	Expiry  ExpiryConfig
}

type AppConfig struct {
	Name     string
	Env      string
	LogLevel string
	LogFile  string
}

type ServerConfig struct {
	Host          string
	Port          int
	OperatorToken string
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	Driver string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type RedisConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
}

const (
	ProviderSandbox  = "sandbox"
	ProviderRazorpay = "razorpay"
)

type PaymentConfig struct {
	Provider    string
	KeyID       string
	KeySecret   string
	BaseURL     string
	Currency    string
	SuccessRate float64
	// AutoCapture lets the sandbox complete gateway checkouts on the buyer's behalf.
	AutoCapture bool
}

type ExpiryConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "minishop-fulfillment"),
			Env:      getEnv("APP_ENV", "local"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", ""),
		},
		Server: ServerConfig{
			Host:          getEnv("HTTP_HOST", "0.0.0.0"),
			Port:          getEnvAsInt("HTTP_PORT", 8080),
			OperatorToken: getEnv("OPERATOR_TOKEN", ""),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
		},
		DB: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "minishop"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:    splitAndTrim(getEnv("KAFKA_BOOTSTRAP_SERVERS", "")),
			OrderTopic: getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		},
		Payment: PaymentConfig{
			Provider:    strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderSandbox)),
			KeyID:       getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:   getEnv("RAZORPAY_KEY_SECRET", "sandbox-secret"),
			BaseURL:     getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
			Currency:    getEnv("PAYMENT_CURRENCY", "INR"),
			SuccessRate: getEnvAsFloat("SANDBOX_SUCCESS_RATE", 1),
			AutoCapture: getEnvAsBool("SANDBOX_AUTO_CAPTURE", false),
		},
		Expiry: ExpiryConfig{
			SweepInterval: getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", 15*time.Second),
			BatchSize:     getEnvAsInt("EXPIRY_BATCH_SIZE", 100),
		},
	}

	return cfg, cfg.validate()
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.DBName,
		p.SSLMode,
	)
}

/* ================= helpers ================= */

func (c *Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("HTTP_PORT is invalid")
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.DB.Host == "" || c.DB.User == "" || c.DB.DBName == "" {
			return fmt.Errorf("database config is incomplete")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not supported", c.Storage.Driver)
	}
	switch c.Payment.Provider {
	case ProviderSandbox:
	case ProviderRazorpay:
		if c.Payment.KeyID == "" || c.Payment.BaseURL == "" {
			return fmt.Errorf("razorpay config is incomplete")
		}
	default:
		return fmt.Errorf("PAYMENT_PROVIDER %q is not supported", c.Payment.Provider)
	}
	if c.Payment.KeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_SECRET is required to verify payment signatures")
	}
	if c.Payment.Currency == "" {
		return fmt.Errorf("PAYMENT_CURRENCY is empty")
	}
	if c.Expiry.SweepInterval <= 0 || c.Expiry.BatchSize <= 0 {
		return fmt.Errorf("expiry sweep config is invalid")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if val := strings.TrimSpace(p); val != "" {
			out = append(out, val)
		}
	}
	return out
}
