package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	Env  string
	Port string

	StoreBackend string
	MongoURI     string
	MongoDB      string
	DBRetries    int

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	OrderTopic   string

	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string

	RecaptchaSecret   string
	RecaptchaMinScore float64

	OrderTxTimeout time.Duration
	StockCacheTTL  time.Duration

	RateLimit      float64
	RateLimitBurst int
}

// Load reads the configuration from the environment, falling back to
// defaults suitable for local development.
func Load() (*Config, error) {
	cfg := &Config{
		Env:               getEnv("ENV", "development"),
		Port:              getEnv("PORT", "8082"),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", BackendMongo)),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDB:           getEnv("MONGO_DB", "storefront"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:      getKafkaBrokerURLs(),
		OrderTopic:        getEnv("ORDER_TOPIC", "order-topic"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		RecaptchaSecret:   os.Getenv("RECAPTCHA_SECRET"),
	}

	var err error
	if cfg.DBRetries, err = getEnvInt("DB_RETRIES", 10); err != nil {
		return nil, err
	}
	if cfg.RecaptchaMinScore, err = getEnvFloat("RECAPTCHA_MIN_SCORE", 0.5); err != nil {
		return nil, err
	}
	if cfg.OrderTxTimeout, err = getEnvDuration("ORDER_TX_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StockCacheTTL, err = getEnvDuration("STOCK_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = getEnvFloat("RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMongo, BackendMemory, c.StoreBackend)
	}
	if c.StoreBackend == BackendMongo && c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required for the %s backend", BackendMongo)
	}
	if c.OrderTxTimeout <= 0 {
		return fmt.Errorf("ORDER_TX_TIMEOUT must be positive")
	}
	if c.JWTSecret == "" && c.Env == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
