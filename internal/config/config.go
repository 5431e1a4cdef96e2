package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full application configuration, populated from environment
// variables.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Redsys   RedsysConfig
	GIAV     GIAVConfig
	Payments PaymentsConfig
	Job      JobConfig
}

type AppConfig struct {
	Name           string
	Environment    string // development, staging, production
	Port           string
	Version        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry int // minutes
}

// =====================================================
// STRIPE CONFIGURATION
// =====================================================

type StripeConfig struct {
	SecretKey     string // sk_live_... / sk_test_...
	WebhookSecret string // whsec_...
	BaseURL       string // overridable for tests
	Country       string // eu_bank_transfer country, default ES
	Timeout       time.Duration
}

// =====================================================
// REDSYS CONFIGURATION
// =====================================================

type RedsysConfig struct {
	PayURL      string // hosted payment page
	FolderParam string // query parameter carrying the expediente id
}

// =====================================================
// GIAV CONFIGURATION
// =====================================================

type GIAVConfig struct {
	Endpoint string // SOAP endpoint; empty disables the integration
	Agency   string
	Username string
	Password string
	Timeout  time.Duration
}

func (c GIAVConfig) IsConfigured() bool {
	return c.Endpoint != ""
}

// PaymentsConfig tunes the payments domain rules.
type PaymentsConfig struct {
	DepositPercent     float64 // percent of pending offered as deposit
	MinAdvanceDays     int     // earliest reservation must be this far away
	ContextCacheTTL    time.Duration
	LedgerWriteTimeout time.Duration
}

type JobConfig struct {
	CollectionSweepCron  string
	CollectionSweepLimit int
}

func (c JobConfig) GetCollectionSweepCron() string {
	if c.CollectionSweepCron == "" {
		return "*/10 * * * *"
	}
	return c.CollectionSweepCron
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:           getEnv("APP_NAME", "Casanova Portal API"),
			Environment:    getEnv("APP_ENV", "development"),
			Port:           getEnv("APP_PORT", "8080"),
			Version:        getEnv("APP_VERSION", "1.0.0"),
			AllowedOrigins: splitEnv("APP_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "casanova"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Issuer:            getEnv("JWT_ISSUER", "casanova-portal"),
			AccessTokenExpiry: getEnvInt("JWT_ACCESS_EXPIRY", 60),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("STRIPE_BASE_URL", ""),
			Country:       getEnv("STRIPE_BANK_TRANSFER_COUNTRY", "ES"),
			Timeout:       getEnvDuration("STRIPE_TIMEOUT", 20*time.Second),
		},
		Redsys: RedsysConfig{
			PayURL:      getEnv("REDSYS_PAY_URL", ""),
			FolderParam: getEnv("REDSYS_FOLDER_PARAM", "expediente"),
		},
		GIAV: GIAVConfig{
			Endpoint: getEnv("GIAV_ENDPOINT", ""),
			Agency:   getEnv("GIAV_AGENCY", ""),
			Username: getEnv("GIAV_USERNAME", ""),
			Password: getEnv("GIAV_PASSWORD", ""),
			Timeout:  getEnvDuration("GIAV_TIMEOUT", 20*time.Second),
		},
		Payments: PaymentsConfig{
			DepositPercent:     getEnvFloat("PAYMENTS_DEPOSIT_PERCENT", 30),
			MinAdvanceDays:     getEnvInt("PAYMENTS_MIN_ADVANCE_DAYS", 30),
			ContextCacheTTL:    getEnvDuration("PAYMENTS_CONTEXT_CACHE_TTL", 5*time.Minute),
			LedgerWriteTimeout: getEnvDuration("PAYMENTS_LEDGER_WRITE_TIMEOUT", 10*time.Second),
		},
		Job: JobConfig{
			CollectionSweepCron:  getEnv("JOB_COLLECTION_SWEEP_CRON", "*/10 * * * *"),
			CollectionSweepLimit: getEnvInt("JOB_COLLECTION_SWEEP_LIMIT", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.Stripe.SecretKey == "" {
			fmt.Println("WARNING: Stripe secret key not set - bank transfer payments will not work")
		}
		if c.Stripe.WebhookSecret == "" {
			fmt.Println("WARNING: Stripe webhook secret not set - webhooks will be rejected")
		}
		if !c.GIAV.IsConfigured() {
			fmt.Println("WARNING: GIAV endpoint not set - running degraded without the booking ledger")
		}
	}

	if c.Payments.DepositPercent <= 0 || c.Payments.DepositPercent > 100 {
		return fmt.Errorf("PAYMENTS_DEPOSIT_PERCENT must be in (0, 100], got %v", c.Payments.DepositPercent)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
