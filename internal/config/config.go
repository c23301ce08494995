package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvStaging    = "staging"
	EnvProduction = "production"

	BackendFile   = "file"
	BackendMemory = "memory"

	stagingHashingSecret = "thisIsASecret"
)

type Config struct {
	Env         string
	ServiceName string
	LogFile     string
	HTTP        HTTPConfig
	Store       StoreConfig
	Auth        AuthConfig
	Stripe      StripeConfig
	SendGrid    SendGridConfig
	// CatalogSeedFile is a JSON array of items upserted at startup.
	CatalogSeedFile string
}

type HTTPConfig struct {
	Addr string
}

type StoreConfig struct {
	Backend string
	DataDir string
}

type AuthConfig struct {
	HashingSecret string
	TokenTTL      time.Duration
}

type StripeConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

type SendGridConfig struct {
	APIKey  string
	Host    string
	From    string
	Timeout time.Duration
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := strings.ToLower(getEnv("APP_ENV", EnvStaging))
	defaultAddr, defaultSecret := ":3002", stagingHashingSecret
	if env == EnvProduction {
		defaultAddr, defaultSecret = ":5000", ""
	}

	tokenTTL, err := getDuration("TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	paymentTimeout, err := getDuration("PAYMENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := getDuration("NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:         env,
		ServiceName: getEnv("SERVICE_NAME", "minishop"),
		LogFile:     getEnv("LOG_FILE", ""),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", defaultAddr),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
			DataDir: getEnv("DATA_DIR", ".data"),
		},
		Auth: AuthConfig{
			HashingSecret: getEnv("HASHING_SECRET", defaultSecret),
			TokenTTL:      tokenTTL,
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET", ""),
			BaseURL:   getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
			Timeout:   paymentTimeout,
		},
		SendGrid: SendGridConfig{
			APIKey:  getEnv("SENDGRID_API_KEY", ""),
			Host:    getEnv("SENDGRID_HOST", "https://api.sendgrid.com"),
			From:    getEnv("MAIL_FROM", "orders@minishop.local"),
			Timeout: notifyTimeout,
		},
		CatalogSeedFile: getEnv("CATALOG_SEED_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Env != EnvStaging && c.Env != EnvProduction {
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvStaging, EnvProduction, c.Env)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the file backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendFile, BackendMemory, c.Store.Backend)
	}
	if c.Auth.HashingSecret == "" {
		return fmt.Errorf("HASHING_SECRET is required")
	}
	if c.Env == EnvProduction && c.Auth.HashingSecret == stagingHashingSecret {
		return fmt.Errorf("HASHING_SECRET must not use the staging default in production")
	}
	if c.Auth.TokenTTL <= 0 || c.Stripe.Timeout <= 0 || c.SendGrid.Timeout <= 0 {
		return fmt.Errorf("TOKEN_TTL, PAYMENT_TIMEOUT and NOTIFY_TIMEOUT must be positive")
	}
	if c.Env == EnvProduction && (c.Stripe.SecretKey == "" || c.SendGrid.APIKey == "") {
		return fmt.Errorf("STRIPE_SECRET and SENDGRID_API_KEY are required in production")
	}
	return nil
}

func (c *Config) Production() bool { return c.Env == EnvProduction }

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
