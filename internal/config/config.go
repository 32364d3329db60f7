// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server
	Cache
	Retry
	Gateways
	FeeSchedulePath string
	APIKey          string
	Debug           bool
}

type Server struct {
	Port string
}

type Cache struct {
	Host    string
	Port    string
	Enabled bool
}

// Retry controls the payment retry loop.
type Retry struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type GatewayConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
}

type Gateways struct {
	Stripe GatewayConfig
	PayPal GatewayConfig
	Square GatewayConfig
}

func NewConfig() *Config {
	return &Config{
		Server: Server{
			Port: getEnvString("SERVER_PORT", "8000"),
		},
		Cache: Cache{
			Host:    getEnvString("CACHE_HOST", "localhost"),
			Port:    getEnvString("CACHE_PORT", "6379"),
			Enabled: getEnvBool("CACHE_ENABLED", false),
		},
		Retry: Retry{
			MaxAttempts:    getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvDuration("RETRY_INITIAL_BACKOFF", 2*time.Second),
			MaxBackoff:     getEnvDuration("RETRY_MAX_BACKOFF", 10*time.Second),
		},
		Gateways: Gateways{
			Stripe: GatewayConfig{
				BaseURL:       getEnvString("STRIPE_BASE_URL", "https://api.stripe.com"),
				APIKey:        getEnvString("STRIPE_API_KEY", ""),
				WebhookSecret: getEnvString("STRIPE_WEBHOOK_SECRET", ""),
			},
			PayPal: GatewayConfig{
				BaseURL:       getEnvString("PAYPAL_BASE_URL", "https://api-m.paypal.com"),
				APIKey:        getEnvString("PAYPAL_API_KEY", ""),
				WebhookSecret: getEnvString("PAYPAL_WEBHOOK_SECRET", ""),
			},
			Square: GatewayConfig{
				BaseURL:       getEnvString("SQUARE_BASE_URL", "https://connect.squareup.com"),
				APIKey:        getEnvString("SQUARE_API_KEY", ""),
				WebhookSecret: getEnvString("SQUARE_WEBHOOK_SECRET", ""),
			},
		},
		FeeSchedulePath: getEnvString("FEE_SCHEDULE_PATH", ""),
		APIKey:          getEnvString("API_KEY", "demo-api-key"),
		Debug:           getEnvBool("DEBUG", false),
	}
}

func getEnvString(key string, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
