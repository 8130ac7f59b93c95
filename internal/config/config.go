package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds application configuration, loaded from the environment.
type Config struct {
	Port        string
	CORSOrigins []string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSchema   string

	GatewayBaseURL       string
	GatewayAPIKey        string
	GatewayWebhookSecret string
	GatewayTimeout       time.Duration

	// CommissionRate is the platform cut frozen into each transaction at
	// creation time.
	CommissionRate float64

	ReconcileInterval time.Duration
	StuckAfter        time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "coupon_escrow"),
		DBSchema:   getEnv("DB_SCHEMA", "public"),

		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", ""),
		GatewayAPIKey:        getEnv("GATEWAY_API_KEY", ""),
		GatewayWebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
		GatewayTimeout:       getDuration("GATEWAY_TIMEOUT", 10*time.Second),

		CommissionRate: getFloat("COMMISSION_RATE", 0.10),

		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 30*time.Second),
		StuckAfter:        getDuration("STUCK_AFTER", 1*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
