package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service. It is built once at
// process start and passed explicitly to the components that need it.
type Config struct {
	Host     string
	Port     string
	Env      string
	LogLevel string

	// DatabaseURL selects the store backend: postgres:// URLs use pgx,
	// anything else is a SQLite path.
	DatabaseURL string

	// WebhookSecret is the shared secret for HMAC signature checks.
	// Readiness fails while it is empty.
	WebhookSecret string

	// WebhookRateLimit caps POST /webhook requests per second.
	// Zero disables the limiter.
	WebhookRateLimit float64
}

// Load reads configuration from environment variables, with a .env file
// as development fallback.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Host:             getEnv("HOST", "0.0.0.0"),
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      getEnv("DATABASE_URL", "./data/messages.db"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		WebhookRateLimit: getEnvFloat("WEBHOOK_RATE_LIMIT", 0),
	}
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
