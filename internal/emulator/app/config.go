package app

import (
	"os"
	"strconv"
	"time"

	httpapi "github.com/aussiebroadwan/firekit/internal/emulator/http"
	"github.com/aussiebroadwan/firekit/internal/emulator/service"
	"github.com/aussiebroadwan/firekit/pkg/httpx"
)

type Config struct {
	ProjectID       string // Project custom tokens sign in to (default: demo-project)
	AdminToken      string // Optional: bearer token required by the admin endpoints, empty accepts any
	TrustedKeysFile string // Optional: kid to certificate/JWKS document that custom tokens must be signed with

	DatabaseFile string        // Path to SQLite database file (default: ./emulator.db)
	RSABits      int           // RSA key size (default: 2048)
	NumKeys      int           // Signing keys per key set (default: 2, min: 1, max: 10)
	IDTokenTTL   time.Duration // Lifetime of minted ID tokens (default: 1h)
	KeyMaxAge    time.Duration // Cache-Control max-age on the key documents (default: 1h)

	SignInLimit httpx.RateLimitConfig // RATELIMIT_SIGNIN_*
	AdminLimit  httpx.RateLimitConfig // RATELIMIT_ADMIN_*

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 9099)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		ProjectID:       getEnvOrDefault("EMULATOR_PROJECT_ID", "demo-project"),
		AdminToken:      os.Getenv("EMULATOR_ADMIN_TOKEN"),
		TrustedKeysFile: os.Getenv("EMULATOR_TRUSTED_KEYS_FILE"),
		DatabaseFile:    getEnvOrDefault("EMULATOR_DATABASE_FILE", "emulator.db"),
		RSABits:         getEnvIntOrDefault("EMULATOR_RSA_BITS", 2048),
		NumKeys:         getEnvIntOrDefault("EMULATOR_NUM_KEYS", 2),
		IDTokenTTL:      getEnvDurationOrDefault("EMULATOR_ID_TOKEN_TTL", service.DefaultIDTokenTTL),
		KeyMaxAge:       getEnvDurationOrDefault("EMULATOR_KEY_MAX_AGE", httpapi.DefaultKeyMaxAge),

		SignInLimit: httpx.RateLimitFromEnv("SIGNIN", httpapi.DefaultSignInLimit),
		AdminLimit:  httpx.RateLimitFromEnv("ADMIN", httpapi.DefaultAdminLimit),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 9099),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	// Token lifetimes below a second would be rounded away in exp
	if cfg.IDTokenTTL < time.Second {
		cfg.IDTokenTTL = service.DefaultIDTokenTTL
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
