package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Upstream GTO API settings
	APIBaseURL     string
	APIKey         string
	RequestTimeout time.Duration

	// Access gate settings. The password is a capability flag for the
	// dashboard, not a security boundary.
	DashboardPasswordHash string
	JWTSecret             string
	AccessTokenExpiry     time.Duration

	// Reporting settings
	TargetCurrency      string
	AnchorCurrency      string
	SupportedCurrencies []string

	// Cache settings
	ReferenceCacheTTL time.Duration
	CacheMaxEntries   int
	CacheNamespace    string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from a subdir)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	// --- Secrets ---
	apiKey := getRequiredEnv("GTO_API_KEY")
	passwordHash := getRequiredEnv("DASHBOARD_PASSWORD_HASH")
	jwtSecret := getRequiredEnv("JWT_SECRET")

	// --- Populate the Global Config Struct ---
	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./gto_dashboard.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Upstream API
		APIBaseURL:     getEnv("GTO_API_BASE_URL", "https://api.gto.ua"),
		APIKey:         apiKey,
		RequestTimeout: getEnvAsDuration("GTO_REQUEST_TIMEOUT", 20*time.Second),

		// Access gate
		DashboardPasswordHash: passwordHash,
		JWTSecret:             jwtSecret,
		AccessTokenExpiry:     getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 12*time.Hour),

		// Reporting
		TargetCurrency:      strings.ToUpper(getEnv("TARGET_CURRENCY", "EUR")),
		AnchorCurrency:      strings.ToUpper(getEnv("ANCHOR_CURRENCY", "UAH")),
		SupportedCurrencies: getCurrencyList("SUPPORTED_CURRENCIES", "UAH,USD,EUR,KZT"),

		// Cache
		ReferenceCacheTTL: getEnvAsDuration("REFERENCE_CACHE_TTL", 3*time.Hour),
		CacheMaxEntries:   getEnvAsInt("CACHE_MAX_ENTRIES", 512),
		CacheNamespace:    getEnv("CACHE_NAMESPACE", "gto_cache"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, APIBase=%s, Target=%s, Anchor=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.APIBaseURL, Cfg.TargetCurrency, Cfg.AnchorCurrency)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start.", key)
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback)
	return fallback
}

// getCurrencyList parses a comma-separated list of currency codes, uppercased.
func getCurrencyList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		code := strings.ToUpper(strings.TrimSpace(p))
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
