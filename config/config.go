package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration, loaded from environment
// variables with sensible defaults for a local deployment.
type Config struct {
	Port    int
	DataDir string

	// CatalogBaseURL is the upstream catalog service host.
	CatalogBaseURL string
	// ImageOriginURL is the host raw image paths are rebased onto.
	ImageOriginURL string
	// PlaceholderPath is returned by the image URL builder for absent input.
	PlaceholderPath string

	// DatabaseURL enables the remote persistence gateway when set.
	DatabaseURL string

	// SessionSecret signs session tokens. Generated at startup when empty.
	SessionSecret string
	// SessionDurationHours is the session token lifetime.
	SessionDurationHours int

	// CacheTTLHours is the TTL for the taxonomy file cache.
	CacheTTLHours int

	// LogFile enables rotated file logging when set.
	LogFile string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnvInt("PORT", 8080),
		DataDir:              getEnv("DATA_DIR", "./data"),
		CatalogBaseURL:       getEnv("CATALOG_BASE_URL", "https://phimapi.com"),
		ImageOriginURL:       getEnv("IMAGE_ORIGIN_URL", "https://phimimg.com"),
		PlaceholderPath:      getEnv("IMAGE_PLACEHOLDER", "/placeholder.jpg"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SessionSecret:        os.Getenv("SESSION_SECRET"),
		SessionDurationHours: getEnvInt("SESSION_DURATION_HOURS", 24*30),
		CacheTTLHours:        getEnvInt("CACHE_TTL_HOURS", 24),
		LogFile:              os.Getenv("LOG_FILE"),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if !strings.HasPrefix(cfg.CatalogBaseURL, "http") {
		return nil, fmt.Errorf("catalog base URL must be http(s): %q", cfg.CatalogBaseURL)
	}
	cfg.CatalogBaseURL = strings.TrimRight(cfg.CatalogBaseURL, "/")
	cfg.ImageOriginURL = strings.TrimRight(cfg.ImageOriginURL, "/")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
