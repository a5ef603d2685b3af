package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/poke-community/backend/internal/apperrors"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig

	// SiteURL is the public base URL used in emails and unsubscribe links.
	SiteURL string
	// ResendAPIKey enables email dispatch; when empty the dispatcher is a
	// no-op rather than an error.
	ResendAPIKey string
	// UnsubscribeSecret signs one-click unsubscribe tokens.
	UnsubscribeSecret string
	// JWTSecret signs session tokens.
	JWTSecret string
}

// Load reads configuration from the environment, applying defaults. A
// missing required secret is a ConfigurationError, fatal at startup.
func Load() (*Config, error) {
	// Silent failure if no .env exists, which is fine
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		SiteURL:           strings.TrimRight(getEnv("SITE_URL", "https://poke.community"), "/"),
		ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
		UnsubscribeSecret: os.Getenv("UNSUBSCRIBE_SECRET"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}

	if cfg.Database.User == "" {
		return nil, apperrors.NewConfigurationError("DB_USER is required")
	}
	if cfg.Database.Name == "" {
		return nil, apperrors.NewConfigurationError("DB_NAME is required")
	}
	if cfg.UnsubscribeSecret == "" {
		return nil, apperrors.NewConfigurationError("UNSUBSCRIBE_SECRET is required")
	}
	if cfg.JWTSecret == "" {
		return nil, apperrors.NewConfigurationError("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
