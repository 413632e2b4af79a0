package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Terminal  TerminalDefaults
}

// DatabaseConfig holds database configuration.
// Driver "sqlite" (default) keeps everything in a local file, which is what
// a standalone terminal wants. Driver "postgres" with Host=localhost and an
// empty password boots an embedded instance; anything else connects out.
type DatabaseConfig struct {
	Driver   string
	Path     string // sqlite file path
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// TerminalDefaults seed the TerminalConfig row on first registration.
type TerminalDefaults struct {
	TerminalID      string
	TenantID        string
	Name            string
	ServerURL       string
	APIKey          string
	APISecret       string
	SyncIntervalSec int
	CardSalt        string
	AdminPassword   string // bcrypt hash preferred; plain accepted for dev
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "./stempel.db"),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "stempelgo"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Terminal: TerminalDefaults{
			TerminalID:      os.Getenv("TERMINAL_ID"),
			TenantID:        os.Getenv("TENANT_ID"),
			Name:            getEnv("TERMINAL_NAME", "Terminal"),
			ServerURL:       os.Getenv("SERVER_URL"),
			APIKey:          os.Getenv("API_KEY"),
			APISecret:       os.Getenv("API_SECRET"),
			SyncIntervalSec: getEnvInt("SYNC_INTERVAL_SEC", 60),
			CardSalt:        getEnv("CARD_SALT", "stempelgo-terminal"),
			AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
