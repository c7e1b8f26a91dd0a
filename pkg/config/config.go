package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Crypto    CryptoConfig
	Scheduler SchedulerConfig
}

type DatabaseConfig struct {
	Path         string
	MaxOpenConns int
}

type CryptoConfig struct {
	// Key is the AES key used to encrypt settings values and GitHub
	// tokens at rest. Must be 16, 24, or 32 bytes.
	Key string
}

type SchedulerConfig struct {
	GithubSyncSpec   string
	LdapSyncSpec     string
	TransitionSpec   string
	DisableScheduler bool
}

var AppConfig *Config

// Load loads configuration from .env file and environment variables
func Load() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Database: DatabaseConfig{
			Path:         getEnv("DB_PATH", "./ghwarden.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		},
		Crypto: CryptoConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Scheduler: SchedulerConfig{
			GithubSyncSpec:   getEnv("GITHUB_SYNC_SPEC", "@every 1h"),
			LdapSyncSpec:     getEnv("LDAP_SYNC_SPEC", "@every 1h"),
			TransitionSpec:   getEnv("TRANSITION_SPEC", "@every 6h"),
			DisableScheduler: getEnvAsBool("DISABLE_SCHEDULER", false),
		},
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
