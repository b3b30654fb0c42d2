// Package config provides configuration management for the deck tracker application.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Steam     SteamConfig
	ProtonDB  ProtonDBConfig
	ITAD      ITADConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds SQLite database configuration
type DatabaseConfig struct {
	Path           string
	MigrationsPath string
	BusyTimeout    time.Duration
}

// RedisConfig holds the optional response cache configuration.
// Caching is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// SteamConfig holds Steam store API configuration
type SteamConfig struct {
	BaseURL           string
	RequestsPerWindow int
	Window            time.Duration
	Cooldown          time.Duration // sleep after an upstream 429 before retrying
}

// ProtonDBConfig holds ProtonDB API configuration
type ProtonDBConfig struct {
	BaseURL           string
	RequestsPerWindow int
	Window            time.Duration
}

// ITADConfig holds IsThereAnyDeal API configuration
type ITADConfig struct {
	BaseURL           string
	APIKey            string
	Country           string
	RequestsPerWindow int
	Window            time.Duration
	LookupBatchSize   int
	PriceBatchSize    int
}

// SyncConfig holds sync job configuration
type SyncConfig struct {
	GamesCron        string
	RatingsCron      string
	PricesCron       string
	RatingMaxAge     time.Duration // ratings older than this are stale and re-fetched
	HistoryRetention time.Duration // price history past this horizon is pruned
}

// RateLimitConfig holds inbound API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Path:           getEnv("DATABASE_PATH", "deck-tracker.db"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
			BusyTimeout:    getEnvAsDuration("DATABASE_BUSY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("CACHE_TTL", 60*time.Second),
		},
		Steam: SteamConfig{
			BaseURL:           getEnv("STEAM_BASE_URL", "https://store.steampowered.com"),
			RequestsPerWindow: getEnvAsInt("STEAM_REQUESTS_PER_WINDOW", 10),
			Window:            getEnvAsDuration("STEAM_WINDOW", 15*time.Second),
			Cooldown:          getEnvAsDuration("STEAM_COOLDOWN", 60*time.Second),
		},
		ProtonDB: ProtonDBConfig{
			BaseURL:           getEnv("PROTONDB_BASE_URL", "https://www.protondb.com"),
			RequestsPerWindow: getEnvAsInt("PROTONDB_REQUESTS_PER_WINDOW", 30),
			Window:            getEnvAsDuration("PROTONDB_WINDOW", 10*time.Second),
		},
		ITAD: ITADConfig{
			BaseURL:           getEnv("ITAD_BASE_URL", "https://api.isthereanydeal.com"),
			APIKey:            getEnv("ITAD_API_KEY", ""),
			Country:           getEnv("ITAD_COUNTRY", "US"),
			RequestsPerWindow: getEnvAsInt("ITAD_REQUESTS_PER_WINDOW", 20),
			Window:            getEnvAsDuration("ITAD_WINDOW", 10*time.Second),
			LookupBatchSize:   getEnvAsInt("ITAD_LOOKUP_BATCH_SIZE", 100),
			PriceBatchSize:    getEnvAsInt("ITAD_PRICE_BATCH_SIZE", 25),
		},
		Sync: SyncConfig{
			GamesCron:        getEnv("SYNC_GAMES_CRON", "0 4 * * 0"),
			RatingsCron:      getEnv("SYNC_RATINGS_CRON", "0 2 * * *"),
			PricesCron:       getEnv("SYNC_PRICES_CRON", "0 */6 * * *"),
			RatingMaxAge:     getEnvAsDuration("SYNC_RATING_MAX_AGE", 24*time.Hour),
			HistoryRetention: getEnvAsDuration("SYNC_HISTORY_RETENTION", 180*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
