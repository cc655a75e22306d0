// Package config provides configuration management functionality: process
// configuration from environment variables and the static per-instrument
// configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir           string // Base directory for state and cache (always absolute)
	StatePath         string // State document path (defaults to <DataDir>/state.json)
	CacheDBPath       string // Client-data cache database (defaults to <DataDir>/client_data.db)
	InstrumentsPath   string // Instruments YAML file
	DiscordWebhookURL string
	LogLevel          string
	Port              int
	Schedule          string // Cron expression for daemon mode
	ReminderWeekday   time.Weekday

	FXBase        string
	FXQuote       string
	FXDefaultRate float64 // Fixed last-resort rate; 0 disables the fallback tier

	Backup BackupConfig
}

// BackupConfig holds the optional S3-compatible off-site backup settings.
type BackupConfig struct {
	Enabled   bool
	Endpoint  string // S3-compatible endpoint (e.g. Cloudflare R2)
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DIVMON_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	weekday, err := parseWeekday(getEnv("DIVMON_REMINDER_WEEKDAY", "Monday"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:           absDataDir,
		StatePath:         getEnv("DIVMON_STATE_PATH", filepath.Join(absDataDir, "state.json")),
		CacheDBPath:       getEnv("DIVMON_CACHE_DB", filepath.Join(absDataDir, "client_data.db")),
		InstrumentsPath:   getEnv("DIVMON_INSTRUMENTS", "instruments.yaml"),
		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnvAsInt("DIVMON_PORT", 8089),
		Schedule:          getEnv("DIVMON_SCHEDULE", "30 22 * * *"), // after US close, UTC
		ReminderWeekday:   weekday,
		FXBase:            getEnv("DIVMON_FX_BASE", "USD"),
		FXQuote:           getEnv("DIVMON_FX_QUOTE", "JPY"),
		FXDefaultRate:     getEnvAsFloat("DIVMON_FX_DEFAULT_RATE", 150.0),
		Backup: BackupConfig{
			Enabled:   getEnvAsBool("DIVMON_BACKUP_ENABLED", false),
			Endpoint:  getEnv("DIVMON_BACKUP_ENDPOINT", ""),
			Region:    getEnv("DIVMON_BACKUP_REGION", "auto"),
			Bucket:    getEnv("DIVMON_BACKUP_BUCKET", ""),
			AccessKey: getEnv("DIVMON_BACKUP_ACCESS_KEY", ""),
			SecretKey: getEnv("DIVMON_BACKUP_SECRET_KEY", ""),
			Prefix:    getEnv("DIVMON_BACKUP_PREFIX", "divmon"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("backup enabled but DIVMON_BACKUP_BUCKET is not set")
	}
	return nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s == d.String() {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid reminder weekday %q", s)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
