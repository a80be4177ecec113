// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases, always absolute
	Port     int
	LogLevel string
	DevMode  bool

	// Historical fetch window for rebalancing. These are deliberately plain
	// calendar dates rather than offsets from "today": the window is an
	// explicit, testable input to every rebalance run.
	WindowStart string // ISO date, inclusive
	WindowEnd   string // ISO date, inclusive

	DefaultUniverse  string
	RebalanceTimeout time.Duration
	RebalanceCron    string // cron spec for scheduled runs, empty = disabled

	// S3-compatible backup target (Cloudflare R2). Backups are disabled
	// unless all three credentials are present.
	BackupBucket    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string
	BackupCron      string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("OMEGAFOLIO_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8001),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		WindowStart:      getEnv("REBALANCE_WINDOW_START", "2024-04-01"),
		WindowEnd:        getEnv("REBALANCE_WINDOW_END", "2024-06-30"),
		DefaultUniverse:  getEnv("DEFAULT_UNIVERSE", "taiwan50"),
		RebalanceTimeout: time.Duration(getEnvAsInt("REBALANCE_TIMEOUT_SECONDS", 120)) * time.Second,
		RebalanceCron:    getEnv("REBALANCE_CRON", ""),
		BackupBucket:     getEnv("BACKUP_BUCKET", ""),
		BackupEndpoint:   getEnv("BACKUP_ENDPOINT", ""),
		BackupAccessKey:  getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey:  getEnv("BACKUP_SECRET_KEY", ""),
		BackupCron:       getEnv("BACKUP_CRON", "0 0 2 * * *"), // 2 AM daily
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	start, err := time.Parse("2006-01-02", c.WindowStart)
	if err != nil {
		return fmt.Errorf("invalid REBALANCE_WINDOW_START %q: %w", c.WindowStart, err)
	}
	end, err := time.Parse("2006-01-02", c.WindowEnd)
	if err != nil {
		return fmt.Errorf("invalid REBALANCE_WINDOW_END %q: %w", c.WindowEnd, err)
	}
	if !end.After(start) {
		return fmt.Errorf("rebalance window end %s must be after start %s", c.WindowEnd, c.WindowStart)
	}
	if c.RebalanceTimeout <= 0 {
		return fmt.Errorf("rebalance timeout must be positive")
	}
	return nil
}

// BackupEnabled reports whether the S3 backup target is fully configured.
func (c *Config) BackupEnabled() bool {
	return c.BackupBucket != "" && c.BackupAccessKey != "" && c.BackupSecretKey != ""
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
