package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Port  int
	Debug bool

	// Storage. DatabaseURL selects Postgres when set, otherwise
	// SQLitePath is used. In debug mode an empty SQLitePath falls
	// back to an in-memory store.
	DatabaseURL string
	SQLitePath  string

	// RabbitMQ. Empty disables event publishing.
	RabbitMQURL string

	// Sandbox
	SandboxImage    string
	SandboxTimeout  int // seconds
	SandboxMemoryMB int
	SandboxCPULimit float64
	SandboxPoolSize int

	// Loops
	LoopsPath string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		Debug:           getEnvBool("DEBUG", false),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SQLitePath:      getEnv("SQLITE_PATH", "./looplab.db"),
		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		SandboxImage:    getEnv("SANDBOX_IMAGE", "looplab-sandbox:latest"),
		SandboxTimeout:  getEnvInt("SANDBOX_TIMEOUT", 8),
		SandboxMemoryMB: getEnvInt("SANDBOX_MEMORY_MB", 256),
		SandboxCPULimit: getEnvFloat("SANDBOX_CPU_LIMIT", 1.0),
		SandboxPoolSize: getEnvInt("SANDBOX_POOL_SIZE", 3),
		LoopsPath:       getEnv("LOOPS_PATH", "./loops"),
	}

	if cfg.SandboxTimeout <= 0 {
		return nil, fmt.Errorf("SANDBOX_TIMEOUT must be positive, got %d", cfg.SandboxTimeout)
	}
	if cfg.SandboxPoolSize <= 0 {
		return nil, fmt.Errorf("SANDBOX_POOL_SIZE must be positive, got %d", cfg.SandboxPoolSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
