package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Environment string
	LogLevel    string
	LogFormat   string
	Port        string

	// Storage
	DataDir string

	// Async runs (optional; queue disabled when empty)
	RedisURL string

	// Scheduled refresh (optional; cron spec, e.g. "0 3 * * 1")
	RefreshSchedule string

	// Auth
	EnableAuth bool
	JWTSecret  string

	// LLM engine access
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout int // seconds

	// Semantic insight search (optional; needs an LLM API key for embeddings)
	EnableInsightIndex bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		Port:            getEnv("PORT", "8080"),
		DataDir:         getEnv("DATA_DIR", "data"),
		RedisURL:        getEnv("REDIS_URL", ""),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", ""),
		EnableAuth:      getEnvAsBool("ENABLE_AUTH", false),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:      getEnvAsInt("LLM_TIMEOUT", 120),

		EnableInsightIndex: getEnvAsBool("ENABLE_INSIGHT_INDEX", false),
	}

	if config.EnableInsightIndex && config.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required when ENABLE_INSIGHT_INDEX is set")
	}

	if config.EnableAuth && config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when ENABLE_AUTH is set")
	}

	return config, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
