package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Remote store API
	StoreAPIURL        string
	RequestTimeout     time.Duration
	BreakerMaxFailures int

	// Database
	DatabaseURL string

	// Sessions
	SessionStore string // "database" or "redis"
	SessionKey   string
	SessionTTL   time.Duration
	RedisURL     string

	// Analytics
	KafkaBrokers   []string
	AnalyticsSink  string // "datalayer" or "kafka"
	AnalyticsTopic string

	// API Configuration
	APIPort     string
	APIHost     string
	CORSOrigins []string

	// Experimentation
	ExperimentSiteCode     string
	FeatureFlags           string
	ExperimentCheckoutGoal string

	// Google sign-in
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Environment
	Env      string
	LogLevel string
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	return &Config{
		StoreAPIURL:            getEnv("STORE_API_URL", "http://localhost:5001"),
		RequestTimeout:         time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 30)) * time.Second,
		BreakerMaxFailures:     getEnvAsInt("BREAKER_MAX_FAILURES", 5),
		DatabaseURL:            getEnv("DATABASE_URL", "sqlite://storefront.db"),
		SessionStore:           getEnv("SESSION_STORE", "database"),
		SessionKey:             getEnv("SESSION_KEY", "default"),
		SessionTTL:             time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 24*14)) * time.Hour,
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KafkaBrokers:           splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		AnalyticsSink:          getEnv("ANALYTICS_SINK", "datalayer"),
		AnalyticsTopic:         getEnv("ANALYTICS_TOPIC", "storefront-events"),
		APIPort:                getEnv("API_PORT", "8080"),
		APIHost:                getEnv("API_HOST", "127.0.0.1"),
		CORSOrigins:            splitCSV(getEnv("CORS_ORIGINS", "")),
		ExperimentSiteCode:     getEnv("EXPERIMENT_SITE_CODE", ""),
		FeatureFlags:           getEnv("FEATURE_FLAGS", ""),
		ExperimentCheckoutGoal: getEnv("EXPERIMENT_CHECKOUT_GOAL", "checkout"),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:      getEnv("GOOGLE_REDIRECT_URL", "urn:ietf:wg:oauth:2.0:oob"),
		Env:                    getEnv("ENV", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
