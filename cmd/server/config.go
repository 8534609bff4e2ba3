package main

import "os"

// Config holds the reference server configuration, read from environment
// variables (a .env file is loaded when present).
type Config struct {
	Port        string
	Environment string
	CORSOrigins string

	// SessionSecret signs anonymous session tokens (required).
	SessionSecret string

	// AuthJWKSURL is the auth provider's JWKS endpoint. When empty, every
	// caller resolves as anonymous.
	AuthJWKSURL string

	// DatabaseURL selects the durable store. When empty, profiles and user
	// counters fall back to process memory (development only).
	DatabaseURL string

	// RedisAddr selects the shared anonymous counter. When empty, the
	// counter lives in process memory and resets on restart.
	RedisAddr string

	// OpenAIAPIKey is the completion provider credential. When empty,
	// generation requests fail with MISSING_API_KEY.
	OpenAIAPIKey string
	OpenAIModel  string
}

func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "dev"),
		CORSOrigins:   getEnv("CORS_ORIGINS", "http://localhost:3000"),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		AuthJWKSURL:   getEnv("AUTH_JWKS_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
