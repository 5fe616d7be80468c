package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port      string
	Env       string
	MongoURI  string
	JWTSecret string
	UploadDir string

	// Requests per minute allowed on register/login, per client.
	RateLimitRPM int
}

// Load reads configuration from environment variables. In development it
// loads from a .env file if present. In production it panics on missing
// required variables.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		MongoURI:     os.Getenv("MONGODB_URI"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		RateLimitRPM: getEnvInt("RATE_LIMIT_RPM", 10),
	}

	if cfg.Env == "production" {
		if cfg.MongoURI == "" {
			panic("MONGODB_URI is required in production")
		}
		if cfg.JWTSecret == "" {
			panic("JWT_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
