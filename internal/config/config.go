package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // PostgreSQL; when empty, SQLite is used
	SQLitePath  string
	RedisURL    string
	FrontendURL string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Generation service
	GeminiAPIKey    string
	GeminiModel     string
	GeminiBaseURL   string // overridable for tests
	GenerateTimeout time.Duration

	// Sandbox runner
	WorkspaceDir string
	BuildTimeout time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "5000"),
		Env:             getEnv("ENV", "development"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      getEnv("SQLITE_PATH", "./data/devroom.db"),
		RedisURL:        os.Getenv("REDIS_URL"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
		JWTSecret:       os.Getenv("SESSION_SECRET"),
		TokenTTL:        getDuration("TOKEN_TTL", 24*time.Hour),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:   os.Getenv("GEMINI_BASE_URL"),
		GenerateTimeout: getDuration("GENERATE_TIMEOUT", 60*time.Second),
		WorkspaceDir:    getEnv("WORKSPACE_DIR", os.TempDir()),
		BuildTimeout:    getDuration("BUILD_TIMEOUT", 5*time.Minute),
	}

	// In production, secrets and shared infrastructure are mandatory
	if cfg.Env == "production" {
		if cfg.JWTSecret == "" {
			panic("SESSION_SECRET is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "devroom-dev-secret"
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

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Plain integers are taken as seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
