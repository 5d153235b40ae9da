package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	JWTSecret      string
	APITokenExpiry time.Duration

	InvitationExpiry        time.Duration
	InvitationSweepInterval time.Duration

	MemoryAPI MemoryAPIConfig
}

// MemoryAPIConfig points at the external memory service that owns memory records.
type MemoryAPIConfig struct {
	BaseURL string
	APIKey  string
	Token   string
	Timeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:      getEnvOrPanic("JWT_SECRET"),
		APITokenExpiry: getDuration("API_TOKEN_EXPIRY", 30*24*time.Hour),

		InvitationExpiry:        getDuration("INVITATION_EXPIRY", 7*24*time.Hour),
		InvitationSweepInterval: getDuration("INVITATION_SWEEP_INTERVAL", time.Hour),

		MemoryAPI: MemoryAPIConfig{
			BaseURL: getEnv("MEMORY_API_URL", "http://localhost:8000"),
			APIKey:  getEnv("MEMORY_API_KEY", ""),
			Token:   getEnv("MEMORY_API_TOKEN", ""),
			Timeout: getDuration("MEMORY_API_TIMEOUT", 10*time.Second),
		},
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback.String()))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}
