// Package config loads the immutable process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all startup configuration. It is constructed once in main and
// passed by reference; nothing mutates it afterwards.
type Config struct {
	ServerPort     int
	DatabaseURL    string
	AccessTokenKey string

	LogLevel  string
	LogFormat string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from the process environment. A .env file in the
// working directory is honored when present. ACCESS_TOKEN_KEY is mandatory; an
// empty DATASOURCE_URL selects the in-memory store.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:     getEnvInt("SERVER_PORT", 3000),
		DatabaseURL:    os.Getenv("DATASOURCE_URL"),
		AccessTokenKey: os.Getenv("ACCESS_TOKEN_KEY"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}

	if cfg.AccessTokenKey == "" {
		return nil, fmt.Errorf("ACCESS_TOKEN_KEY is required")
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT %d out of range", cfg.ServerPort)
	}
	if cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_BURST must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
