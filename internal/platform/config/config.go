package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures service level configuration.
type Server struct {
	Addr               string
	PostgresDSN        string
	RedisURL           string
	JWTSigningKey      string
	StaffPasswordHash  string
	ShelfLifeDays      int
	MaxUnitsPerRequest int
	AuditBufferSize    int
	LogLevel           string
}

// RedisConfig carries connection tuning for the availability cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("BLOODBANK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:               addr,
		PostgresDSN:        os.Getenv("BLOODBANK_POSTGRES_DSN"),
		RedisURL:           os.Getenv("BLOODBANK_REDIS_URL"),
		JWTSigningKey:      jwtSigningKey,
		StaffPasswordHash:  os.Getenv("BLOODBANK_STAFF_PASSWORD_HASH"),
		ShelfLifeDays:      intFromEnv("BLOODBANK_SHELF_LIFE_DAYS", 42),
		MaxUnitsPerRequest: intFromEnv("BLOODBANK_MAX_UNITS_PER_REQUEST", 5),
		AuditBufferSize:    intFromEnv("BLOODBANK_AUDIT_BUFFER", 256),
		LogLevel:           os.Getenv("BLOODBANK_LOG_LEVEL"),
	}
}

// Redis derives the cache connection config with pool defaults.
func (s Server) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func intFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
