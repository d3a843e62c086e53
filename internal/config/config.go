package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDatabaseDSN       = "host=localhost user=postgres password=postgres dbname=hrportal port=5432 sslmode=disable"
	defaultCORSOrigins       = "http://localhost:5173"
	defaultPrimaryAdminEmail = "admin@arithaconsulting.com"
)

type Config struct {
	HTTPPort    string
	AppEnv      string
	DatabaseDSN string
	CORSOrigins string
	LogLevel    slog.Level

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	// PrimaryAdminEmail identifies the single account that owns the recovery
	// flow and can never be deactivated, demoted or deleted.
	PrimaryAdminEmail     string
	AllowOpenRegistration bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads the configuration from the environment. Missing optional values
// fall back to development friendly defaults; a missing or short JWT secret
// and unparsable values are reported as an error.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		AppEnv:            strings.ToLower(getEnv("APP_ENV", "production")),
		DatabaseDSN:       getEnv("DATABASE_DSN", defaultDatabaseDSN),
		CORSOrigins:       getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		PrimaryAdminEmail: strings.TrimSpace(getEnv("PRIMARY_ADMIN_EMAIL", defaultPrimaryAdminEmail)),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
	}

	invalid := make([]string, 0, 4)

	var err error
	if cfg.JWTTTL, err = time.ParseDuration(getEnv("JWT_TTL", "168h")); err != nil || cfg.JWTTTL <= 0 {
		invalid = append(invalid, "JWT_TTL")
	}
	if cfg.BcryptCost, err = strconv.Atoi(getEnv("BCRYPT_COST", "10")); err != nil || cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		invalid = append(invalid, "BCRYPT_COST")
	}
	if cfg.AllowOpenRegistration, err = strconv.ParseBool(getEnv("ALLOW_OPEN_REGISTRATION", "false")); err != nil {
		invalid = append(invalid, "ALLOW_OPEN_REGISTRATION")
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil || cfg.RedisDB < 0 {
		invalid = append(invalid, "REDIS_DB")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		invalid = append(invalid, "LOG_LEVEL")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.PrimaryAdminEmail == "" {
		return nil, fmt.Errorf("PRIMARY_ADMIN_EMAIL must not be empty")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Warnings lists settings that are fine for local development but should be
// overridden in production.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.DatabaseDSN == defaultDatabaseDSN {
		warnings = append(warnings, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		warnings = append(warnings, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	if c.AllowOpenRegistration {
		warnings = append(warnings, "ALLOW_OPEN_REGISTRATION is enabled, anyone can create hr accounts")
	}
	return warnings
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
