// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverMemory = "memory"
)

// ErrMissingSecret is returned by Validate when no JWT secret is configured.
var ErrMissingSecret = errors.New("JWT_SECRET is required")

// Config holds everything the server needs at startup.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	DBDriver         string
	DatabaseDSN      string
	DBConnectTimeout time.Duration

	JWTSecret    string
	JWTExpiresIn time.Duration
	BcryptCost   int

	RabbitMQURL     string
	AuditConsumer   bool
	RedisURL        string
	ProfileCacheTTL time.Duration

	PublicDir string
	LoginPath string
	HomePath  string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("DB_CONNECT_TIMEOUT", "10s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRES_IN", "7d")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("AUDIT_CONSUMER", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("PROFILE_CACHE_TTL", "5m")
	v.SetDefault("PUBLIC_DIR", "")
	v.SetDefault("LOGIN_PATH", "/login")
	v.SetDefault("HOME_PATH", "/")
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	expiresIn, err := ParseDuration(v.GetString("JWT_EXPIRES_IN"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}
	connectTimeout, err := ParseDuration(v.GetString("DB_CONNECT_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONNECT_TIMEOUT: %w", err)
	}
	cacheTTL, err := ParseDuration(v.GetString("PROFILE_CACHE_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROFILE_CACHE_TTL: %w", err)
	}

	return &Config{
		AppPort:          v.GetString("APP_PORT"),
		AppEnv:           strings.ToLower(v.GetString("APP_ENV")),
		LogLevel:         v.GetString("LOG_LEVEL"),
		DBDriver:         strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:      v.GetString("DATABASE_DSN"),
		DBConnectTimeout: connectTimeout,
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTExpiresIn:     expiresIn,
		BcryptCost:       v.GetInt("BCRYPT_COST"),
		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		AuditConsumer:    v.GetBool("AUDIT_CONSUMER"),
		RedisURL:         v.GetString("REDIS_URL"),
		ProfileCacheTTL:  cacheTTL,
		PublicDir:        v.GetString("PUBLIC_DIR"),
		LoginPath:        v.GetString("LOGIN_PATH"),
		HomePath:         v.GetString("HOME_PATH"),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	switch c.DBDriver {
	case "postgres", "sqlite", DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver != DriverMemory && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for driver %s", c.DBDriver)
	}
	if c.IsProduction() && c.BcryptCost < 12 {
		return fmt.Errorf("BCRYPT_COST must be at least 12 in production, got %d", c.BcryptCost)
	}
	if c.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	return nil
}

// ParseDuration accepts Go durations plus a whole-day suffix, e.g. "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("bad day count in %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
