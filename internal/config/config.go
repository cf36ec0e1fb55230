package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values come from env (or an env-file loaded by the process
// runner), and every knob has a default so the service boots with an
// empty environment against local infrastructure.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig

	// IdempotencyTTL bounds how long cached mutation responses replay.
	IdempotencyTTL time.Duration
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	PoolMin int
	PoolMax int
}

type RedisConfig struct {
	Host string
	Port int
}

type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = stringOr("APP_ENV", "local")
	c.App.Port, parseErrs = intOr("APP_PORT", 8080, parseErrs)
	c.App.LogLevel = stringOr("LOG_LEVEL", "info")

	c.DB.Host = stringOr("DB_HOST", "localhost")
	c.DB.Port, parseErrs = intOr("DB_PORT", 5432, parseErrs)
	c.DB.User = stringOr("DB_USER", "ledger")
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = stringOr("DB_NAME", "ledger")
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.PoolMin, parseErrs = intOr("DB_POOL_MIN", 2, parseErrs)
	c.DB.PoolMax, parseErrs = intOr("DB_POOL_MAX", 10, parseErrs)

	c.Redis.Host = stringOr("REDIS_HOST", "localhost")
	c.Redis.Port, parseErrs = intOr("REDIS_PORT", 6379, parseErrs)

	c.RateLimit.Window = durationOr("RATE_LIMIT_WINDOW", time.Minute)
	c.RateLimit.Max, parseErrs = intOr("RATE_LIMIT_MAX", 100, parseErrs)

	{
		n, errs := intOr("IDEMPOTENCY_TTL_HOURS", 24, parseErrs)
		parseErrs = errs
		c.IdempotencyTTL = time.Duration(n) * time.Hour
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.TokenTTL = durationOr("JWT_TOKEN_TTL", time.Hour)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	if c.DB.PoolMax <= 0 {
		errs = append(errs, fmt.Errorf("DB_POOL_MAX must be > 0, got %d", c.DB.PoolMax))
	}
	if c.DB.PoolMin < 0 || c.DB.PoolMin > c.DB.PoolMax {
		errs = append(errs, fmt.Errorf("DB_POOL_MIN must be between 0 and DB_POOL_MAX, got %d", c.DB.PoolMin))
	}

	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be a positive duration"))
	}
	if c.RateLimit.Max <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX must be > 0, got %d", c.RateLimit.Max))
	}

	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL_HOURS must be > 0"))
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func stringOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intOr(key string, def int, errs []error) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func durationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
