package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// MinSecretBytes is the smallest accepted HMAC key (256 bits).
	MinSecretBytes = 32
	// MaxTokenTTLMinutes caps token lifetimes at seven days.
	MaxTokenTTLMinutes = 10080
)

// Accepted values for the auth mode settings.
const (
	RevocationBackendRedis  = "redis"
	RevocationBackendMemory = "memory"

	FailModeClosed = "closed"
	FailModeOpen   = "open"

	RolePolicyIdentifier = "identifier"
	RolePolicyRego       = "rego"
)

var (
	// ErrSecretMisconfigured reports a missing or undersized secret.
	ErrSecretMisconfigured = errors.New("secret misconfigured")
	// ErrTTLOutOfRange reports a token lifetime outside [1, MaxTokenTTLMinutes].
	ErrTTLOutOfRange = errors.New("token ttl out of range")
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Gateway  GatewayConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	AccessTokenTTLMinutes   int
	PasswordResetTTLMinutes int
	BcryptCost              int
	AdminIdentifier         string
	RevocationBackend       string
	RevocationTimeoutMillis int
	RevocationFailMode      string
	RolePolicy              string
	RolePolicyFile          string
}

// GatewayConfig describes the trusted reverse proxy contract.
type GatewayConfig struct {
	SharedSecret string
	ProxyHeader  string
	SecretHeader string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "banking-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               os.Getenv("AUTH_JWT_SECRET"),
			AccessTokenTTLMinutes:   getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 15),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
			AdminIdentifier:         getEnv("AUTH_ADMIN_IDENTIFIER", "123456789"),
			RevocationBackend:       strings.ToLower(getEnv("AUTH_REVOCATION_BACKEND", RevocationBackendRedis)),
			RevocationTimeoutMillis: getEnvAsInt("AUTH_REVOCATION_TIMEOUT_MS", 250),
			RevocationFailMode:      strings.ToLower(getEnv("AUTH_REVOCATION_FAIL_MODE", FailModeClosed)),
			RolePolicy:              strings.ToLower(getEnv("AUTH_ROLE_POLICY", RolePolicyIdentifier)),
			RolePolicyFile:          os.Getenv("AUTH_ROLE_POLICY_FILE"),
		},
		Gateway: GatewayConfig{
			SharedSecret: os.Getenv("GATEWAY_SHARED_SECRET"),
			ProxyHeader:  getEnv("GATEWAY_PROXY_HEADER", "X-Kong-Proxy"),
			SecretHeader: getEnv("GATEWAY_SECRET_HEADER", "X-Kong-Auth"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service must refuse to start with.
func (c *Config) Validate() error {
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Gateway.SharedSecret) == "" {
		return fmt.Errorf("%w: GATEWAY_SHARED_SECRET is required", ErrSecretMisconfigured)
	}
	return nil
}

// Validate checks the signing secret and token lifetimes.
func (a AuthConfig) Validate() error {
	if a.JWTSecret == "" {
		return fmt.Errorf("%w: AUTH_JWT_SECRET is required", ErrSecretMisconfigured)
	}
	if len([]byte(a.JWTSecret)) < MinSecretBytes {
		return fmt.Errorf("%w: AUTH_JWT_SECRET must be at least %d bytes", ErrSecretMisconfigured, MinSecretBytes)
	}
	if a.AccessTokenTTLMinutes < 1 || a.AccessTokenTTLMinutes > MaxTokenTTLMinutes {
		return fmt.Errorf("%w: AUTH_ACCESS_TOKEN_TTL_MINUTES must be between 1 and %d", ErrTTLOutOfRange, MaxTokenTTLMinutes)
	}
	if a.PasswordResetTTLMinutes < 1 || a.PasswordResetTTLMinutes > MaxTokenTTLMinutes {
		return fmt.Errorf("%w: AUTH_PASSWORD_RESET_TTL_MINUTES must be between 1 and %d", ErrTTLOutOfRange, MaxTokenTTLMinutes)
	}
	switch a.RevocationBackend {
	case RevocationBackendRedis, RevocationBackendMemory:
	default:
		return fmt.Errorf("invalid AUTH_REVOCATION_BACKEND %q", a.RevocationBackend)
	}
	switch a.RevocationFailMode {
	case FailModeClosed, FailModeOpen:
	default:
		return fmt.Errorf("invalid AUTH_REVOCATION_FAIL_MODE %q", a.RevocationFailMode)
	}
	switch a.RolePolicy {
	case RolePolicyIdentifier, RolePolicyRego:
	default:
		return fmt.Errorf("invalid AUTH_ROLE_POLICY %q", a.RolePolicy)
	}
	return nil
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// PasswordResetTTL returns the reset token lifetime.
func (a AuthConfig) PasswordResetTTL() time.Duration {
	return time.Duration(a.PasswordResetTTLMinutes) * time.Minute
}

// RevocationTimeout bounds a single revocation lookup.
func (a AuthConfig) RevocationTimeout() time.Duration {
	if a.RevocationTimeoutMillis <= 0 {
		return 0
	}
	return time.Duration(a.RevocationTimeoutMillis) * time.Millisecond
}

// FailClosed reports whether an unreachable revocation store rejects tokens.
func (a AuthConfig) FailClosed() bool {
	return a.RevocationFailMode != FailModeOpen
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
