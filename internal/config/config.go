package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token formats accepted by AUTH_TOKEN_FORMAT.
const (
	TokenFormatPaseto = "paseto"
	TokenFormatJWT    = "jwt"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Project   ProjectConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins for cookie auth
	TrustProxy      bool     // honour X-Forwarded-For / X-Real-IP from a fronting proxy
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	MaxOpenConns   int
	MaxIdleConns   int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	TokenFormat         string // paseto or jwt
	TokenKey            []byte
	AccessTokenDuration time.Duration
	OTPTTL              time.Duration
	SecureOTP           bool   // draw reset codes from crypto/rand
	GatewayHeader       string // trusted upstream user-id header; empty disables
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
	QueueKey     string
	InProcess    bool // run the delivery worker inside the API process
}

type RateLimitConfig struct {
	IPLimit       int
	IPWindow      time.Duration
	EmailCooldown time.Duration
}

type ProjectConfig struct {
	CodePrefix string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
			TrustProxy:      getBoolEnv("TRUST_PROXY_HEADERS", false),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "scitech_admin"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenFormat:         strings.ToLower(getEnv("AUTH_TOKEN_FORMAT", TokenFormatPaseto)),
			TokenKey:            []byte(getEnv("AUTH_TOKEN_KEY", "")),
			AccessTokenDuration: getDurationEnv("ACCESS_TOKEN_DURATION", 8*time.Hour),
			OTPTTL:              getDurationEnv("OTP_TTL", 5*time.Minute),
			SecureOTP:           getBoolEnv("OTP_SECURE_RANDOM", false),
			GatewayHeader:       getEnv("AUTH_GATEWAY_HEADER", ""),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			FromAddress:  getEnv("SMTP_FROM", ""),
			QueueKey:     getEnv("MAILER_QUEUE_KEY", "mail:password_reset"),
			InProcess:    getBoolEnv("MAILER_INPROCESS", false),
		},
		RateLimit: RateLimitConfig{
			IPLimit:       getIntEnv("RATE_LIMIT_IP_REQUESTS", 10),
			IPWindow:      getDurationEnv("RATE_LIMIT_IP_WINDOW", 15*time.Minute),
			EmailCooldown: getDurationEnv("RATE_LIMIT_EMAIL_COOLDOWN", 0),
		},
		Project: ProjectConfig{
			CodePrefix: getEnv("PROJECT_CODE_PREFIX", "PRJ-"),
		},
	}

	if cfg.Email.FromAddress == "" {
		cfg.Email.FromAddress = cfg.Email.SMTPUser
	}

	if err := cfg.Auth.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AuthConfig) validate() error {
	switch c.TokenFormat {
	case TokenFormatPaseto:
		// v4.local requires a 32-byte symmetric key
		if len(c.TokenKey) != 32 {
			return fmt.Errorf("AUTH_TOKEN_KEY must be exactly 32 bytes for paseto, got %d", len(c.TokenKey))
		}
	case TokenFormatJWT:
		if len(c.TokenKey) < 32 {
			return fmt.Errorf("AUTH_TOKEN_KEY must be at least 32 bytes for jwt, got %d", len(c.TokenKey))
		}
	default:
		return fmt.Errorf("unsupported AUTH_TOKEN_FORMAT %q", c.TokenFormat)
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return b
}

// getDurationEnv reads a whole number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
