// Package config provides configuration management for the reset mailer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Email providers understood by the transport configurator
const (
	ProviderSMTP    = "smtp"
	ProviderMailgun = "mailgun"
)

// EnvProduction is the deployment mode that enables strict TLS and hides raw links
const EnvProduction = "production"

// Config holds all configuration for the application
type Config struct {
	Env      string
	LogLevel string
	Server   ServerConfig
	Database DatabaseConfig
	Email    EmailConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// EmailConfig holds mail transport and reset link configuration.
// SMTP values are kept raw so the transport configurator can tell a missing
// setting apart from a malformed one.
type EmailConfig struct {
	Provider        string        // Email provider: "smtp" or "mailgun"
	SMTPHost        string        // SMTP server hostname
	SMTPPort        string        // SMTP port, raw; empty means unset
	SMTPSecure      bool          // Implicit TLS (SMTPS)
	SMTPUser        string        // SMTP account, also the default sender address
	SMTPPass        string        // SMTP password
	SMTPFrom        string        // Optional "Name <address>" sender override
	VerifyTimeout   time.Duration // Upper bound for the startup connectivity check
	MailgunDomain   string        // Mailgun domain
	MailgunAPIKey   string        // Mailgun API key
	MailgunEU       bool          // Use the EU API base
	ProductName     string        // Product label used in subject and default sender name
	FrontendBaseURL string        // Frontend URL the reset link points at
}

// DatabaseConfig holds database-related configuration.
// An empty URL selects the in-memory reset token store.
type DatabaseConfig struct {
	URL                   string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// Load loads configuration from environment variables, reading a .env file first if present
func Load() (*Config, error) {
	// Missing .env is normal outside local development
	_ = godotenv.Load()

	env := getEnv("ENV", getEnv("NODE_ENV", "development"))

	cfg := &Config{
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL:                   GetSecret("DATABASE_URL", ""),
			MaxConnections:        getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections:    getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 2),
			ConnectionMaxLifetime: getEnvAsDuration("DB_CONNECTION_MAX_LIFETIME", "5m"),
		},
		Email: EmailConfig{
			Provider:        strings.ToLower(getEnv("EMAIL_PROVIDER", ProviderSMTP)),
			SMTPHost:        strings.TrimSpace(os.Getenv("SMTP_HOST")),
			SMTPPort:        strings.TrimSpace(os.Getenv("SMTP_PORT")),
			SMTPSecure:      os.Getenv("SMTP_SECURE") == "true",
			SMTPUser:        strings.TrimSpace(os.Getenv("SMTP_USER")),
			SMTPPass:        GetSecret("SMTP_PASS", ""),
			SMTPFrom:        os.Getenv("SMTP_FROM"),
			VerifyTimeout:   getEnvAsDuration("SMTP_VERIFY_TIMEOUT", "10s"),
			MailgunDomain:   GetSecret("MAILGUN_DOMAIN", ""),
			MailgunAPIKey:   GetSecret("MAILGUN_API_KEY", ""),
			MailgunEU:       getEnvAsBool("MAILGUN_EU", false),
			ProductName:     getEnv("EMAIL_PRODUCT_NAME", "Medical System"),
			FrontendBaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid.
// Missing transport settings are not an error: the mailer degrades to simulation.
func (c *Config) Validate() error {
	switch c.Email.Provider {
	case ProviderSMTP, ProviderMailgun:
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be either '%s' or '%s', got: %s",
			ProviderSMTP, ProviderMailgun, c.Email.Provider)
	}
	if c.Email.VerifyTimeout <= 0 {
		return fmt.Errorf("SMTP_VERIFY_TIMEOUT must be positive, got: %s", c.Email.VerifyTimeout)
	}
	return nil
}

// IsProduction reports whether the deployment mode is production
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration or returns a default value
func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		defaultDuration, _ := time.ParseDuration(defaultValue)
		return defaultDuration
	}
	return value
}
