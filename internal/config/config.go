package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string

	// Defaults applied to accounts that do not override their own endpoints.
	DefaultIMAPHost   string
	DefaultIMAPPort   int
	DefaultIMAPSecure bool
	DefaultSMTPHost   string
	DefaultSMTPPort   int
	DefaultSMTPSecure bool

	// Optional outbound webhook endpoint. When empty, event dispatch is a
	// local-only audit write.
	WebhookURL    string
	WebhookSecret string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILBRIDGE_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("MAILBRIDGE_ENCRYPTION_KEY_BASE64"),
		DBHost:              getEnvOrDefault("MAILBRIDGE_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("MAILBRIDGE_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("MAILBRIDGE_DB_USER", "mailbridge"),
		DBPassword:          os.Getenv("MAILBRIDGE_DB_PASSWORD"),
		DBName:              getEnvOrDefault("MAILBRIDGE_DB_NAME", "mailbridge"),
		DBSSLMode:           getEnvOrDefault("MAILBRIDGE_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "8080"),
		DefaultIMAPHost:     getEnvOrDefault("MAILBRIDGE_DEFAULT_IMAP_HOST", "imap.example.com"),
		DefaultIMAPPort:     getEnvIntOrDefault("MAILBRIDGE_DEFAULT_IMAP_PORT", 993),
		DefaultIMAPSecure:   getEnvBoolOrDefault("MAILBRIDGE_DEFAULT_IMAP_SECURE", true),
		DefaultSMTPHost:     getEnvOrDefault("MAILBRIDGE_DEFAULT_SMTP_HOST", "smtp.example.com"),
		DefaultSMTPPort:     getEnvIntOrDefault("MAILBRIDGE_DEFAULT_SMTP_PORT", 465),
		DefaultSMTPSecure:   getEnvBoolOrDefault("MAILBRIDGE_DEFAULT_SMTP_SECURE", true),
		WebhookURL:          os.Getenv("MAILBRIDGE_WEBHOOK_URL"),
		WebhookSecret:       os.Getenv("MAILBRIDGE_WEBHOOK_SECRET"),
		ConnectTimeout:      getEnvDurationOrDefault("MAILBRIDGE_CONNECT_TIMEOUT", 10*time.Second),
		CommandTimeout:      getEnvDurationOrDefault("MAILBRIDGE_COMMAND_TIMEOUT", 30*time.Second),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate fails startup when security-critical settings are missing. The
// process must never run with a guessable default encryption key.
func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("MAILBRIDGE_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("MAILBRIDGE_DB_PASSWORD is required")
	}

	if c.WebhookURL != "" && c.WebhookSecret == "" {
		return fmt.Errorf("MAILBRIDGE_WEBHOOK_SECRET is required when MAILBRIDGE_WEBHOOK_URL is set")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
