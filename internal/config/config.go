package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	ProviderBaseURL     string
	OpenAIAPIKey        string
	SyncInterval        time.Duration
	SyncDaysWithin      int
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string
	Timezone            string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILSYNC_ENV")
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
		EncryptionKeyBase64: os.Getenv("MAILSYNC_ENCRYPTION_KEY_BASE64"),
		ProviderBaseURL:     getEnvOrDefault("MAILSYNC_PROVIDER_BASE_URL", "https://api.aurinko.io/v1"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		SyncInterval:        getDurationOrDefault("MAILSYNC_SYNC_INTERVAL", 60*time.Second),
		SyncDaysWithin:      2,
		DBHost:              getEnvOrDefault("MAILSYNC_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("MAILSYNC_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("MAILSYNC_DB_USER", "mailsync"),
		DBPassword:          os.Getenv("MAILSYNC_DB_PASSWORD"),
		DBName:              getEnvOrDefault("MAILSYNC_DB_NAME", "mailsync"),
		DBSSLMode:           getEnvOrDefault("MAILSYNC_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "8080"),
		Timezone:            getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("MAILSYNC_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("MAILSYNC_DB_PASSWORD is required")
	}

	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
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

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		fmt.Printf("Warning: invalid duration for %s: %q, using default\n", key, value)
		return defaultValue
	}
	return parsed
}
