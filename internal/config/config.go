// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	AllowedOrigins []string
	// TypingExpiry is how long a typing indicator may go unrefreshed before
	// the sweeper broadcasts the stop event. 0 disables the sweeper.
	TypingExpiry time.Duration
	// MaxMessageLength caps message content in bytes. 0 means unlimited.
	MaxMessageLength int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "3001"),
		AllowedOrigins:   splitOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3003")),
		TypingExpiry:     time.Duration(getEnvInt("TYPING_EXPIRY", 6)) * time.Second,
		MaxMessageLength: getEnvInt("MAX_MESSAGE_LENGTH", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS cannot be empty")
	}
	if c.TypingExpiry < 0 {
		return fmt.Errorf("TYPING_EXPIRY must be >= 0")
	}
	if c.MaxMessageLength < 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be >= 0")
	}
	return nil
}

func splitOrigins(value string) []string {
	var origins []string
	for _, o := range strings.Split(value, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
