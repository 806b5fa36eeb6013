// Package config provides configuration for the SCIM bridge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the bridge configuration.
type Config struct {
	// Server settings
	ListenAddr string `validate:"required"`
	// BaseURL is the externally visible URL prefix used in meta.location
	// and $ref values. When empty those values are emitted as relative
	// paths; discovery endpoints always derive their base from the request.
	BaseURL string `validate:"omitempty,url"`

	// Backing identity store
	StoreURL          string `validate:"required,url"`
	StoreRealm        string `validate:"required"`
	StoreClientID     string `validate:"required"`
	StoreClientSecret string `validate:"required"`

	// Authentication. StaticTokens is a comma-separated list of
	// name=token pairs; token values may be bcrypt hashes.
	StaticTokens map[string]string
	OIDCIssuer   string `validate:"omitempty,url"`
	OIDCAudience string

	// Rate limiting per authenticated principal
	RateLimit  int           `validate:"min=1"`
	RateWindow time.Duration `validate:"min=1s"`

	// PatchMode is "lenient" or "strict".
	PatchMode string `validate:"oneof=lenient strict"`

	// Logging
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

// FromEnv loads configuration from environment variables.
func FromEnv() *Config {
	return &Config{
		ListenAddr:        getEnv("SCIM_LISTEN_ADDR", ":8080"),
		BaseURL:           getEnv("SCIM_BASE_URL", ""),
		StoreURL:          getEnv("STORE_URL", "http://localhost:8081"),
		StoreRealm:        getEnv("STORE_REALM", "master"),
		StoreClientID:     getEnv("STORE_CLIENT_ID", ""),
		StoreClientSecret: getEnv("STORE_CLIENT_SECRET", ""),
		StaticTokens:      parseTokens(getEnv("SCIM_TOKENS", "")),
		OIDCIssuer:        getEnv("SCIM_OIDC_ISSUER", ""),
		OIDCAudience:      getEnv("SCIM_OIDC_AUDIENCE", ""),
		RateLimit:         getEnvInt("SCIM_RATE_LIMIT", 600),
		RateWindow:        time.Duration(getEnvInt("SCIM_RATE_WINDOW_SECONDS", 60)) * time.Second,
		PatchMode:         getEnv("SCIM_PATCH_MODE", "lenient"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}
}

// Validate checks the configuration. At least one authentication method
// must be configured.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(c.StaticTokens) == 0 && c.OIDCIssuer == "" {
		return fmt.Errorf("no authentication configured: set SCIM_TOKENS or SCIM_OIDC_ISSUER")
	}
	return nil
}

// parseTokens parses a comma-separated list of name=token pairs.
// Malformed entries are dropped.
func parseTokens(raw string) map[string]string {
	tokens := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, token, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		token = strings.TrimSpace(token)
		if !ok || name == "" || token == "" {
			continue
		}
		tokens[name] = token
	}
	return tokens
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
