package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrJWTSecretMissing is returned when BACKEND_JWT_SECRET is unset. Callers that can
// talk to an unauthenticated backend treat it as "signing disabled".
var ErrJWTSecretMissing = errors.New("BACKEND_JWT_SECRET is required but not set")

// JWTConfig holds configuration for the bearer tokens sent to the order backend.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Subject         string
}

// NewJWTConfig creates a new JWT configuration from environment variables.
// It reads BACKEND_JWT_SECRET (required), BACKEND_JWT_EXPIRATION_HOURS (default: 1)
// and BACKEND_JWT_SUBJECT (default: "report-composer").
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("BACKEND_JWT_SECRET")
	if secret == "" {
		return nil, ErrJWTSecretMissing
	}

	expirationStr := os.Getenv("BACKEND_JWT_EXPIRATION_HOURS")
	if expirationStr == "" {
		expirationStr = "1"
	}

	expirationHours, err := strconv.Atoi(expirationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_JWT_EXPIRATION_HOURS: %v", err)
	}

	subject := os.Getenv("BACKEND_JWT_SUBJECT")
	if subject == "" {
		subject = "report-composer"
	}

	config := &JWTConfig{
		Secret:          secret,
		ExpirationHours: expirationHours,
		Subject:         subject,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return ErrJWTSecretMissing
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("BACKEND_JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
