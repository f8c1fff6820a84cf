package config

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyConfig holds the bcrypt hash of the key accepted by the HTTP server.
// An empty Hash disables key checks.
type APIKeyConfig struct {
	Hash       string
	BcryptCost int
	Pepper     string // optional global secret appended before hashing
}

// NewAPIKeyConfig creates an API key configuration from environment variables.
// It reads SERVER_API_KEY_HASH, BCRYPT_COST (default: 12) and optionally API_KEY_PEPPER.
func NewAPIKeyConfig() (*APIKeyConfig, error) {
	costStr := os.Getenv("BCRYPT_COST")
	if costStr == "" {
		costStr = "12"
	}

	cost, err := strconv.Atoi(costStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %v", err)
	}

	config := &APIKeyConfig{
		Hash:       os.Getenv("SERVER_API_KEY_HASH"),
		BcryptCost: cost,
		Pepper:     os.Getenv("API_KEY_PEPPER"),
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *APIKeyConfig) normalize() error {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be %d-14)", c.BcryptCost, bcrypt.MinCost)
	}
	return nil
}

// Enabled reports whether requests must carry an API key.
func (c *APIKeyConfig) Enabled() bool {
	return c != nil && c.Hash != ""
}

// HashKey hashes a key with bcrypt (with optional pepper). Used by operators to
// produce SERVER_API_KEY_HASH.
func (c *APIKeyConfig) HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key+c.Pepper), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// Verify checks a presented key against the configured hash.
func (c *APIKeyConfig) Verify(key string) bool {
	if !c.Enabled() || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Hash), []byte(key+c.Pepper)) == nil
}
