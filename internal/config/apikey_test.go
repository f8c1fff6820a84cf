package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewAPIKeyConfig_Defaults(t *testing.T) {
	t.Setenv("BCRYPT_COST", "")
	t.Setenv("SERVER_API_KEY_HASH", "")
	t.Setenv("API_KEY_PEPPER", "")

	cfg, err := NewAPIKeyConfig()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.False(t, cfg.Enabled())
}

func TestNewAPIKeyConfig_InvalidCost(t *testing.T) {
	for _, cost := range []string{"abc", "2", "20"} {
		t.Run(cost, func(t *testing.T) {
			t.Setenv("BCRYPT_COST", cost)
			_, err := NewAPIKeyConfig()
			assert.Error(t, err)
		})
	}
}

func TestAPIKeyConfig_HashAndVerify(t *testing.T) {
	cfg := &APIKeyConfig{BcryptCost: bcrypt.MinCost, Pepper: "pepper"}

	hash, err := cfg.HashKey("s3cret")
	require.NoError(t, err)
	cfg.Hash = hash

	assert.True(t, cfg.Enabled())
	assert.True(t, cfg.Verify("s3cret"))
	assert.False(t, cfg.Verify("wrong"))
	assert.False(t, cfg.Verify(""))

	other := &APIKeyConfig{Hash: hash, BcryptCost: bcrypt.MinCost}
	assert.False(t, other.Verify("s3cret"), "pepper is part of the hashed input")
}

func TestAPIKeyConfig_NilDisabled(t *testing.T) {
	var cfg *APIKeyConfig
	assert.False(t, cfg.Enabled())
	assert.False(t, cfg.Verify("anything"))
}
