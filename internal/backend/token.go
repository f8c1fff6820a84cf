package backend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonathan/report-composer/internal/config"
)

// tokenIssuer is the issuer claim of service tokens.
const tokenIssuer = "report-composer"

// TokenSigner mints short-lived HS256 bearer tokens for backend requests.
type TokenSigner struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewTokenSigner creates a signer. A nil config disables signing.
func NewTokenSigner(cfg *config.JWTConfig) *TokenSigner {
	if cfg == nil || cfg.Secret == "" {
		return nil
	}
	return &TokenSigner{config: cfg, now: time.Now}
}

// Token returns a signed token.
func (s *TokenSigner) Token() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   s.config.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.config.ExpirationHours) * time.Hour)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
