// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"net/http"
	"strings"
)

// KeyVerifier checks presented API keys. *config.APIKeyConfig satisfies it.
type KeyVerifier interface {
	Enabled() bool
	Verify(key string) bool
}

// APIKey creates middleware that rejects requests without a valid API key. The key
// is read from the X-API-Key header or an "Authorization: Bearer" header. When the
// verifier is disabled every request passes.
func APIKey(verifier KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil || !verifier.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := PresentedKey(r)
			if key == "" || !verifier.Verify(key) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PresentedKey extracts the API key from the request, or "" when none is present.
func PresentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}

	// Handle case-insensitive "Bearer" prefix
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
