package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticVerifier struct {
	enabled bool
	key     string
}

func (v *staticVerifier) Enabled() bool { return v.enabled }

func (v *staticVerifier) Verify(key string) bool { return v.enabled && key == v.key }

func protected(v KeyVerifier) http.Handler {
	return APIKey(v)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAPIKey(t *testing.T) {
	v := &staticVerifier{enabled: true, key: "secret-key"}

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "x-api-key header", headers: map[string]string{"X-API-Key": "secret-key"}, want: http.StatusOK},
		{name: "bearer header", headers: map[string]string{"Authorization": "Bearer secret-key"}, want: http.StatusOK},
		{name: "lowercase bearer", headers: map[string]string{"Authorization": "bearer secret-key"}, want: http.StatusOK},
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong key", headers: map[string]string{"X-API-Key": "nope"}, want: http.StatusUnauthorized},
		{name: "basic scheme", headers: map[string]string{"Authorization": "Basic secret-key"}, want: http.StatusUnauthorized},
		{name: "extra parts", headers: map[string]string{"Authorization": "Bearer secret key"}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, val := range tt.headers {
				req.Header.Set(k, val)
			}
			rec := httptest.NewRecorder()
			protected(v).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAPIKey_Disabled(t *testing.T) {
	for _, v := range []KeyVerifier{nil, &staticVerifier{enabled: false}} {
		rec := httptest.NewRecorder()
		protected(v).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
