package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdnlb/vip-switch/pkg/logger"
)

const testSecret = "test-secret"

func testAuth(t *testing.T) *JWTAuth {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	auth := NewJWTAuth(testSecret, log)
	require.NotNil(t, auth)
	return auth
}

func signedToken(t *testing.T, secret string, expiry time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, auth *JWTAuth, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthDisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Nil(t, NewJWTAuth("", log))
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()

	auth := testAuth(t)

	tests := []struct {
		name          string
		authorization string
		expected      int
	}{
		{
			name:          "Valid token",
			authorization: "Bearer " + signedToken(t, testSecret, time.Hour),
			expected:      http.StatusOK,
		},
		{
			name:          "Missing header",
			authorization: "",
			expected:      http.StatusUnauthorized,
		},
		{
			name:          "Not a bearer token",
			authorization: "Basic abc",
			expected:      http.StatusUnauthorized,
		},
		{
			name:          "Wrong secret",
			authorization: "Bearer " + signedToken(t, "other-secret", time.Hour),
			expected:      http.StatusUnauthorized,
		},
		{
			name:          "Expired token",
			authorization: "Bearer " + signedToken(t, testSecret, -time.Hour),
			expected:      http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := doRequest(t, auth, tt.authorization)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}
