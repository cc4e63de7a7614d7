package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/sdnlb/vip-switch/pkg/logger"
)

// JWTAuth protects the admin API with bearer-token authentication. Tokens
// are validated against a shared HMAC secret; an empty secret disables the
// middleware entirely.
type JWTAuth struct {
	secret []byte
	logger *logger.Logger
}

// NewJWTAuth creates the auth middleware. Returns nil when no secret is
// configured, which callers treat as "auth disabled".
func NewJWTAuth(secret string, log *logger.Logger) *JWTAuth {
	if secret == "" {
		return nil
	}
	return &JWTAuth{
		secret: []byte(secret),
		logger: log.AdminLogger(),
	}
}

// Middleware wraps a handler with bearer-token validation
func (a *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := a.extractToken(r)
		if err != nil {
			a.unauthorized(w, err.Error())
			return
		}

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || !parsed.Valid {
			a.logger.WithField("remote_addr", r.RemoteAddr).Warn("Rejected admin request with invalid token")
			a.unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken pulls the bearer token from the Authorization header
func (a *JWTAuth) extractToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("authorization header must be a bearer token")
	}
	return parts[1], nil
}

// unauthorized writes a 401 response
func (a *JWTAuth) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
