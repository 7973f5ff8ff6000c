package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session tokens bind a browser to its server-side session. The token is
// issued when a session is created and presented as a bearer token on
// every session-scoped call.

type contextKey string

const sessionCodeKey contextKey = "session_code"

// NewToken signs a token carrying the session code.
func NewToken(secret []byte, code string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session": code,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// CodeFromContext returns the session code placed by TokenMiddleware.
func CodeFromContext(ctx context.Context) (string, bool) {
	code, ok := ctx.Value(sessionCodeKey).(string)
	return code, ok
}

// TokenMiddleware validates the bearer token and stores the session code
// on the request context.
func TokenMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(bearerToken[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			code, ok := claims["session"].(string)
			if !ok || code == "" {
				http.Error(w, "Invalid session in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionCodeKey, code)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
