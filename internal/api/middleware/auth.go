package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/example/stockroom/internal/auth"
	"github.com/example/stockroom/internal/gateway"
)

// AccessTokenCookie is the cookie the login handler sets.
const AccessTokenCookie = "access_token"

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// authenticate validates the token and checks that its session is still
// live. A signed-out session fails even while the token has not expired.
func authenticate(r *http.Request, tokens *auth.TokenService, sessions gateway.SessionStore) (*auth.Claims, int, string) {
	tokenString := ExtractToken(r)
	if tokenString == "" {
		return nil, http.StatusUnauthorized, "unauthorized"
	}

	claims, err := tokens.Validate(tokenString)
	if err != nil {
		return nil, http.StatusUnauthorized, "invalid token"
	}

	sess, err := sessions.GetSession(r.Context(), claims.SessionID())
	if err != nil {
		log.Printf("[API] Session lookup failed: %v", err)
		return nil, http.StatusBadGateway, "session lookup failed"
	}
	if sess == nil {
		return nil, http.StatusUnauthorized, "session ended"
	}
	return claims, http.StatusOK, ""
}

// AuthMiddleware requires a valid token for a live session and adds the
// claims to the request context.
func AuthMiddleware(tokens *auth.TokenService, sessions gateway.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, status, message := authenticate(r, tokens, sessions)
			if claims == nil {
				respondError(w, message, status)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware adds the claims to the context when the request
// carries a usable token, and passes the request through either way.
func OptionalAuthMiddleware(tokens *auth.TokenService, sessions gateway.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, _, _ := authenticate(r, tokens, sessions); claims != nil {
				ctx := context.WithValue(r.Context(), UserContextKey, claims)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext retrieves user claims from the request context
func GetUserFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok
}

// GetSessionID returns the session the request is authenticated as, or "".
func GetSessionID(ctx context.Context) string {
	claims, ok := GetUserFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.SessionID()
}
