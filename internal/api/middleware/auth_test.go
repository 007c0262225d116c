package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/stockroom/internal/auth"
	"github.com/example/stockroom/internal/gateway"
	"github.com/example/stockroom/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-32-chars!"

func newTestTokenService() *auth.TokenService {
	return auth.NewTokenService(testSecret, 15*time.Minute)
}

// newSessionGateway returns a gateway holding one live session, sess-1.
func newSessionGateway() *mocks.MockGateway {
	gw := mocks.NewMockGateway()
	gw.SeedSession(gateway.Session{
		ID:        "sess-1",
		UserID:    "user-123",
		Email:     "test@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	return gw
}

func captureClaims(captured **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := GetUserFromContext(r.Context()); ok {
			*captured = claims
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================
// Auth Middleware Tests
// ============================================

func TestAuthMiddleware_ValidToken_Header(t *testing.T) {
	tokens := newTestTokenService()
	middleware := AuthMiddleware(tokens, newSessionGateway())

	token, _, err := tokens.Issue("sess-1", "user-123", "test@example.com")
	require.NoError(t, err)

	var capturedClaims *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(captureClaims(&capturedClaims)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "user-123", capturedClaims.UserID)
	assert.Equal(t, "test@example.com", capturedClaims.Email)
	assert.Equal(t, "sess-1", capturedClaims.SessionID())
}

func TestAuthMiddleware_ValidToken_Cookie(t *testing.T) {
	tokens := newTestTokenService()
	middleware := AuthMiddleware(tokens, newSessionGateway())

	token, _, err := tokens.Issue("sess-1", "user-123", "test@example.com")
	require.NoError(t, err)

	var capturedClaims *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()

	middleware(captureClaims(&capturedClaims)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "sess-1", capturedClaims.SessionID())
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	middleware := AuthMiddleware(newTestTokenService(), newSessionGateway())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	middleware := AuthMiddleware(newTestTokenService(), newSessionGateway())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()

	middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, -time.Minute)
	middleware := AuthMiddleware(tokens, newSessionGateway())

	token, _, err := tokens.Issue("sess-1", "user-123", "test@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_WrongSignature(t *testing.T) {
	other := auth.NewTokenService("another-secret-key-that-is-32-chars", 15*time.Minute)
	token, _, err := other.Issue("sess-1", "user-123", "test@example.com")
	require.NoError(t, err)

	middleware := AuthMiddleware(newTestTokenService(), newSessionGateway())

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_SignedOutSession(t *testing.T) {
	tokens := newTestTokenService()
	gw := newSessionGateway()
	middleware := AuthMiddleware(tokens, gw)

	token, _, err := tokens.Issue("sess-1", "user-123", "test@example.com")
	require.NoError(t, err)
	require.NoError(t, gw.SignOut(context.Background(), "sess-1"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "session ended")
}

func TestAuthMiddleware_SessionLookupFails(t *testing.T) {
	tokens := newTestTokenService()
	gw := newSessionGateway()
	gw.GetSessionErr = errors.New("connection refused")
	middleware := AuthMiddleware(tokens, gw)

	token, _, err := tokens.Issue("sess-1", "user-123", "test@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAuthMiddleware_CookieTakesPrecedence(t *testing.T) {
	tokens := newTestTokenService()
	gw := newSessionGateway()
	gw.SeedSession(gateway.Session{ID: "sess-2", UserID: "header-user", ExpiresAt: time.Now().Add(time.Hour)})
	middleware := AuthMiddleware(tokens, gw)

	cookieToken, _, _ := tokens.Issue("sess-1", "user-123", "test@example.com")
	headerToken, _, _ := tokens.Issue("sess-2", "header-user", "header@example.com")

	var capturedClaims *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+headerToken)
	rec := httptest.NewRecorder()

	middleware(captureClaims(&capturedClaims)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "user-123", capturedClaims.UserID)
}

// ============================================
// Optional Auth Middleware Tests
// ============================================

func TestOptionalAuthMiddleware_ValidToken(t *testing.T) {
	tokens := newTestTokenService()
	middleware := OptionalAuthMiddleware(tokens, newSessionGateway())

	token, _, _ := tokens.Issue("sess-1", "user-123", "test@example.com")

	var capturedClaims *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(captureClaims(&capturedClaims)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capturedClaims)
	assert.Equal(t, "user-123", capturedClaims.UserID)
}

func TestOptionalAuthMiddleware_NoOrBadToken(t *testing.T) {
	middleware := OptionalAuthMiddleware(newTestTokenService(), newSessionGateway())

	for _, header := range []string{"", "Bearer garbage"} {
		var capturedClaims *auth.Claims
		req := httptest.NewRequest(http.MethodGet, "/optional", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()

		middleware(captureClaims(&capturedClaims)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, capturedClaims)
	}
}

// ============================================
// Helper Tests
// ============================================

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(req))
}

func TestGetSessionID_NoClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetSessionID(req.Context()))
}
