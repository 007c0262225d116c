package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func newTestTokenService() *TokenService {
	return NewTokenService(testSecret, 15*time.Minute)
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	service := newTestTokenService()

	token, expiresAt, err := service.Issue("sess-1", "user-1", "ana@example.com")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := service.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID())
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestTokenService_Validate_Expired(t *testing.T) {
	service := newTestTokenService()
	service.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := service.Issue("sess-1", "user-1", "ana@example.com")
	require.NoError(t, err)

	service.now = time.Now
	_, err = service.Validate(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenService_Validate_Garbage(t *testing.T) {
	service := newTestTokenService()

	for _, token := range []string{"", "not.a.token", "a.b"} {
		_, err := service.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestTokenService_Validate_WrongSecret(t *testing.T) {
	other := NewTokenService("a-completely-different-secret-value!!", time.Minute)
	token, _, err := other.Issue("sess-1", "user-1", "ana@example.com")
	require.NoError(t, err)

	_, err = newTestTokenService().Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Validate_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: "user-1", RegisteredClaims: jwt.RegisteredClaims{
		ID:        "sess-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestTokenService().Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Validate_MissingSessionID(t *testing.T) {
	claims := Claims{UserID: "user-1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestTokenService().Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}
