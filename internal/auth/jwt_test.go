package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func TestSign_Success(t *testing.T) {
	token, expiresAt, err := Sign(testSecret, "user-123", "test@example.com", "customer", 15*time.Minute)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
}

func TestVerifier_Verify_Valid(t *testing.T) {
	verifier := NewVerifier(testSecret)

	token, expiresAt, err := Sign(testSecret, "user-456", "test@example.com", "admin", 15*time.Minute)
	require.NoError(t, err)

	claims, err := verifier.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, "user-456", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "user-456", claims.Subject)
	assert.WithinDuration(t, expiresAt, claims.Expiry(), time.Second)
}

func TestVerifier_Verify_Expired(t *testing.T) {
	verifier := NewVerifier(testSecret)

	token, _, err := Sign(testSecret, "user-123", "test@example.com", "customer", -time.Minute)
	require.NoError(t, err)

	claims, err := verifier.Verify(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestVerifier_Verify_Invalid(t *testing.T) {
	verifier := NewVerifier(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := verifier.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestVerifier_Verify_WrongSignature(t *testing.T) {
	verifier := NewVerifier("secret-key-2-secret-key-2-secret-key-2")

	token, _, err := Sign("secret-key-1-secret-key-1-secret-key-1", "user-123", "test@example.com", "customer", time.Minute)
	require.NoError(t, err)

	claims, err := verifier.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestVerifier_Verify_WrongAlgorithm(t *testing.T) {
	verifier := NewVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "user-123",
		Email:  "test@example.com",
		Role:   "customer",
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := verifier.Verify(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestVerifier_Verify_SubjectFallback(t *testing.T) {
	verifier := NewVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-789",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	tokenString, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	claims, err := verifier.Verify(tokenString)

	require.NoError(t, err)
	assert.Equal(t, "user-789", claims.UserID)
	assert.Empty(t, claims.Role)
}

func TestVerifier_Verify_MissingUser(t *testing.T) {
	verifier := NewVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	tokenString, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = verifier.Verify(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_ExpiryMissing(t *testing.T) {
	assert.True(t, (&Claims{}).Expiry().IsZero())
}
