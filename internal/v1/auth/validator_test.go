package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-very-long-secret-key-for-testing-purposes"

func signToken(t *testing.T, secret string, claims ManagementClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken_Valid(t *testing.T) {
	v := NewValidator(testSecret, "")
	tokenStr := signToken(t, testSecret, ManagementClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.ValidateToken(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.Subject)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	v := NewValidator(testSecret, "")
	tokenStr := signToken(t, "a-totally-different-and-also-long-enough-secret-value", ManagementClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "operator-1"},
	})

	_, err := v.ValidateToken(tokenStr)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	v := NewValidator(testSecret, "")
	tokenStr := signToken(t, testSecret, ManagementClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := v.ValidateToken(tokenStr)
	assert.Error(t, err)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	v := NewValidator(testSecret, "roomd")
	tokenStr := signToken(t, testSecret, ManagementClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "operator-1",
			Issuer:  "someone-else",
		},
	})

	_, err := v.ValidateToken(tokenStr)
	assert.Error(t, err)
}

func TestMockValidator_Default(t *testing.T) {
	m := &MockValidator{}
	claims, err := m.ValidateToken("anything")
	require.NoError(t, err)
	assert.Equal(t, "dev-operator", claims.Subject)
}
