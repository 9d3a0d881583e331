// Package auth validates bearer tokens presented to the management HTTP
// surface. Unlike a per-user OIDC flow, the management API is protected by a
// single shared secret: operators mint an HS256 JWT with that secret and
// present it as a normal Authorization bearer token.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ManagementClaims identifies the operator presenting a management token.
type ManagementClaims struct {
	jwt.RegisteredClaims
}

// Validator validates management API bearer tokens against a static shared
// secret.
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator builds a Validator keyed by secret. issuer, if non-empty, is
// checked against the token's "iss" claim.
func NewValidator(secret, issuer string) *Validator {
	return &Validator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken parses and validates tokenString, returning its claims.
func (v *Validator) ValidateToken(tokenString string) (*ManagementClaims, error) {
	claims := &ManagementClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	return claims, nil
}

// MockValidator is a test double accepting every token and returning a fixed
// subject, mirroring the dev-mode validator pattern used elsewhere in this
// codebase.
type MockValidator struct {
	ValidateTokenFunc func(tokenString string) (*ManagementClaims, error)
}

func (m *MockValidator) ValidateToken(tokenString string) (*ManagementClaims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(tokenString)
	}
	return &ManagementClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "dev-operator"},
	}, nil
}
