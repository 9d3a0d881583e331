package ratelimit

import (
	"fmt"

	"github.com/nullboard/roomd/internal/v1/auth"
)

// MockValidator is a mock TokenValidator for testing.
type MockValidator struct {
	ValidateTokenFunc func(tokenString string) (*auth.ManagementClaims, error)
}

func (m *MockValidator) ValidateToken(tokenString string) (*auth.ManagementClaims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(tokenString)
	}
	return nil, fmt.Errorf("invalid token")
}
