package auth

import (
	"context"
	"errors"
)

// Static errors for err113 compliance.
var (
	ErrNoCredential = errors.New("no ledger credential configured")
)

// TokenManager supplies the credential sent with each ledger call.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
}

// StaticTokenManager serves a fixed API credential. Ledger credentials are
// long-lived, so there is nothing to refresh.
type StaticTokenManager struct {
	credential string
}

// NewStaticTokenManager returns a manager for credential.
func NewStaticTokenManager(credential string) *StaticTokenManager {
	return &StaticTokenManager{credential: credential}
}

// GetToken returns the credential, or ErrNoCredential when none is set.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	if m.credential == "" {
		return "", ErrNoCredential
	}

	return m.credential, nil
}
