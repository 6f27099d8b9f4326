package secrets

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyToken is returned when a credential resolves to nothing.
var ErrEmptyToken = errors.New("workflow token is not configured")

// TokenSource turns a configured token value into a credential for the
// workflow client. The value may be a literal or contain ${secret:name}
// references; it is resolved on every call.
type TokenSource struct {
	manager *Manager
	value   string
}

// NewTokenSource creates a TokenSource for value.
func NewTokenSource(manager *Manager, value string) *TokenSource {
	return &TokenSource{manager: manager, value: strings.TrimSpace(value)}
}

// Token returns the resolved token.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t.value == "" {
		return "", ErrEmptyToken
	}
	if !HasReferences(t.value) {
		return t.value, nil
	}
	if t.manager == nil {
		return "", errors.New("secret reference in token but no secret manager configured")
	}

	token, err := t.manager.ResolveReferences(ctx, t.value)
	if err != nil {
		return "", err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
