package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a provider that does not hold a secret.
var ErrNotFound = errors.New("secret not found")

// Provider is a source of secret values.
type Provider interface {
	// GetSecret returns the value of name, or an error wrapping
	// ErrNotFound if the provider does not hold it.
	GetSecret(ctx context.Context, name string) (string, error)

	// ListSecrets returns the names the provider currently holds.
	ListSecrets(ctx context.Context) ([]string, error)

	// Name identifies the provider in logs.
	Name() string
}

// RefreshableProvider can drop whatever it has loaded and reload lazily.
type RefreshableProvider interface {
	Provider
	Refresh(ctx context.Context) error
}
