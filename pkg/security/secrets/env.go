package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider reads secrets from environment variables. The secret name
// "workflow-token" maps to Prefix + "WORKFLOW_TOKEN".
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// GetSecret reads the variable for name. Empty values count as missing.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	key := p.envVar(name)
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", fmt.Errorf("%w in environment: %s (env var: %s)", ErrNotFound, name, key)
	}
	return value, nil
}

// ListSecrets returns the secret names of every prefixed variable.
func (p *EnvProvider) ListSecrets(context.Context) ([]string, error) {
	var names []string
	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, p.Prefix) || key == p.Prefix {
			continue
		}
		names = append(names, strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, p.Prefix), "_", "-")))
	}
	return names, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
