package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"ailife-hq/fortune-proxy/pkg/config"
)

var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// HasReferences reports whether s contains a ${secret:name} reference.
func HasReferences(s string) bool {
	return secretRefRegex.MatchString(s)
}

// Manager resolves secrets through an ordered provider chain.
type Manager struct {
	providers []Provider
	cache     *Cache
	logger    *slog.Logger
}

// NewManager creates a manager. Providers are consulted in order.
func NewManager(providers []Provider, cache *Cache, logger *slog.Logger) *Manager {
	if cache == nil {
		cache = NewCache(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: providers,
		cache:     cache,
		logger:    logger.With("component", "secrets"),
	}
}

// NewManagerFromConfig builds the environment provider and, if a
// directory is configured, the file provider. A watched file provider
// clears the manager cache on every change.
func NewManagerFromConfig(cfg config.SecretsConfig, logger *slog.Logger) (*Manager, error) {
	providers := []Provider{NewEnvProvider(cfg.EnvPrefix)}

	var files *FileProvider
	if cfg.FileDir != "" {
		var err error
		files, err = NewFileProvider(cfg.FileDir, cfg.Watch, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, files)
	}

	m := NewManager(providers, NewCache(cfg.CacheTTL), logger)
	if files != nil {
		files.OnChange(m.cache.Clear)
	}
	return m, nil
}

// GetSecret returns the first value any provider holds for name.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if value, ok := m.cache.Get(name); ok {
		return value, nil
	}

	var errs []error
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				m.logger.Warn("secret provider failed",
					"provider", p.Name(),
					"name", redactSecretName(name),
					"error", err,
				)
			}
			errs = append(errs, err)
			continue
		}

		m.cache.Set(name, value)
		m.logger.Debug("secret resolved",
			"provider", p.Name(),
			"name", redactSecretName(name),
		)
		return value, nil
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %q (no providers configured)", ErrNotFound, name)
	}
	return "", fmt.Errorf("failed to get secret %q: %w", name, errors.Join(errs...))
}

// ResolveReferences replaces every ${secret:name} in input. Unresolvable
// references are left in place and reported together.
func (m *Manager) ResolveReferences(ctx context.Context, input string) (string, error) {
	var errs []error
	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := secretRefRegex.FindStringSubmatch(match)[1]
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return value
	})
	if len(errs) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %w", errors.Join(errs...))
	}
	return output, nil
}

// Refresh refreshes every refreshable provider and clears the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error
	for _, p := range m.providers {
		refreshable, ok := p.(RefreshableProvider)
		if !ok {
			continue
		}
		if err := refreshable.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	m.cache.Clear()
	m.logger.Debug("secrets refreshed", "providers", len(m.providers))
	return errors.Join(errs...)
}

// ListSecrets returns the sorted union of every provider's names.
func (m *Manager) ListSecrets(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, p := range m.providers {
		names, err := p.ListSecrets(ctx)
		if err != nil {
			m.logger.Warn("failed to list secrets", "provider", p.Name(), "error", err)
			continue
		}
		for _, name := range names {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases providers that hold resources.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.providers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
