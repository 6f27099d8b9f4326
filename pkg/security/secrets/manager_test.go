package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ailife-hq/fortune-proxy/pkg/config"
)

type staticProvider struct {
	name      string
	values    map[string]string
	calls     int
	refreshes int
	failWith  error
}

func (p *staticProvider) GetSecret(_ context.Context, name string) (string, error) {
	p.calls++
	if p.failWith != nil {
		return "", p.failWith
	}
	if v, ok := p.values[name]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (p *staticProvider) ListSecrets(context.Context) ([]string, error) {
	var names []string
	for k := range p.values {
		names = append(names, k)
	}
	return names, nil
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) Refresh(context.Context) error {
	p.refreshes++
	return nil
}

func TestManager_ProviderOrder(t *testing.T) {
	first := &staticProvider{name: "first", values: map[string]string{"a": "from-first"}}
	second := &staticProvider{name: "second", values: map[string]string{"a": "from-second", "b": "only-second"}}
	m := NewManager([]Provider{first, second}, nil, nil)

	ctx := context.Background()
	if v, _ := m.GetSecret(ctx, "a"); v != "from-first" {
		t.Errorf("a = %q, want from-first", v)
	}
	if v, _ := m.GetSecret(ctx, "b"); v != "only-second" {
		t.Errorf("b = %q, want only-second", v)
	}
	if _, err := m.GetSecret(ctx, "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("c error = %v, want ErrNotFound", err)
	}
}

func TestManager_Cache(t *testing.T) {
	p := &staticProvider{name: "p", values: map[string]string{"a": "1"}}
	m := NewManager([]Provider{p}, NewCache(time.Minute), nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := m.GetSecret(ctx, "a"); err != nil {
			t.Fatal(err)
		}
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}

	if err := m.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if p.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", p.refreshes)
	}
	_, _ = m.GetSecret(ctx, "a")
	if p.calls != 2 {
		t.Errorf("provider calls after refresh = %d, want 2", p.calls)
	}
}

func TestManager_ResolveReferences(t *testing.T) {
	p := &staticProvider{name: "p", values: map[string]string{"workflow-token": "tok"}}
	m := NewManager([]Provider{p}, nil, nil)
	ctx := context.Background()

	got, err := m.ResolveReferences(ctx, "Bearer ${secret:workflow-token}")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Bearer tok" {
		t.Errorf("ResolveReferences() = %q", got)
	}

	got, err = m.ResolveReferences(ctx, "${secret:missing}")
	if err == nil {
		t.Fatal("expected error for missing reference")
	}
	if got != "${secret:missing}" {
		t.Errorf("unresolved reference rewritten to %q", got)
	}

	if got, err := m.ResolveReferences(ctx, "plain"); err != nil || got != "plain" {
		t.Errorf("plain value = %q, %v", got, err)
	}
}

func TestManager_ProviderFailure(t *testing.T) {
	broken := &staticProvider{name: "broken", failWith: errors.New("backend down")}
	m := NewManager([]Provider{broken}, nil, nil)

	_, err := m.GetSecret(context.Background(), "a")
	if err == nil || !strings.Contains(err.Error(), "backend down") {
		t.Errorf("error = %v, want backend failure", err)
	}
}

func TestManager_ListSecrets(t *testing.T) {
	m := NewManager([]Provider{
		&staticProvider{name: "a", values: map[string]string{"x": "1", "y": "2"}},
		&staticProvider{name: "b", values: map[string]string{"y": "3", "z": "4"}},
	}, nil, nil)

	names, err := m.ListSecrets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, names); diff != "" {
		t.Errorf("ListSecrets() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewManagerFromConfig(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "workflow-token", "from-file", 0o600)
	t.Setenv("FORTUNE_SECRET_OVERRIDE", "from-env")

	m, err := NewManagerFromConfig(config.SecretsConfig{
		EnvPrefix: "FORTUNE_SECRET_",
		FileDir:   dir,
		CacheTTL:  time.Minute,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	ctx := context.Background()
	if v, err := m.GetSecret(ctx, "workflow-token"); err != nil || v != "from-file" {
		t.Errorf("workflow-token = %q, %v", v, err)
	}
	if v, err := m.GetSecret(ctx, "override"); err != nil || v != "from-env" {
		t.Errorf("override = %q, %v", v, err)
	}
}

func TestTokenSource(t *testing.T) {
	p := &staticProvider{name: "p", values: map[string]string{"workflow-token": "resolved"}}
	m := NewManager([]Provider{p}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		manager *Manager
		value   string
		want    string
		wantErr bool
	}{
		{name: "literal", manager: m, value: "literal-token", want: "literal-token"},
		{name: "reference", manager: m, value: "${secret:workflow-token}", want: "resolved"},
		{name: "missing reference", manager: m, value: "${secret:absent}", wantErr: true},
		{name: "empty", manager: m, value: "  ", wantErr: true},
		{name: "reference without manager", value: "${secret:workflow-token}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTokenSource(tt.manager, tt.value).Token(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Token() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Token() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenSource_PicksUpRotation(t *testing.T) {
	p := &staticProvider{name: "p", values: map[string]string{"workflow-token": "v1"}}
	m := NewManager([]Provider{p}, nil, nil)
	ts := NewTokenSource(m, "${secret:workflow-token}")

	ctx := context.Background()
	if v, _ := ts.Token(ctx); v != "v1" {
		t.Fatalf("first token = %q", v)
	}
	p.values["workflow-token"] = "v2"
	if v, _ := ts.Token(ctx); v != "v2" {
		t.Errorf("rotated token = %q, want v2", v)
	}
}

func TestRefresher(t *testing.T) {
	p := &staticProvider{name: "p"}
	m := NewManager([]Provider{p}, nil, nil)

	if err := NewRefresher(m, "not a schedule").Start(context.Background()); err == nil {
		t.Error("expected error for an invalid schedule")
	}

	idle := NewRefresher(m, "")
	if err := idle.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !idle.NextRun().IsZero() {
		t.Error("empty schedule should not schedule anything")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRefresher(m, "*/5 * * * *")
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	deadline := time.Now().Add(time.Second)
	for r.NextRun().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	next := r.NextRun()
	if next.IsZero() || next.Sub(time.Now()) > 5*time.Minute+time.Second {
		t.Errorf("NextRun() = %v", next)
	}
}
