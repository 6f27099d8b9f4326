package server

import (
	"context"
	"errors"
	"fmt"

	"ailife-hq/fortune-proxy/pkg/config"
	"ailife-hq/fortune-proxy/pkg/telemetry/health"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

// ConfigCheck fails while the upstream workflow is not identified.
func ConfigCheck(cfg *config.Config) health.CheckFunc {
	return func(context.Context) error {
		if cfg.Upstream.WorkflowID == "" {
			return errors.New("upstream.workflow_id is not set")
		}
		return nil
	}
}

// CredentialsCheck fails while the workflow token cannot be resolved.
// The token itself is never reported.
func CredentialsCheck(creds workflow.Credentials) health.CheckFunc {
	return func(ctx context.Context) error {
		if creds == nil {
			return errors.New("no workflow credentials configured")
		}
		if _, err := creds.Token(ctx); err != nil {
			return fmt.Errorf("workflow token unavailable: %w", err)
		}
		return nil
	}
}

// RegisterReadinessChecks adds the checks /ready reports on.
func RegisterReadinessChecks(checker *health.Checker, cfg *config.Config, creds workflow.Credentials) {
	checker.RegisterCheck("config", ConfigCheck(cfg))
	checker.RegisterCheck("credentials", CredentialsCheck(creds))
}
