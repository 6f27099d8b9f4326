package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"ailife-hq/fortune-proxy/pkg/cli"
	"ailife-hq/fortune-proxy/pkg/config"
	"ailife-hq/fortune-proxy/pkg/security/secrets"
)

var validateFlags struct {
	checkToken bool
	output     string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration with environment overrides and report problems.

With --check-token the workflow token is also resolved through the secret
providers. The token value is never printed.

Examples:
  # Validate config.yaml in the working directory
  fortuneproxy validate

  # Validate and resolve the token, as JSON
  fortuneproxy validate --config prod.yaml --check-token --output json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.checkToken, "check-token", false, "resolve the workflow token")
	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json")
}

// Token source kinds reported by validate.
const (
	tokenMissing   = "missing"
	tokenLiteral   = "literal"
	tokenReference = "reference"
)

type validateReport struct {
	ConfigFile    string   `json:"config_file"`
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Upstream      string   `json:"upstream,omitempty"`
	WorkflowID    string   `json:"workflow_id,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	TokenSource   string   `json:"token_source,omitempty"`
	TokenResolved *bool    `json:"token_resolved,omitempty"`
	Secrets       []string `json:"secrets,omitempty"`
}

// Text renders the report for a terminal.
func (r validateReport) Text() string {
	var sb strings.Builder
	source := r.ConfigFile
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(&sb, "Configuration: %s\n", source)

	if !r.Valid {
		sb.WriteString("✗ Configuration invalid\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e)
		}
		return sb.String()
	}

	sb.WriteString("✓ Configuration valid\n")
	fmt.Fprintf(&sb, "  upstream:    %s\n", r.Upstream)
	fmt.Fprintf(&sb, "  workflow_id: %s\n", r.WorkflowID)
	fmt.Fprintf(&sb, "  mode:        %s\n", r.Mode)
	fmt.Fprintf(&sb, "  token:       %s\n", r.TokenSource)
	if r.TokenResolved != nil {
		if *r.TokenResolved {
			sb.WriteString("✓ Workflow token resolved\n")
		} else {
			sb.WriteString("✗ Workflow token could not be resolved\n")
		}
	}
	if len(r.Secrets) > 0 {
		fmt.Fprintf(&sb, "  secrets:     %s\n", strings.Join(r.Secrets, ", "))
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "! %s\n", w)
	}
	return sb.String()
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.output)
	if err != nil {
		return err
	}
	formatter, err := cli.NewFormatter(format)
	if err != nil {
		return err
	}

	path, err := configPath(cmd)
	if err != nil {
		return err
	}

	report, err := buildReport(cmd.Context(), path, validateFlags.checkToken)
	if ferr := formatter.FormatTo(cmd.OutOrStdout(), report); ferr != nil {
		return ferr
	}
	return err
}

func buildReport(ctx context.Context, path string, checkToken bool) (validateReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report := validateReport{ConfigFile: path}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				report.Errors = append(report.Errors, fe.Error())
			}
		} else {
			report.Errors = []string{err.Error()}
		}
		return report, cli.NewConfigError("", "configuration invalid")
	}

	report.Valid = true
	report.Upstream = cfg.Upstream.BaseURL
	report.WorkflowID = cfg.Upstream.WorkflowID
	report.Mode = cfg.Upstream.Mode

	token := strings.TrimSpace(cfg.Upstream.Token)
	switch {
	case token == "":
		report.TokenSource = tokenMissing
		report.Warnings = append(report.Warnings, "upstream.token is empty; every call will fail with auth_error")
	case secrets.HasReferences(token):
		report.TokenSource = tokenReference
	default:
		report.TokenSource = tokenLiteral
		report.Warnings = append(report.Warnings, "upstream.token is a literal; use ${secret:workflow-token} and inject the value")
	}

	if !checkToken {
		return report, nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose {
		logger = slog.Default()
	}
	manager, err := secrets.NewManagerFromConfig(cfg.Secrets, logger)
	if err != nil {
		return report, cli.NewCommandError("validate", err)
	}
	defer manager.Close()

	if names, err := manager.ListSecrets(ctx); err == nil {
		report.Secrets = names
	}

	_, tokenErr := secrets.NewTokenSource(manager, token).Token(ctx)
	resolved := tokenErr == nil
	report.TokenResolved = &resolved
	if tokenErr != nil {
		return report, cli.NewCommandError("validate", fmt.Errorf("workflow token: %w", tokenErr))
	}
	return report, nil
}
