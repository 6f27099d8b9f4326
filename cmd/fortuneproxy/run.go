package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ailife-hq/fortune-proxy/pkg/cli"
	"ailife-hq/fortune-proxy/pkg/config"
	"ailife-hq/fortune-proxy/pkg/server"
	"ailife-hq/fortune-proxy/pkg/telemetry/health"
	"ailife-hq/fortune-proxy/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	mode          string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the fortune proxy server",
	Long: `Start the fortune proxy server with the specified configuration.

The server accepts birth data on the configured path, forwards it to the
workflow API and answers with a normalized envelope. The workflow token is
read from upstream.token, normally a ${secret:workflow-token} reference
resolved from FORTUNE_SECRET_WORKFLOW_TOKEN or a mounted secret file.

Examples:
  # Start with config.yaml from the working directory
  fortuneproxy run

  # Start with a custom config
  fortuneproxy run --config /etc/fortuneproxy/config.yaml

  # Override listen address and default transport
  fortuneproxy run --listen 0.0.0.0:3000 --mode stream

  # Validate config without starting the server
  fortuneproxy run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.mode, "mode", "", "override default upstream mode (sync, stream)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if err := config.Initialize(path); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.mode != "" {
		cfg.Upstream.Mode = runFlags.mode
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	logger, err := logging.FromConfig(cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}
	printBanner(cmd, path, cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := newPipeline(ctx, cfg, logger, pipelineOptions{telemetry: true})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Proxy.ShutdownTimeout)
		defer cancel()
		if err := p.Close(shutdownCtx); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	checker := health.New(0)
	server.RegisterReadinessChecks(checker, cfg, p.token)

	srv := server.NewServer(server.Options{
		Config:    cfg,
		Forwarder: p.forwarder,
		Health:    checker,
		Metrics:   p.metrics,
		Tracer:    p.tracer,
		Logger:    logger,
		Build: server.BuildInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		},
	})

	fmt.Fprintf(out, "✓ Listening on %s, fortune endpoint %s\n", cfg.Proxy.ListenAddress, cfg.Proxy.Path)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func printBanner(cmd *cobra.Command, path string, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fortuneproxy v%s\n", Version)
	if path == "" {
		fmt.Fprintln(out, "Configuration from defaults and environment")
	} else {
		fmt.Fprintf(out, "Loading configuration from: %s\n", path)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")

	slog.Debug("upstream configured",
		"base_url", cfg.Upstream.BaseURL,
		"mode", cfg.Upstream.Mode,
		"max_retries", cfg.Upstream.MaxRetries,
		"sync_timeout", cfg.Upstream.SyncTimeout,
		"stream_timeout", cfg.Upstream.StreamTimeout,
	)
}
