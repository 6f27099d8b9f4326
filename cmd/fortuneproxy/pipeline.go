package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"ailife-hq/fortune-proxy/pkg/config"
	"ailife-hq/fortune-proxy/pkg/proxy"
	"ailife-hq/fortune-proxy/pkg/security/secrets"
	"ailife-hq/fortune-proxy/pkg/telemetry/metrics"
	"ailife-hq/fortune-proxy/pkg/telemetry/tracing"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

// pipeline is everything between an accepted request and the workflow API.
type pipeline struct {
	secrets   *secrets.Manager
	refresher *secrets.Refresher
	token     *secrets.TokenSource
	tracer    *tracing.Tracer
	metrics   *metrics.Collector
	client    *workflow.Client
	forwarder *proxy.Forwarder
}

type pipelineOptions struct {
	// telemetry enables the metrics collector and the tracer. Without it
	// the pipeline records to recorder only.
	telemetry bool
	recorder  proxy.Recorder
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts pipelineOptions) (*pipeline, error) {
	p := &pipeline{}
	if err := p.build(ctx, cfg, logger, opts); err != nil {
		_ = p.Close(context.Background())
		return nil, err
	}
	return p, nil
}

func (p *pipeline) build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts pipelineOptions) error {
	var err error

	p.secrets, err = secrets.NewManagerFromConfig(cfg.Secrets, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}
	if cfg.Secrets.RefreshSchedule != "" {
		p.refresher = secrets.NewRefresher(p.secrets, cfg.Secrets.RefreshSchedule)
		if err := p.refresher.Start(ctx); err != nil {
			return err
		}
	}
	p.token = secrets.NewTokenSource(p.secrets, cfg.Upstream.Token)

	var (
		observer workflow.Observer
		tracer   trace.Tracer
	)
	recorder := opts.recorder
	if opts.telemetry {
		p.tracer, err = tracing.New(cfg.Telemetry.Tracing, Version)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		tracer = p.tracer.Tracer()

		p.metrics = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
		observer = p.metrics
		if recorder == nil {
			recorder = p.metrics
		}
	}

	mode, err := workflow.ParseMode(cfg.Upstream.Mode)
	if err != nil {
		return err
	}

	p.client, err = workflow.NewClient(workflow.Options{
		BaseURL:       cfg.Upstream.BaseURL,
		SyncPath:      cfg.Upstream.SyncPath,
		StreamPath:    cfg.Upstream.StreamPath,
		WorkflowID:    cfg.Upstream.WorkflowID,
		UserAgent:     cfg.Upstream.UserAgent,
		Credentials:   p.token,
		SyncTimeout:   cfg.Upstream.SyncTimeout,
		StreamTimeout: cfg.Upstream.StreamTimeout,
		Logger:        logger,
		Tracer:        tracer,
		Observer:      observer,
	})
	if err != nil {
		return fmt.Errorf("failed to create workflow client: %w", err)
	}

	p.forwarder = proxy.NewForwarder(proxy.ForwarderOptions{
		Runner:      p.client,
		DefaultMode: mode,
		MaxRetries:  cfg.Upstream.MaxRetries,
		BaseBackoff: cfg.Upstream.BaseBackoff,
		Logger:      logger,
		Recorder:    recorder,
	})
	return nil
}

// Close stops background work and flushes spans.
func (p *pipeline) Close(ctx context.Context) error {
	var errs []error
	if p.refresher != nil {
		p.refresher.Stop()
	}
	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	if p.secrets != nil {
		errs = append(errs, p.secrets.Close())
	}
	return errors.Join(errs...)
}
