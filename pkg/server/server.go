package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ailife-hq/fortune-proxy/pkg/config"
	"ailife-hq/fortune-proxy/pkg/proxy"
	"ailife-hq/fortune-proxy/pkg/proxy/handlers"
	"ailife-hq/fortune-proxy/pkg/proxy/middleware"
	"ailife-hq/fortune-proxy/pkg/telemetry/health"
	"ailife-hq/fortune-proxy/pkg/telemetry/metrics"
	"ailife-hq/fortune-proxy/pkg/telemetry/tracing"
)

// BuildInfo is reported by /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options holds the server's collaborators. Config and Forwarder are
// required; the rest may be nil.
type Options struct {
	Config    *config.Config
	Forwarder *proxy.Forwarder
	Health    *health.Checker
	Metrics   *metrics.Collector
	Tracer    *tracing.Tracer
	Logger    *slog.Logger
	Build     BuildInfo
}

// Server is the fortune proxy HTTP server.
type Server struct {
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server

	shutdownChan chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
	addr      net.Addr
}

// NewServer creates a server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Health == nil {
		opts.Health = health.New(0)
	}
	return &Server{
		opts:         opts,
		logger:       opts.Logger,
		shutdownChan: make(chan struct{}),
	}
}

// Start listens on proxy.listen_address and serves until ctx is
// cancelled, SIGINT or SIGTERM arrives, Stop is called, or the listener
// fails. It then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	cfg := s.opts.Config.Proxy

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.addr = listener.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting fortune proxy",
			"address", listener.Addr().String(),
			"path", cfg.Path,
			"metrics", s.metricsEnabled(),
			"tracing", s.opts.Tracer != nil && s.opts.Tracer.Enabled(),
		)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
	case err := <-errChan:
		s.markStopped()
		return err
	}
	return s.Shutdown(context.Background())
}

// Stop asks a running Start to shut down. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown gracefully shuts down the server, waiting at most
// proxy.shutdown_timeout for in-flight calls.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if !s.IsRunning() {
			return
		}
		timeout := s.opts.Config.Proxy.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
		s.markStopped()
		s.logger.Info("fortune proxy stopped")
	})

	return shutdownErr
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	cfg := s.opts.Config

	mux := http.NewServeMux()
	mux.Handle(cfg.Proxy.Path, handlers.NewFortuneHandler(s.opts.Forwarder, cfg.Proxy.MaxBodyBytes, s.logger))
	mux.Handle("/health", s.opts.Health.LivenessHandler())
	mux.Handle("/ready", s.opts.Health.ReadinessHandler())
	mux.Handle("/version", health.VersionHandler(s.opts.Build.Version, s.opts.Build.Commit, s.opts.Build.BuildTime))
	if s.metricsEnabled() {
		mux.Handle(cfg.Telemetry.Metrics.Path, s.opts.Metrics.Handler())
	}

	mws := []middleware.Middleware{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
	}
	if s.opts.Metrics != nil {
		mws = append(mws, middleware.InFlight(s.opts.Metrics))
	}
	mws = append(mws, middleware.CORS(cfg.Proxy.CORS))

	handler := middleware.Chain(mux, mws...)
	if s.opts.Tracer != nil {
		handler = tracing.HTTPMiddleware(s.opts.Tracer, handler)
	}
	return handler
}

func (s *Server) metricsEnabled() bool {
	return s.opts.Metrics != nil && s.opts.Metrics.Enabled()
}
