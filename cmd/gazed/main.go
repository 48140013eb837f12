// Package main implements gazed, the pattern scanning service daemon.
// It connects one Gaze Service component to a NATS bus and exposes
// health and metrics over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/gaze/component"
	"github.com/c360/gaze/config"
	"github.com/c360/gaze/gaze"
	"github.com/c360/gaze/health"
	"github.com/c360/gaze/metric"
	"github.com/c360/gaze/natsclient"
)

const (
	Version = "1.0.0"
	appName = "gazed"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("gazed failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader("GAZE").Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// CLI flags take precedence over the file's log settings.
	cfg.Log.Level = cliCfg.LogLevel
	cfg.Log.Format = cliCfg.LogFormat

	if cliCfg.Validate {
		slog.Info("configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("starting gazed",
		"version", Version,
		"identity", cfg.Platform.ID,
		"data_dir", cfg.Gaze.DataDir,
		"nats_urls", cfg.NATS.URLs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()

	natsClient, err := setupNATSClient(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = natsClient.Close(closeCtx)
	}()

	svc, err := gaze.New(gaze.Config{
		Identity:    cfg.Platform.ID,
		DataDir:     cfg.Gaze.DataDir,
		MailboxSize: cfg.Gaze.MailboxSize,
		Subjects:    subjectsFromConfig(cfg.Gaze.Subjects),
	}, component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create gaze service: %w", err)
	}

	if err := svc.Initialize(); err != nil {
		return fmt.Errorf("initialize gaze service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start gaze service: %w", err)
	}

	monitor := health.NewMonitor()
	healthSrv := startHealthServer(cliCfg.HealthPort, monitor, metricsRegistry)

	// Keep the monitor current while we wait for a signal.
	done := make(chan struct{})
	go pollHealth(ctx, done, monitor, svc)

	<-ctx.Done()
	slog.Info("shutdown signal received")
	close(done)

	if healthSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}

	if err := svc.Stop(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("stop gaze service: %w", err)
	}

	slog.Info("gazed stopped cleanly")
	return nil
}

// setupNATSClient builds and connects the bus client. Connection failure
// at startup is fatal; the supervisor restarts the process.
func setupNATSClient(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithName(cfg.Platform.ID),
		natsclient.WithReconnect(cfg.NATS.MaxReconnects, cfg.NATS.ReconnectWait),
		natsclient.WithMetrics(registry.CoreMetrics()),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if cfg.Security.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(cfg.Security.TLS))
	}

	natsClient, err := natsclient.NewClient(cfg.NATS.URLs[0], opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	return natsClient, nil
}

func subjectsFromConfig(s config.SubjectsConfig) gaze.Subjects {
	return gaze.Subjects{
		OfferForScan:    s.OfferForScan,
		RefocusPatterns: s.RefocusPatterns,
		StatusCheck:     s.StatusCheck,
		MatchFound:      s.MatchFound,
		StatusResponse:  s.StatusResponse,
		CacheInvalidate: s.CacheInvalidate,
	}
}

// startHealthServer serves /healthz and /metrics. Port 0 disables it.
func startHealthServer(port int, monitor *health.Monitor, registry *metric.MetricsRegistry) *http.Server {
	if port == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", monitor.Handler(appName))
	mux.Handle("/metrics", registry.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server failed", "error", err)
		}
	}()

	slog.Info("health server listening", "port", port)
	return srv
}

// pollHealth mirrors the component's health into the HTTP monitor.
func pollHealth(ctx context.Context, done <-chan struct{}, monitor *health.Monitor, svc *gaze.Service) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	update := func() {
		monitor.Update("gaze-service", health.FromComponentHealth("gaze-service", svc.Health()))
	}
	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			update()
		}
	}
}
