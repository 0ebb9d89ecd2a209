package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360studio/webmill/config"
	webpipeline "github.com/c360studio/webmill/processor/web-pipeline"
)

func serveCmd(configPath, logLevel *string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion pipeline as a NATS stream processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)
			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return err
			}
			if cfg.NATS.URL == "" {
				return fmt.Errorf("nats.url must be configured for serve mode")
			}

			ctx, cancel := signalContext()
			defer cancel()

			return serve(ctx, cfg, *configPath, metricsAddr, logger)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address for the Prometheus metrics endpoint")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, configPath, metricsAddr string, logger *slog.Logger) error {
	svc, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	natsClient, err := connectToNATS(ctx, cfg.NATS.URL, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	// Build the processor component directly; serve mode hosts exactly one.
	componentCfg, err := json.Marshal(webpipeline.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal component config: %w", err)
	}
	discoverable, err := webpipeline.NewComponent(componentCfg, component.Dependencies{
		NATSClient: natsClient,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create web-pipeline component: %w", err)
	}
	proc := discoverable.(*webpipeline.Component)
	proc.SetConverter(svc.pipeline)

	if err := proc.Initialize(); err != nil {
		return fmt.Errorf("initialize component: %w", err)
	}
	if err := proc.Start(ctx); err != nil {
		return fmt.Errorf("start component: %w", err)
	}
	defer func() {
		if err := proc.Stop(10 * time.Second); err != nil {
			logger.Warn("component stop", "error", err)
		}
	}()

	watchConfig(ctx, configPath, logger)
	startMetricsServer(ctx, metricsAddr, svc, logger)

	logger.Info("Webmill serving",
		"version", Version,
		"nats_url", cfg.NATS.URL,
		"metrics_addr", metricsAddr)

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

func connectToNATS(ctx context.Context, url string, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("wait for NATS connection at %s: %w", url, err)
	}

	logger.Info("Connected to NATS", "url", url)
	return client, nil
}

// watchConfig starts hot reload for an explicitly passed config file.
// Browser and NATS settings need a restart; reloads are logged so operators
// can tell which changes took effect.
func watchConfig(ctx context.Context, configPath string, logger *slog.Logger) {
	if configPath == "" {
		return
	}
	watcher, err := config.NewWatcher(configPath, logger)
	if err != nil {
		logger.Warn("config watcher unavailable", "error", err)
		return
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start", "error", err)
		return
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher.Updates():
				logger.Info("config file changed, browser and NATS settings need a restart to apply")
			}
		}
	}()
}

// startMetricsServer exposes Prometheus metrics and a health probe.
func startMetricsServer(ctx context.Context, addr string, svc *services, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(svc.pipeline.Health())
	})

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
