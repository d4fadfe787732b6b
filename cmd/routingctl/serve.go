package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dray-io/shardroute/internal/fragment"
	"github.com/dray-io/shardroute/internal/logging"
	"github.com/dray-io/shardroute/internal/metrics"
	"github.com/dray-io/shardroute/internal/server"
)

func (c *cli) runServe(args []string) error {
	fs := c.flagSet("serve", "serve [options]")
	configPath := fs.String("config", "", "Path to configuration file")
	listenAddr := fs.String("listen", "", "Override API listen address (e.g., :8470)")
	metricsAddr := fs.String("metrics-addr", "", "Override metrics address (e.g., :9090)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat)

	comp, err := fragment.ParseCompression(cfg.Codec.Compression)
	if err != nil {
		return err
	}

	codecMetrics := metrics.NewCodecMetrics()
	metricsServer := metrics.NewServer(cfg.Observability.MetricsAddr).WithLogger(logger)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("starting metrics server: %w", err)
	}
	defer metricsServer.Close()
	logger.Infof("metrics server listening", map[string]any{"addr": metricsServer.Addr()})

	api := server.New(server.Config{
		Addr:            cfg.Server.ListenAddr,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		MaxPayloadBytes: cfg.Codec.MaxPayloadBytes,
		Compression:     comp,
	}, codecMetrics, logger)
	api.RegisterHandler("/metrics", metricsServer.Handler())
	if err := api.Start(); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Infof("received shutdown signal", map[string]any{"signal": sig.String()})

	logger.Info("initiating graceful shutdown")
	if err := api.Close(); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
