package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wwyf/eRPC/internal/config"
	"github.com/wwyf/eRPC/internal/metrics"
	"github.com/wwyf/eRPC/internal/nexus"
	"github.com/wwyf/eRPC/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "nexusd"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("config_path", *configPath),
	)
	logger.Info("Configuration loaded",
		slog.Int("mgmt_udp_port", cfg.Nexus.MgmtUDPPort),
		slog.String("bind_address", cfg.Nexus.BindAddress),
		slog.Int("num_bg_workers", cfg.Nexus.NumBgWorkers),
		slog.Float64("udp_drop_prob", cfg.Nexus.UDPDropProb),
		slog.String("log_level", cfg.Logging.Level),
	)

	appMetrics := metrics.New()

	nx, err := nexus.New(cfg.NexusConfig(), logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create nexus", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, nx)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("sm_addr", nx.LocalAddr().String()),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
		shutdownCancel()
	}

	if err := nx.Close(); err != nil {
		logger.Error("Error stopping nexus", slog.String("error", err.Error()))
	}

	stats := nx.Stats()
	logger.Info("Final nexus statistics",
		slog.Uint64("sm_packets_received", stats.SMPacketsReceived),
		slog.Uint64("sm_packets_dropped", stats.SMPacketsDropped),
		slog.Uint64("sm_packets_routed", stats.SMPacketsRouted),
		slog.Uint64("sm_packets_unroutable", stats.SMPacketsUnroutable),
		slog.Uint64("work_items_processed", stats.WorkItemsProcessed),
	)

	logger.Info("Service stopped")
}

// initLogger creates the structured logger from the logging configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
