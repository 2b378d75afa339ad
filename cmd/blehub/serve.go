package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/blehub/internal/diag"
	"github.com/srg/blehub/internal/manager"
	"github.com/srg/blehub/internal/scanner"
	"github.com/srg/blehub/internal/telemetry"
	"github.com/srg/blehub/internal/transport/goble"
	"github.com/srg/blehub/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the aggregation service",
	Long: `Run the long-lived advertisement aggregation service.

The service scans continuously, merges advertisements per device, expires
silent devices and exposes the aggregated state over an HTTP diagnostics
API together with Prometheus metrics.`,
	RunE: runServe,
}

var serveConfigPath string

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to YAML config file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.DefaultConfig()
	if serveConfigPath != "" {
		loaded, err := config.Load(serveConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// --log-level wins over the config file.
	if flagLevel, _ := cmd.Flags().GetString("log-level"); flagLevel != "" {
		cfg.LogLevel = flagLevel
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	telemetry.InitMetrics()

	transport, err := goble.New(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize BLE adapter: %w", err)
	}
	defer func() { _ = transport.Stop() }()

	mgr := manager.New(logger, nil)
	local := scanner.NewRemoteScanner("local", mgr.AdvertisementCallback(), transport, true, logger, nil)
	unregister, err := mgr.RegisterScanner(local, cfg.ConnectionSlots)
	if err != nil {
		return err
	}
	defer unregister()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("Shutting down")
		cancel()
	}()

	sweepCancel := local.Setup(ctx)
	defer sweepCancel()

	mgr.Setup(ctx)
	defer mgr.Teardown()

	server := diag.NewServer(cfg.DiagnosticsAddr, mgr, logger)
	server.Start(ctx)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.WithField("diagnostics", cfg.DiagnosticsAddr).Info("Aggregation service started")
	return transport.Run(ctx, local)
}
