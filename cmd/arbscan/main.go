// arbscan continuously ingests order-book and trade data from overseas
// and Korean crypto venues, normalizes everything into USD, and emits
// cross-venue arbitrage opportunities gated on transfer feasibility.
//
// Architecture:
//
//	engine/engine.go    — orchestrator: wires clients → runners → handler → detector
//	exchange/ws.go      — per-venue WebSocket client with reconnect + circuit breaker
//	exchange/*.go       — per-venue wire-format adapters
//	feed/runner.go      — per-venue loop: frames → parsed ticks / connection events
//	feed/handler.go     — fan-in: KRW and stablecoin → USD conversion, state updates
//	state/              — shared price cache, order books, cross-rate registers
//	premium/            — premium matrix, detector, opportunity construction
//	transfer/           — wallet status + canonical networks, feasibility gate
//	notify/             — connection-status notifications (policy filtered)
//	api/                — read-only HTTP/WebSocket broadcast of state and batches
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"arb-scanner/internal/config"
	"arb-scanner/internal/engine"
)

var version = "dev"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "arbscan",
		Short:         "Cross-venue crypto premium scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	root.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default configs/config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
		if p := os.Getenv("ARB_CONFIG"); p != "" {
			cfgPath = p
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	logger.Info("arbscan started",
		"min_premium_bps", cfg.Detector.MinPremiumBps,
		"scan_interval_ms", cfg.Detector.ScanIntervalMs,
		"execution_mode", cfg.Exec.ParsedMode().String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
