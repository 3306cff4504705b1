package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"arb-scanner/pkg/types"
)

const sampleYAML = `
logging:
  level: debug
  format: json

detector:
  min_premium_bps: 50
  max_staleness_ms: 3000
  scan_interval_ms: 250

execution:
  mode: manual_approval
  max_position_usd: 10000

api:
  enabled: true
  port: 9000

wallet:
  refresh_interval: 2m

venues:
  binance:
    enabled: true
    pairs: [BTC, ETH]
    max_reconnect_attempts: 7
  upbit:
    enabled: true
    pairs: [BTC]
  gateio:
    enabled: false
    pairs: []
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Detector.MinPremiumBps != 50 || cfg.Detector.MaxStalenessMs != 3000 {
		t.Errorf("detector = %+v", cfg.Detector)
	}
	// Unset detector keys keep their defaults.
	if cfg.Detector.TradingFeeBps != 10 || cfg.Detector.GasCostBps != 5 {
		t.Errorf("detector defaults lost: %+v", cfg.Detector)
	}
	if cfg.Exec.ParsedMode() != types.ModeManualApproval {
		t.Errorf("mode = %v", cfg.Exec.ParsedMode())
	}
	if cfg.Wallet.RefreshInterval != 2*time.Minute {
		t.Errorf("refresh interval = %v", cfg.Wallet.RefreshInterval)
	}
	if !cfg.Venues["binance"].Enabled || cfg.Venues["binance"].MaxReconnectAttempts != 7 {
		t.Errorf("binance venue = %+v", cfg.Venues["binance"])
	}
	if cfg.Venues["gateio"].Enabled {
		t.Error("gateio should be disabled")
	}
}

func TestValidateRejectsNoVenues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
detector:
  max_staleness_ms: 5000
  scan_interval_ms: 100
venues:
  binance:
    enabled: false
    pairs: [BTC]
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error with no enabled venues")
	}
}

func TestValidateRejectsUnknownVenue(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
detector:
  max_staleness_ms: 5000
  scan_interval_ms: 100
venues:
  mtgox:
    enabled: true
    pairs: [BTC]
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown venue")
	}
}

func TestValidateRejectsVenueWithoutPairs(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
detector:
  max_staleness_ms: 5000
  scan_interval_ms: 100
venues:
  binance:
    enabled: true
    pairs: []
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty pairs")
	}
}

func TestExecutionModeDefaultsToAlertOnly(t *testing.T) {
	var e ExecutionConfig
	if e.ParsedMode() != types.ModeAlertOnly {
		t.Errorf("default mode = %v", e.ParsedMode())
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration(0, time.Second); got != time.Second {
		t.Errorf("fallback = %v", got)
	}
	if got := Duration(1500, time.Second); got != 1500*time.Millisecond {
		t.Errorf("explicit = %v", got)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "k")
	t.Setenv("COINBASE_SECRET_KEY", `line1\nline2`)

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Credentials.BinanceAPIKey != "k" {
		t.Error("binance key not picked up")
	}
	if cfg.Credentials.CoinbaseSecret != "line1\nline2" {
		t.Error("escaped newlines must be unescaped")
	}
}
