// Package config defines all configuration for the scanner.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// overrides via ARB_* environment variables; venue API credentials come
// only from the environment and pass through to the executor.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"arb-scanner/internal/notify"
	"arb-scanner/internal/premium"
	"arb-scanner/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Logging  LoggingConfig          `mapstructure:"logging"`
	Detector premium.Config         `mapstructure:"detector"`
	Exec     ExecutionConfig        `mapstructure:"execution"`
	Notifier notify.Config          `mapstructure:"notifier"`
	API      APIConfig              `mapstructure:"api"`
	Wallet   WalletConfig           `mapstructure:"wallet"`
	Venues   map[string]VenueConfig `mapstructure:"venues"`

	// Credentials is populated from the environment, never from YAML.
	Credentials Credentials `mapstructure:"-"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// VenueConfig enables one venue and selects its pairs. Timing fields
// fall back to the shared defaults when zero.
type VenueConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	URL                  string   `mapstructure:"url"`
	Pairs                []string `mapstructure:"pairs"`
	ReconnectDelayMs     int64    `mapstructure:"reconnect_delay_ms"`
	MaxReconnectAttempts int      `mapstructure:"max_reconnect_attempts"`
	PingIntervalMs       int64    `mapstructure:"ping_interval_ms"`
	ConnectTimeoutMs     int64    `mapstructure:"connect_timeout_ms"`
	BreakerCooldownMs    int64    `mapstructure:"breaker_cooldown_ms"`
}

// ExecutionConfig passes through to the (out-of-scope) executor.
type ExecutionConfig struct {
	Mode           string  `mapstructure:"mode"`
	MaxPositionUSD float64 `mapstructure:"max_position_usd"`
	MaxSlippageBps int32   `mapstructure:"max_slippage_bps"`
	MinProfitBps   int32   `mapstructure:"min_profit_bps"`
}

// ParsedMode resolves the execution mode, defaulting to alert-only.
func (e ExecutionConfig) ParsedMode() types.ExecutionMode {
	if mode, ok := types.ParseExecutionMode(e.Mode); ok {
		return mode
	}
	return types.ModeAlertOnly
}

// APIConfig controls the read-only broadcast server.
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// WalletConfig controls the wallet-status refresher.
type WalletConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// Credentials are the venue API keys consumed by the executor; the core
// pipeline itself never needs them.
type Credentials struct {
	BinanceAPIKey    string
	BinanceSecret    string
	CoinbaseAPIKeyID string
	CoinbaseSecret   string // full PEM; the env var's \n escapes are unescaped on load
	UpbitAccessKey   string
	UpbitSecret      string
	BithumbAPIKey    string
	BithumbSecret    string
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{Detector: premium.DefaultConfig(), Notifier: notify.DefaultConfig()}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Credentials = Credentials{
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceSecret:    os.Getenv("BINANCE_API_SECRET"),
		CoinbaseAPIKeyID: os.Getenv("COINBASE_API_KEY_ID"),
		CoinbaseSecret:   strings.ReplaceAll(os.Getenv("COINBASE_SECRET_KEY"), `\n`, "\n"),
		UpbitAccessKey:   os.Getenv("UPBIT_ACCESS_KEY"),
		UpbitSecret:      os.Getenv("UPBIT_SECRET"),
		BithumbAPIKey:    os.Getenv("BITHUMB_API_KEY"),
		BithumbSecret:    os.Getenv("BITHUMB_API_SECRET"),
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Detector.MinPremiumBps < 0 {
		return fmt.Errorf("detector.min_premium_bps must be >= 0")
	}
	if c.Detector.MaxStalenessMs == 0 {
		return fmt.Errorf("detector.max_staleness_ms must be > 0")
	}
	if c.Detector.ScanIntervalMs == 0 {
		return fmt.Errorf("detector.scan_interval_ms must be > 0")
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port must be a valid port")
	}

	enabled := 0
	for name, vc := range c.Venues {
		if !vc.Enabled {
			continue
		}
		enabled++
		if _, ok := types.ParseVenue(name); !ok {
			return fmt.Errorf("venues.%s: unknown venue", name)
		}
		if len(vc.Pairs) == 0 {
			return fmt.Errorf("venues.%s: at least one pair is required", name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no venues enabled")
	}
	return nil
}

// Duration converts a millisecond config value with a fallback.
func Duration(ms int64, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
