// Package engine is the central orchestrator of the scanner.
//
// It wires together all subsystems:
//
//  1. One WebSocket client + feed runner per enabled venue.
//  2. A single feed handler fanning every runner into SharedState.
//  3. The premium detector scanning state on an interval.
//  4. Background workers: wallet-status refresher, USD/KRW reference
//     updater, status notifier.
//  5. The read-only broadcast API server.
//
// Lifecycle: New() → Start() → [runs until SIGINT] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"arb-scanner/internal/api"
	"arb-scanner/internal/config"
	"arb-scanner/internal/exchange"
	"arb-scanner/internal/feed"
	"arb-scanner/internal/notify"
	"arb-scanner/internal/premium"
	"arb-scanner/internal/rates"
	"arb-scanner/internal/state"
	"arb-scanner/internal/symbols"
	"arb-scanner/internal/transfer"
	"arb-scanner/pkg/types"
)

// venueSlot is one wired venue: its connection and its runner.
type venueSlot struct {
	client *exchange.Client
	runner *feed.Runner
}

// Engine owns the lifecycle of every goroutine in the pipeline.
type Engine struct {
	cfg      *config.Config
	state    *state.SharedState
	mappings *symbols.Mappings
	wallet   *transfer.WalletCache
	paths    *transfer.Paths
	detector *premium.Detector
	handler  *feed.Handler
	notifier *notify.Notifier
	rates    *rates.Updater
	refresh  *transfer.Refresher
	apiSrv   *api.Server
	slots    map[types.Venue]*venueSlot
	feedCh   chan types.FeedMessage
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes engine construction.
type Option func(*options)

type options struct {
	walletFetchers map[string]transfer.FetchFunc
	sender         notify.Sender
}

// WithWalletFetchers injects per-venue wallet-status fetchers (the
// authenticated REST calls live with the executor).
func WithWalletFetchers(f map[string]transfer.FetchFunc) Option {
	return func(o *options) { o.walletFetchers = f }
}

// WithStatusSender overrides the notification sender.
func WithStatusSender(s notify.Sender) Option {
	return func(o *options) { o.sender = s }
}

// New creates and wires all components.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	st := state.New()

	mappings, err := symbols.Load(symbols.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("load symbol mappings: %w", err)
	}

	wallet := transfer.NewWalletCache()
	networkMap := transfer.LoadDefaultNetworkMapping()
	if networkMap == nil {
		logger.Warn("no network_name_mapping.json found, falling back to raw network matching")
	}
	paths := transfer.NewPaths(wallet, networkMap)

	sender := o.sender
	if sender == nil {
		if tg := notify.TelegramFromEnv(); tg != nil {
			sender = tg
		}
	}
	notifier := notify.New(cfg.Notifier, sender, logger)

	handler := feed.NewHandler(st, mappings, notifier, logger)
	detector := premium.NewDetector(cfg.Detector, st, mappings, paths, logger)

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:      cfg,
		state:    st,
		mappings: mappings,
		wallet:   wallet,
		paths:    paths,
		detector: detector,
		handler:  handler,
		notifier: notifier,
		rates:    rates.NewUpdater(0, logger),
		refresh:  transfer.NewRefresher(wallet, o.walletFetchers, cfg.Wallet.RefreshInterval, logger),
		slots:    make(map[types.Venue]*venueSlot),
		feedCh:   make(chan types.FeedMessage, feed.HandlerBufferSize),
		logger:   logger.With("component", "engine"),
		ctx:      ctx,
		cancel:   cancel,
	}

	if cfg.API.Enabled {
		e.apiSrv = api.NewServer(api.Config{
			Port:           cfg.API.Port,
			AllowedOrigins: cfg.API.AllowedOrigins,
		}, st, detector, logger)
	}

	for name, vc := range cfg.Venues {
		if !vc.Enabled {
			continue
		}
		venue, ok := types.ParseVenue(name)
		if !ok {
			cancel()
			return nil, fmt.Errorf("unknown venue %q", name)
		}
		slot, err := e.buildSlot(venue, vc, logger)
		if err != nil {
			cancel()
			return nil, err
		}
		e.slots[venue] = slot
	}
	if len(e.slots) == 0 {
		cancel()
		return nil, fmt.Errorf("no venues enabled")
	}

	return e, nil
}

// buildSlot assembles one venue's client and runner.
func (e *Engine) buildSlot(venue types.Venue, vc config.VenueConfig, logger *slog.Logger) (*venueSlot, error) {
	adapter, err := adapterFor(venue)
	if err != nil {
		return nil, err
	}

	url := vc.URL
	if url == "" {
		url = defaultURL(venue)
	}

	wsCfg := exchange.DefaultVenueConfig(venue, url)
	wsCfg.ReconnectDelay = config.Duration(vc.ReconnectDelayMs, wsCfg.ReconnectDelay)
	if vc.MaxReconnectAttempts > 0 {
		wsCfg.MaxReconnectAttempts = vc.MaxReconnectAttempts
	}
	wsCfg.PingInterval = config.Duration(vc.PingIntervalMs, wsCfg.PingInterval)
	wsCfg.ConnectTimeout = config.Duration(vc.ConnectTimeoutMs, wsCfg.ConnectTimeout)
	wsCfg.BreakerCooldown = config.Duration(vc.BreakerCooldownMs, wsCfg.BreakerCooldown)
	wsCfg.SubscribeMessages = adapter.SubscribeMessages(vc.Pairs)

	client := exchange.NewClient(wsCfg, logger)
	runner := feed.NewRunner(adapter, client.Frames(), e.feedCh, logger)
	return &venueSlot{client: client, runner: runner}, nil
}

func adapterFor(venue types.Venue) (exchange.Adapter, error) {
	switch venue {
	case types.VenueBinance:
		return exchange.BinanceAdapter{}, nil
	case types.VenueBybit:
		return exchange.BybitAdapter{}, nil
	case types.VenueGateIO:
		return exchange.GateIOAdapter{}, nil
	case types.VenueCoinbase:
		return exchange.CoinbaseAdapter{}, nil
	case types.VenueUpbit:
		return exchange.UpbitAdapter{}, nil
	case types.VenueBithumb:
		return exchange.BithumbAdapter{}, nil
	default:
		return nil, fmt.Errorf("no adapter for venue %s", venue)
	}
}

func defaultURL(venue types.Venue) string {
	switch venue {
	case types.VenueBinance:
		return "wss://stream.binance.com:9443/stream"
	case types.VenueBybit:
		return "wss://stream.bybit.com/v5/public/spot"
	case types.VenueGateIO:
		return "wss://api.gateio.ws/ws/v4/"
	case types.VenueCoinbase:
		return "wss://advanced-trade-ws.coinbase.com"
	case types.VenueUpbit:
		return "wss://api.upbit.com/websocket/v1"
	case types.VenueBithumb:
		return "wss://ws-api.bithumb.com/websocket/v1"
	default:
		return ""
	}
}

// Start launches every goroutine.
func (e *Engine) Start() error {
	e.spawn(func() { e.handler.Run(e.ctx, e.feedCh) })
	e.spawn(func() { e.detector.Run(e.ctx) })
	e.spawn(func() { e.notifier.Run(e.ctx) })
	e.spawn(func() { e.rates.Run(e.ctx) })
	e.spawn(func() { e.refresh.Run(e.ctx) })

	for _, slot := range e.slots {
		slot := slot
		e.spawn(func() { slot.client.Run(e.ctx) })
		e.spawn(func() { slot.runner.Run(e.ctx) })
	}

	if e.apiSrv != nil {
		e.spawn(func() {
			if err := e.apiSrv.Start(e.ctx); err != nil {
				e.logger.Error("api server failed", "error", err)
			}
		})
	}

	e.logger.Info("engine started", "venues", len(e.slots))
	return nil
}

// Stop shuts everything down and waits for the goroutines.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.state.Shutdown()
	e.cancel()
	if e.apiSrv != nil {
		if err := e.apiSrv.Stop(); err != nil {
			e.logger.Error("api server stop", "error", err)
		}
	}
	e.wg.Wait()
	e.logger.Info("stopped")
}

// State exposes shared state for embedding callers.
func (e *Engine) State() *state.SharedState { return e.state }

// Opportunities exposes the detector's publish stream.
func (e *Engine) Opportunities() <-chan premium.Opportunity {
	return e.detector.Opportunities()
}

func (e *Engine) spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}
