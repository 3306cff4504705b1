package transfer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// NetworkStatus is one (asset, network) deposit/withdraw switch on one
// venue, with the venue's published transfer parameters.
type NetworkStatus struct {
	NetworkID        string  `json:"network"`
	DepositEnabled   bool    `json:"deposit_enabled"`
	WithdrawEnabled  bool    `json:"withdraw_enabled"`
	MinWithdraw      float64 `json:"min_withdraw"`
	Fee              float64 `json:"fee"`
	ConfirmsRequired int     `json:"confirms_required"`
}

// AssetStatus is one asset's network list on one venue.
type AssetStatus struct {
	Asset    string          `json:"asset"`
	Networks []NetworkStatus `json:"networks"`
}

// WalletCache holds the latest wallet status per venue. Read-mostly:
// the refresher replaces whole venue entries, readers tolerate a single
// update of lag.
type WalletCache struct {
	mu     sync.RWMutex
	venues map[string][]AssetStatus // venue name → statuses
}

// NewWalletCache creates an empty cache.
func NewWalletCache() *WalletCache {
	return &WalletCache{venues: make(map[string][]AssetStatus)}
}

// SetVenue replaces one venue's wallet status wholesale.
func (c *WalletCache) SetVenue(venue string, statuses []AssetStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.venues[venue] = statuses
}

// IsEmpty reports whether no venue has reported status yet.
func (c *WalletCache) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.venues) == 0
}

// HasVenue reports whether the venue has reported status.
func (c *WalletCache) HasVenue(venue string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.venues[venue]
	return ok
}

// asset returns one asset's status on one venue.
func (c *WalletCache) asset(venue, asset string) (AssetStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.venues[venue] {
		if strings.EqualFold(a.Asset, asset) {
			return a, true
		}
	}
	return AssetStatus{}, false
}

// WithdrawNetworks lists the asset's withdraw-enabled native network IDs
// on the venue.
func (c *WalletCache) WithdrawNetworks(venue, asset string) []string {
	a, ok := c.asset(venue, asset)
	if !ok {
		return nil
	}
	var out []string
	for _, n := range a.Networks {
		if n.WithdrawEnabled {
			out = append(out, n.NetworkID)
		}
	}
	return out
}

// DepositNetworks lists the asset's deposit-enabled native network IDs
// on the venue.
func (c *WalletCache) DepositNetworks(venue, asset string) []string {
	a, ok := c.asset(venue, asset)
	if !ok {
		return nil
	}
	var out []string
	for _, n := range a.Networks {
		if n.DepositEnabled {
			out = append(out, n.NetworkID)
		}
	}
	return out
}

// FetchFunc pulls one venue's current wallet status. The per-venue
// authenticated REST calls live outside this package; they are injected
// here as closures.
type FetchFunc func(ctx context.Context) ([]AssetStatus, error)

// Refresher periodically refreshes the wallet cache from per-venue
// fetchers.
type Refresher struct {
	cache    *WalletCache
	fetchers map[string]FetchFunc
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher builds a refresher over the given fetchers.
func NewRefresher(cache *WalletCache, fetchers map[string]FetchFunc, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		cache:    cache,
		fetchers: fetchers,
		interval: interval,
		logger:   logger.With("component", "wallet-refresher"),
	}
}

// Run refreshes immediately, then on the interval, until ctx is
// cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	for venue, fetch := range r.fetchers {
		statuses, err := fetch(ctx)
		if err != nil {
			r.logger.Warn("wallet status fetch failed", "venue", venue, "error", err)
			continue
		}
		r.cache.SetVenue(venue, statuses)
		r.logger.Debug("wallet status refreshed", "venue", venue, "assets", len(statuses))
	}
}
