// Package premium ranks cross-venue price gaps and turns the viable
// ones into arbitrage opportunities.
//
// A Matrix holds one pair's latest USD price per venue. The Detector
// rebuilds matrices from shared state on every scan, ranks premiums,
// gates on net profitability and transfer feasibility, and publishes
// opportunities with a fixed TTL.
package premium

import (
	"arb-scanner/pkg/types"
)

// Config tunes detection.
type Config struct {
	MinPremiumBps       int32   `mapstructure:"min_premium_bps"`
	MaxStalenessMs      uint64  `mapstructure:"max_staleness_ms"`
	ScanIntervalMs      uint64  `mapstructure:"scan_interval_ms"`
	TradingFeeBps       int32   `mapstructure:"trading_fee_bps"`
	GasCostBps          int32   `mapstructure:"gas_cost_bps"`
	TargetNotionalUSD   float64 `mapstructure:"target_notional_usd"`
	RequireTransferPath bool    `mapstructure:"require_transfer_path"`
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinPremiumBps:     30,
		MaxStalenessMs:    5000,
		ScanIntervalMs:    100,
		TradingFeeBps:     10,
		GasCostBps:        5,
		TargetNotionalUSD: 10_000,
	}
}

// NetBps nets a gross premium of both trade legs' fees plus gas.
func (c Config) NetBps(grossBps int32) int32 {
	return grossBps - 2*c.TradingFeeBps - c.GasCostBps
}

// IsProfitable applies the profitability gate to a net premium.
func (c Config) IsProfitable(netBps int32) bool {
	return netBps >= c.MinPremiumBps
}

// priceEntry is one venue's contribution to a matrix.
type priceEntry struct {
	price types.FixedPoint
	tsMs  uint64
}

// Matrix holds one pair's per-venue USD prices with their timestamps.
type Matrix struct {
	pairID uint32
	prices map[types.Venue]priceEntry
}

// NewMatrix creates an empty matrix for a pair.
func NewMatrix(pairID uint32) *Matrix {
	return &Matrix{pairID: pairID, prices: make(map[types.Venue]priceEntry)}
}

// PairID returns the pair this matrix covers.
func (m *Matrix) PairID() uint32 { return m.pairID }

// VenueCount returns how many venues have contributed a price.
func (m *Matrix) VenueCount() int { return len(m.prices) }

// UpdatePrice records a venue's price stamped with the current time.
func (m *Matrix) UpdatePrice(venue types.Venue, price types.FixedPoint) {
	m.UpdatePriceAt(venue, price, types.NowMs())
}

// UpdatePriceAt records a venue's price with an explicit timestamp.
func (m *Matrix) UpdatePriceAt(venue types.Venue, price types.FixedPoint, tsMs uint64) {
	m.prices[venue] = priceEntry{price: price, tsMs: tsMs}
}

// Price returns a venue's stored price.
func (m *Matrix) Price(venue types.Venue) (types.FixedPoint, bool) {
	e, ok := m.prices[venue]
	return e.price, ok
}

// Premium returns the bps premium of buying on buy and selling on sell.
func (m *Matrix) Premium(buy, sell types.Venue) (int32, bool) {
	b, okB := m.prices[buy]
	s, okS := m.prices[sell]
	if !okB || !okS {
		return 0, false
	}
	return types.PremiumBps(b.price, s.price), true
}

// Ranked is one ordered venue pair's premium.
type Ranked struct {
	Buy       types.Venue
	Sell      types.Venue
	BuyPrice  types.FixedPoint
	SellPrice types.FixedPoint
	GrossBps  int32
}

// Best returns the highest positive premium over all ordered venue
// pairs, skipping prices older than maxStalenessMs at nowMs.
func (m *Matrix) Best(nowMs, maxStalenessMs uint64) (Ranked, bool) {
	var best Ranked
	found := false
	for buyVenue, buy := range m.prices {
		if stale(buy.tsMs, nowMs, maxStalenessMs) {
			continue
		}
		for sellVenue, sell := range m.prices {
			if buyVenue == sellVenue || stale(sell.tsMs, nowMs, maxStalenessMs) {
				continue
			}
			bps := types.PremiumBps(buy.price, sell.price)
			if bps <= 0 {
				continue
			}
			if !found || bps > best.GrossBps {
				best = Ranked{
					Buy: buyVenue, Sell: sellVenue,
					BuyPrice: buy.price, SellPrice: sell.price,
					GrossBps: bps,
				}
				found = true
			}
		}
	}
	return best, found
}

// All enumerates every ordered venue pair regardless of sign or
// staleness.
func (m *Matrix) All() []Ranked {
	var out []Ranked
	for buyVenue, buy := range m.prices {
		for sellVenue, sell := range m.prices {
			if buyVenue == sellVenue {
				continue
			}
			out = append(out, Ranked{
				Buy: buyVenue, Sell: sellVenue,
				BuyPrice: buy.price, SellPrice: sell.price,
				GrossBps: types.PremiumBps(buy.price, sell.price),
			})
		}
	}
	return out
}

func stale(tsMs, nowMs, maxAgeMs uint64) bool {
	return nowMs > tsMs && nowMs-tsMs > maxAgeMs
}
