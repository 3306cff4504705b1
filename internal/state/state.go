package state

import (
	"sync"
	"sync/atomic"

	"arb-scanner/pkg/types"
)

// Key addresses per-pair state within one venue.
type Key struct {
	Venue  types.Venue
	PairID uint32
}

// Entry is the cached tick pair for one key: the USD-normalized view the
// detector ranks on and the raw-quote view the broadcast side shows.
type Entry struct {
	Symbol string
	USD    types.PriceTick
	Raw    types.PriceTick
}

// crossRates are one venue's stablecoin registers. Zero means unset.
type crossRates struct {
	usdtKRW types.FixedPoint
	usdcKRW types.FixedPoint
	usdtUSD types.FixedPoint
	usdcUSD types.FixedPoint
	btcUSD  types.FixedPoint // reference-crypto price for implied rates
}

// SharedState is the process-wide market state: written by the feed
// handler, observed by the detector and the broadcast side. Entry writes
// are atomic per key; readers may lag by one write but never see a torn
// value.
type SharedState struct {
	mu     sync.RWMutex
	prices map[Key]Entry
	books  map[Key]*Book
	rates  map[types.Venue]*crossRates

	// usdtUSDGlobal backs KRW conversion when converting through the
	// venue-local USDT/KRW rate. Raw fixed-point via atomic so hot reads
	// skip the map lock.
	usdtUSDGlobal atomic.Int64

	running atomic.Bool
	ticks   atomic.Uint64
}

// New creates an empty SharedState with the pipeline marked running.
func New() *SharedState {
	s := &SharedState{
		prices: make(map[Key]Entry),
		books:  make(map[Key]*Book),
		rates:  make(map[types.Venue]*crossRates),
	}
	s.usdtUSDGlobal.Store(types.FP(1.0).Raw())
	s.running.Store(true)
	return s
}

// IsRunning reports whether the pipeline should keep processing.
func (s *SharedState) IsRunning() bool { return s.running.Load() }

// Shutdown signals every task to exit.
func (s *SharedState) Shutdown() { s.running.Store(false) }

// TicksProcessed returns the total ticks applied since startup.
func (s *SharedState) TicksProcessed() uint64 { return s.ticks.Load() }

// ————————————————————————————————————————————————————————————————————————
// Price cache
// ————————————————————————————————————————————————————————————————————————

// UpdatePrice atomically stores the latest tick for (venue, pair) in both
// USD-normalized and raw-quote form.
func (s *SharedState) UpdatePrice(venue types.Venue, pairID uint32, symbol string,
	midUSD, bidUSD, askUSD, bidRaw, askRaw, bidSize, askSize types.FixedPoint, quote types.Quote) {

	now := types.NowMs()
	usd := types.PriceTick{
		Venue: venue, PairID: pairID,
		Mid: midUSD, Bid: bidUSD, Ask: askUSD,
		BidSize: bidSize, AskSize: askSize,
		Quote: types.QuoteUSD, TimestampMs: now,
	}
	midRaw := types.FixedPoint((bidRaw.Raw() + askRaw.Raw()) / 2)
	raw := types.PriceTick{
		Venue: venue, PairID: pairID,
		Mid: midRaw, Bid: bidRaw, Ask: askRaw,
		BidSize: bidSize, AskSize: askSize,
		Quote: quote, TimestampMs: now,
	}

	s.mu.Lock()
	s.prices[Key{venue, pairID}] = Entry{Symbol: symbol, USD: usd, Raw: raw}
	s.mu.Unlock()
	s.ticks.Add(1)
}

// UpdateRawPrice refreshes only the raw-quote view for (venue, pair),
// leaving any USD-normalized tick untouched. Used when a required cross
// rate is missing: the raw cache still tracks the venue, but no USD
// price is published.
func (s *SharedState) UpdateRawPrice(venue types.Venue, pairID uint32, symbol string,
	bidRaw, askRaw, bidSize, askSize types.FixedPoint, quote types.Quote) {

	midRaw := types.FixedPoint((bidRaw.Raw() + askRaw.Raw()) / 2)
	raw := types.PriceTick{
		Venue: venue, PairID: pairID,
		Mid: midRaw, Bid: bidRaw, Ask: askRaw,
		BidSize: bidSize, AskSize: askSize,
		Quote: quote, TimestampMs: types.NowMs(),
	}

	k := Key{venue, pairID}
	s.mu.Lock()
	e := s.prices[k]
	e.Symbol = symbol
	e.Raw = raw
	s.prices[k] = e
	s.mu.Unlock()
}

// Price returns the cached entry for (venue, pair).
func (s *SharedState) Price(venue types.Venue, pairID uint32) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.prices[Key{venue, pairID}]
	return e, ok
}

// BestBidAsk returns the USD best bid/ask and sizes for (venue, pair).
func (s *SharedState) BestBidAsk(venue types.Venue, pairID uint32) (bid, ask, bidSize, askSize types.FixedPoint, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.prices[Key{venue, pairID}]
	if !found {
		return 0, 0, 0, 0, false
	}
	t := e.USD
	return t.Bid, t.Ask, t.BidSize, t.AskSize, true
}

// Snapshot copies every price entry for lock-free iteration by the
// detector and broadcast encoders.
func (s *SharedState) Snapshot() map[Key]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]Entry, len(s.prices))
	for k, e := range s.prices {
		out[k] = e
	}
	return out
}

// ————————————————————————————————————————————————————————————————————————
// Order books
// ————————————————————————————————————————————————————————————————————————

// UpdateOrderbookSnapshot fully replaces the book for (venue, pair).
func (s *SharedState) UpdateOrderbookSnapshot(venue types.Venue, pairID uint32, bids, asks []types.BookLevel) {
	s.book(venue, pairID).ApplySnapshot(bids, asks)
}

// ApplyOrderbookDelta upserts levels into the book (size 0 deletes).
// Returns false when the delta was discarded for crossing the book.
func (s *SharedState) ApplyOrderbookDelta(venue types.Venue, pairID uint32, bids, asks []types.BookLevel) bool {
	return s.book(venue, pairID).ApplyDelta(bids, asks)
}

// Book returns the live book for (venue, pair), or nil if none exists.
func (s *SharedState) Book(venue types.Venue, pairID uint32) *Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books[Key{venue, pairID}]
}

func (s *SharedState) book(venue types.Venue, pairID uint32) *Book {
	k := Key{venue, pairID}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[k]
	if !ok {
		b = NewBook()
		s.books[k] = b
	}
	return b
}

// AvgFillPrice walks (venue, pair)'s ask ladder for the given notional,
// expressed in the book's own quote currency (the ladders hold raw-quote
// prices). ok is false without a book or with insufficient depth.
func (s *SharedState) AvgFillPrice(venue types.Venue, pairID uint32, notional float64) (float64, bool) {
	b := s.Book(venue, pairID)
	if b == nil {
		return 0, false
	}
	return b.AvgFillPrice(notional)
}

// ————————————————————————————————————————————————————————————————————————
// Cross-rate registers
// ————————————————————————————————————————————————————————————————————————

func (s *SharedState) venueRates(venue types.Venue) *crossRates {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rates[venue]
	if !ok {
		r = &crossRates{}
		s.rates[venue] = r
	}
	return r
}

// SetStablecoinRate records a stablecoin cross rate for one venue.
// Recognized pairs: USDT/KRW, USDC/KRW, USDT/USD, USDC/USD. A USDT/USD
// update also refreshes the global USDT/USD register.
func (s *SharedState) SetStablecoinRate(venue types.Venue, stablecoin string, quote types.Quote, rate types.FixedPoint) {
	r := s.venueRates(venue)
	s.mu.Lock()
	switch {
	case stablecoin == "USDT" && quote == types.QuoteKRW:
		r.usdtKRW = rate
	case stablecoin == "USDC" && quote == types.QuoteKRW:
		r.usdcKRW = rate
	case stablecoin == "USDT" && quote == types.QuoteUSD:
		r.usdtUSD = rate
	case stablecoin == "USDC" && quote == types.QuoteUSD:
		r.usdcUSD = rate
	}
	s.mu.Unlock()

	if stablecoin == "USDT" && quote == types.QuoteUSD {
		s.usdtUSDGlobal.Store(rate.Raw())
	}
}

// USDTKRW returns the venue's USDT/KRW register.
func (s *SharedState) USDTKRW(venue types.Venue) (types.FixedPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[venue]
	if !ok || r.usdtKRW == 0 {
		return 0, false
	}
	return r.usdtKRW, true
}

// USDCKRW returns the venue's USDC/KRW register.
func (s *SharedState) USDCKRW(venue types.Venue) (types.FixedPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[venue]
	if !ok || r.usdcKRW == 0 {
		return 0, false
	}
	return r.usdcKRW, true
}

// StableUSD returns the venue's stablecoin/USD register for USDT or
// USDC quotes. When the venue has no direct quote but carries a BTC
// reference price, an implied rate is derived from the global USD view
// of BTC.
func (s *SharedState) StableUSD(venue types.Venue, quote types.Quote) (types.FixedPoint, bool) {
	s.mu.RLock()
	r, ok := s.rates[venue]
	var direct, btcUSD types.FixedPoint
	if ok {
		switch quote {
		case types.QuoteUSDT:
			direct = r.usdtUSD
		case types.QuoteUSDC, types.QuoteBUSD:
			direct = r.usdcUSD
		}
		btcUSD = r.btcUSD
	}
	s.mu.RUnlock()

	if direct != 0 {
		return direct, true
	}
	// No direct quote: derive implied stablecoin/USD from the venue's
	// BTC price in the stablecoin vs the global BTC/USD reference.
	if btcUSD != 0 {
		if ref, refOK := s.referenceBTCUSD(); refOK && btcUSD != 0 {
			implied := float64(ref.Raw()) / float64(btcUSD.Raw())
			return types.FP(implied), true
		}
	}
	return 0, false
}

// SetBTCReference stores the venue's BTC price in its own stablecoin
// quote, used to derive implied stablecoin/USD rates.
func (s *SharedState) SetBTCReference(venue types.Venue, price types.FixedPoint) {
	r := s.venueRates(venue)
	s.mu.Lock()
	r.btcUSD = price
	s.mu.Unlock()
}

// referenceBTCUSD picks a USD-native BTC price to anchor implied rates;
// Coinbase quotes BTC in actual USD.
func (s *SharedState) referenceBTCUSD() (types.FixedPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[types.VenueCoinbase]
	if !ok || r.btcUSD == 0 {
		return 0, false
	}
	return r.btcUSD, true
}

// USDTUSDGlobal returns the process-wide USDT/USD rate (defaults 1.0).
func (s *SharedState) USDTUSDGlobal() types.FixedPoint {
	return types.FixedPoint(s.usdtUSDGlobal.Load())
}

// ————————————————————————————————————————————————————————————————————————
// Lifecycle
// ————————————————————————————————————————————————————————————————————————

// ClearVenueCaches drops every price entry, order book, and cross-rate
// register originated from one venue. Called on reconnect so stale
// pre-disconnect data never mixes with the fresh stream.
func (s *SharedState) ClearVenueCaches(venue types.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.prices {
		if k.Venue == venue {
			delete(s.prices, k)
		}
	}
	for k := range s.books {
		if k.Venue == venue {
			delete(s.books, k)
		}
	}
	delete(s.rates, venue)
}

// Stats summarizes the cache for the read-only API.
type Stats struct {
	Venues         int    `json:"venues"`
	Pairs          int    `json:"pairs"`
	Books          int    `json:"books"`
	TicksProcessed uint64 `json:"ticks_processed"`
}

// CurrentStats returns cache counters; never fails, may be all zeros
// before the pipeline converges.
func (s *SharedState) CurrentStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	venues := make(map[types.Venue]struct{})
	pairs := make(map[uint32]struct{})
	for k := range s.prices {
		venues[k.Venue] = struct{}{}
		pairs[k.PairID] = struct{}{}
	}
	return Stats{
		Venues:         len(venues),
		Pairs:          len(pairs),
		Books:          len(s.books),
		TicksProcessed: s.ticks.Load(),
	}
}
