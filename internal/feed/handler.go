package feed

import (
	"context"
	"log/slog"

	"arb-scanner/internal/metrics"
	"arb-scanner/internal/notify"
	"arb-scanner/internal/state"
	"arb-scanner/internal/symbols"
	"arb-scanner/pkg/types"
)

// HandlerBufferSize is the capacity of the fan-in channel all runners
// share.
const HandlerBufferSize = 4096

// KRW/USDT rate sanity bounds; a register outside this range is treated
// as corrupt and the tick dropped.
const (
	minUSDTKRW = 1000.0
	maxUSDTKRW = 2000.0
)

// Stablecoin/USD depeg tolerance: outside the hard bounds the rate is
// ignored (1:1 fallback); inside but past the warn bounds it is applied
// with a warning.
const (
	minStableUSD  = 0.90
	maxStableUSD  = 1.10
	warnStableLow = 0.98
	warnStableHi  = 1.02
)

// Handler is the single fan-in task: it serially applies every runner's
// messages to SharedState, performing currency normalization, symbol
// resolution, and book maintenance. Being single-threaded over state
// writes gives observers a consistent per-key update sequence.
type Handler struct {
	state    *state.SharedState
	mappings *symbols.Mappings
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewHandler creates the fan-in handler.
func NewHandler(st *state.SharedState, mappings *symbols.Mappings, notifier *notify.Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		state:    st,
		mappings: mappings,
		notifier: notifier,
		logger:   logger.With("component", "handler"),
	}
}

// Run consumes feed messages until ctx is cancelled or the channel
// closes. The handler never fails; invalid work is dropped.
func (h *Handler) Run(ctx context.Context, in <-chan types.FeedMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			if !h.state.IsRunning() {
				return
			}
			switch {
			case msg.Tick != nil:
				h.processTick(*msg.Tick)
			case msg.Event != nil:
				h.processEvent(*msg.Event)
			}
		}
	}
}

func (h *Handler) processTick(tick types.ParsedTick) {
	if tick.Kind == types.TickStablecoinRate {
		h.processRate(tick)
		return
	}
	h.processPrice(tick)
}

// processRate writes a stablecoin cross rate into the emitting venue's
// register. Other venues' registers are unaffected.
func (h *Handler) processRate(tick types.ParsedTick) {
	quote, ok := types.ParseQuote(tick.Quote)
	if !ok {
		return
	}
	h.state.SetStablecoinRate(tick.Venue, tick.Stablecoin, quote, tick.Rate)
	h.logger.Debug("cross rate updated",
		"venue", tick.Venue.String(), "stablecoin", tick.Stablecoin,
		"quote", quote.String(), "rate", tick.Rate.Float())
}

func (h *Handler) processPrice(tick types.ParsedTick) {
	venueName := tick.Venue.String()

	// Symbol resolution first: excluded mappings never reach state.
	if h.mappings.IsExcluded(venueName, tick.Symbol) {
		return
	}
	canonical := h.mappings.Canonical(venueName, tick.Symbol)
	pairID := types.PairID(canonical)

	quote, ok := types.ParseQuote(tick.Quote)
	if !ok {
		// Unrecognized quote currency: drop.
		return
	}

	// Book maintenance precedes price caching so the best bid/ask can be
	// recomputed from the mutated book.
	bid, ask, bidSize, askSize := tick.Bid, tick.Ask, tick.BidSize, tick.AskSize
	if !tick.Depth.IsEmpty() {
		if tick.Depth.Snapshot {
			if len(tick.Depth.Bids) > 0 && len(tick.Depth.Asks) > 0 {
				h.state.UpdateOrderbookSnapshot(tick.Venue, pairID, tick.Depth.Bids, tick.Depth.Asks)
			}
		} else {
			h.state.ApplyOrderbookDelta(tick.Venue, pairID, tick.Depth.Bids, tick.Depth.Asks)
		}
		if book := h.state.Book(tick.Venue, pairID); book != nil {
			if bestBid, bestAsk, okBest := book.Best(); okBest {
				bid, ask = types.FP(bestBid.Price), types.FP(bestAsk.Price)
				bidSize, askSize = types.FP(bestBid.Size), types.FP(bestAsk.Size)
			}
		}
	}
	if bid == 0 && ask == 0 {
		return
	}

	mid := midOf(bid, ask)

	// Track the reference-crypto price for implied stablecoin rates.
	if canonical == "BTC" && quote != types.QuoteKRW {
		h.state.SetBTCReference(tick.Venue, mid)
	}

	midUSD, bidUSD, askUSD, converted := h.toUSD(tick.Venue, quote, mid, bid, ask)
	if !converted {
		// Required cross rate missing or invalid: the raw-quote cache
		// still updates, but no USD price is published.
		metrics.ConversionsDropped.WithLabelValues(venueName).Inc()
		h.state.UpdateRawPrice(tick.Venue, pairID, canonical, bid, ask, bidSize, askSize, quote)
		return
	}

	h.state.UpdatePrice(tick.Venue, pairID, canonical,
		midUSD, bidUSD, askUSD, bid, ask, bidSize, askSize, quote)
	metrics.TicksProcessed.WithLabelValues(venueName).Inc()
}

// toUSD applies the conversion rules in their fixed order: KRW through
// the venue's own USDT/KRW register, stablecoins through the venue's
// stablecoin/USD register with depeg tolerance, USD passes through.
func (h *Handler) toUSD(venue types.Venue, quote types.Quote, mid, bid, ask types.FixedPoint) (midUSD, bidUSD, askUSD types.FixedPoint, ok bool) {
	switch {
	case quote == types.QuoteKRW:
		rate, haveRate := h.state.USDTKRW(venue)
		if !haveRate {
			h.logger.Debug("no USDT/KRW rate yet", "venue", venue.String())
			return 0, 0, 0, false
		}
		rateF := rate.Float()
		if rateF < minUSDTKRW || rateF > maxUSDTKRW {
			h.logger.Warn("USDT/KRW rate out of bounds, dropping tick",
				"venue", venue.String(), "rate", rateF)
			return 0, 0, 0, false
		}
		usdtUSD := h.state.USDTUSDGlobal().Float()
		conv := func(p types.FixedPoint) types.FixedPoint {
			return types.FP(p.Float() / rateF * usdtUSD)
		}
		return conv(mid), conv(bid), conv(ask), true

	case quote.IsStablecoin():
		rateF := 1.0
		if rate, haveRate := h.state.StableUSD(venue, quote); haveRate {
			r := rate.Float()
			if r < minStableUSD || r > maxStableUSD {
				h.logger.Warn("stablecoin rate outside tolerance, using 1:1",
					"venue", venue.String(), "quote", quote.String(), "rate", r)
			} else {
				if r < warnStableLow || r > warnStableHi {
					h.logger.Warn("stablecoin deviation",
						"venue", venue.String(), "quote", quote.String(), "rate", r)
				}
				rateF = r
			}
		}
		conv := func(p types.FixedPoint) types.FixedPoint {
			return types.FP(p.Float() * rateF)
		}
		return conv(mid), conv(bid), conv(ask), true

	case quote == types.QuoteUSD:
		return mid, bid, ask, true

	default:
		return 0, 0, 0, false
	}
}

// processEvent forwards connection events to the notifier and clears
// per-venue caches around disconnects.
func (h *Handler) processEvent(ev types.ConnectionEvent) {
	switch ev.Kind {
	case types.EventConnected:
		h.logger.Info("venue connected", "venue", ev.Venue.String())
	case types.EventReconnected:
		h.logger.Info("venue reconnected, clearing caches", "venue", ev.Venue.String())
		h.state.ClearVenueCaches(ev.Venue)
	case types.EventDisconnected:
		h.logger.Warn("venue disconnected, clearing caches", "venue", ev.Venue.String())
		h.state.ClearVenueCaches(ev.Venue)
	case types.EventCircuitBreakerOpen:
		h.logger.Warn("circuit breaker open",
			"venue", ev.Venue.String(), "cooldown", ev.Cooldown)
	case types.EventError:
		h.logger.Warn("venue error", "venue", ev.Venue.String(), "error", ev.Err)
		return // errors are not notifier events
	}
	if h.notifier != nil {
		h.notifier.TrySend(ev)
	}
}
