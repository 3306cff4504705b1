// Package feed turns raw venue frames into shared-state updates.
//
// A Runner is the per-venue loop between the WebSocket client and the
// central handler: it parses frames through the venue's adapter, keeps
// the small per-venue caches some venues need (ticker/orderbook
// correlation for the Korean venues, the full sorted level2 book for
// Coinbase), and emits FeedMessages. The Handler fans in all runners,
// applies currency conversion, and mutates SharedState.
package feed

import (
	"context"
	"log/slog"

	"arb-scanner/internal/exchange"
	"arb-scanner/internal/metrics"
	"arb-scanner/internal/state"
	"arb-scanner/pkg/types"
)

// parseErrorLogLimit is how many parse errors are logged verbatim
// before sampling kicks in.
const parseErrorLogLimit = 5

// bestQuote is the Korean venues' ticker/orderbook correlation cache
// value: the latest best bid/ask and sizes per market code.
type bestQuote struct {
	bid, ask, bidSize, askSize types.FixedPoint
}

// Runner is the per-venue frame-processing loop.
type Runner struct {
	adapter exchange.Adapter
	in      <-chan types.WsFrame
	out     chan<- types.FeedMessage
	logger  *slog.Logger

	// bestCache correlates Korean ticker events with the latest
	// orderbook sizes, keyed by market code.
	bestCache map[string]bestQuote

	// books is the Coinbase level2 mirror, keyed by product ID.
	books map[string]*state.Book

	parseErrors uint64
}

// NewRunner wires a venue's adapter between its frame source and the
// handler channel.
func NewRunner(adapter exchange.Adapter, in <-chan types.WsFrame, out chan<- types.FeedMessage, logger *slog.Logger) *Runner {
	return &Runner{
		adapter:   adapter,
		in:        in,
		out:       out,
		logger:    logger.With("component", "runner", "venue", adapter.Venue().String()),
		bestCache: make(map[string]bestQuote),
		books:     make(map[string]*state.Book),
	}
}

// Run processes frames until the input channel closes or ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-r.in:
			if !ok {
				return
			}
			if frame.IsLifecycle() {
				r.handleLifecycle(frame)
				continue
			}
			r.handlePayload(frame)
		}
	}
}

func (r *Runner) handleLifecycle(frame types.WsFrame) {
	venue := r.adapter.Venue()
	switch frame.Kind {
	case types.FrameConnected:
		r.emit(types.EventMessage(types.ConnectionEvent{Kind: types.EventConnected, Venue: venue}))
	case types.FrameReconnected:
		r.clearCaches()
		r.emit(types.EventMessage(types.ConnectionEvent{Kind: types.EventReconnected, Venue: venue}))
	case types.FrameDisconnected:
		r.drain()
		r.clearCaches()
		r.emit(types.EventMessage(types.ConnectionEvent{Kind: types.EventDisconnected, Venue: venue}))
	case types.FrameBreakerOpen:
		r.emit(types.EventMessage(types.ConnectionEvent{
			Kind: types.EventCircuitBreakerOpen, Venue: venue, Cooldown: frame.Cooldown,
		}))
	case types.FrameError:
		r.emit(types.EventMessage(types.ConnectionEvent{Kind: types.EventError, Venue: venue, Err: frame.Err}))
	}
}

func (r *Runner) handlePayload(frame types.WsFrame) {
	msgs, err := r.adapter.Parse(frame)
	if err != nil {
		r.parseErrors++
		metrics.ParseErrors.WithLabelValues(r.adapter.Venue().String()).Inc()
		if r.parseErrors <= parseErrorLogLimit || r.parseErrors%100 == 0 {
			r.logger.Debug("parse error", "error", err, "total", r.parseErrors)
		}
		return
	}

	for _, msg := range msgs {
		r.process(msg)
	}
}

func (r *Runner) process(msg exchange.Message) {
	if korean, ok := r.adapter.(exchange.KoreanAdapter); ok {
		r.processKorean(korean, msg)
		return
	}
	if r.adapter.Venue() == types.VenueCoinbase {
		r.processCoinbase(msg)
		return
	}
	r.processOverseas(msg)
}

// processOverseas handles the venues whose frames already carry complete
// book messages (Binance, Bybit, Gate.io).
func (r *Runner) processOverseas(msg exchange.Message) {
	if msg.Kind != exchange.MsgBook {
		return
	}
	base, quote, ok := r.adapter.BaseQuote(msg.Code)
	if !ok {
		return
	}

	mid := midOf(msg.Bid, msg.Ask)

	// Stablecoin pairs feed the cross-rate register as well.
	if (base == "USDT" || base == "USDC") && mid > 0 {
		r.emit(types.TickMessage(types.RateParsed(r.adapter.Venue(), base, quote, mid)))
	}

	tick := types.PriceParsed(r.adapter.Venue(), base, quote, mid, msg.Bid, msg.Ask, msg.BidSize, msg.AskSize)
	if len(msg.Bids) > 0 || len(msg.Asks) > 0 {
		tick.Depth = &types.Depth{Bids: msg.Bids, Asks: msg.Asks, Snapshot: msg.Snapshot}
	}
	r.emit(types.TickMessage(tick))
}

// processKorean routes stablecoin markets to the cross-rate register and
// correlates ticker trades with cached orderbook sizes.
func (r *Runner) processKorean(adapter exchange.KoreanAdapter, msg exchange.Message) {
	venue := adapter.Venue()

	switch msg.Kind {
	case exchange.MsgTicker:
		if adapter.IsUSDTMarket(msg.Code) {
			r.emit(types.TickMessage(types.RateParsed(venue, "USDT", "KRW", msg.Price)))
			return
		}
		if adapter.IsUSDCMarket(msg.Code) {
			r.emit(types.TickMessage(types.RateParsed(venue, "USDC", "KRW", msg.Price)))
			return
		}
		base, quote, ok := adapter.BaseQuote(msg.Code)
		if !ok {
			return
		}
		best, cached := r.bestCache[msg.Code]
		if !cached {
			best = bestQuote{bid: msg.Price, ask: msg.Price}
		}
		r.emit(types.TickMessage(types.PriceParsed(
			venue, base, quote, msg.Price, best.bid, best.ask, best.bidSize, best.askSize)))

	case exchange.MsgBook:
		mid := midOf(msg.Bid, msg.Ask)
		if adapter.IsUSDTMarket(msg.Code) {
			// Orderbook mid also feeds the rate register; ticker and
			// book series may disagree by half a spread.
			r.emit(types.TickMessage(types.RateParsed(venue, "USDT", "KRW", mid)))
			return
		}
		if adapter.IsUSDCMarket(msg.Code) {
			r.emit(types.TickMessage(types.RateParsed(venue, "USDC", "KRW", mid)))
			return
		}
		r.bestCache[msg.Code] = bestQuote{bid: msg.Bid, ask: msg.Ask, bidSize: msg.BidSize, askSize: msg.AskSize}

		base, quote, ok := adapter.BaseQuote(msg.Code)
		if !ok {
			return
		}
		tick := types.PriceParsed(venue, base, quote, mid, msg.Bid, msg.Ask, msg.BidSize, msg.AskSize)
		if len(msg.Bids) > 0 && len(msg.Asks) > 0 {
			tick.Depth = &types.Depth{Bids: msg.Bids, Asks: msg.Asks, Snapshot: true}
		}
		r.emit(types.TickMessage(tick))
	}
}

// processCoinbase maintains the full level2 mirror and emits the
// post-apply book as a snapshot.
func (r *Runner) processCoinbase(msg exchange.Message) {
	if msg.Kind != exchange.MsgBook {
		return
	}

	book, ok := r.books[msg.Code]
	if !ok {
		book = state.NewBook()
		r.books[msg.Code] = book
	}

	if msg.Snapshot {
		book.ApplySnapshot(msg.Bids, msg.Asks)
	} else {
		book.ApplyDelta(msg.Bids, msg.Asks)
	}

	bestBid, bestAsk, haveBest := book.Best()
	if !haveBest {
		return
	}
	base, quote, ok := r.adapter.BaseQuote(msg.Code)
	if !ok {
		return
	}

	bid, ask := types.FP(bestBid.Price), types.FP(bestAsk.Price)
	mid := midOf(bid, ask)

	if base == "USDT" || base == "USDC" {
		r.emit(types.TickMessage(types.RateParsed(r.adapter.Venue(), base, quote, mid)))
	}

	bids, asks := book.Levels()
	tick := types.PriceParsed(r.adapter.Venue(), base, quote, mid,
		bid, ask, types.FP(bestBid.Size), types.FP(bestAsk.Size))
	tick.Depth = &types.Depth{Bids: bids, Asks: asks, Snapshot: true}
	r.emit(types.TickMessage(tick))
}

// emit forwards a message with a single try-send; under backpressure the
// message is dropped and counted, never blocking the runner.
func (r *Runner) emit(msg types.FeedMessage) {
	select {
	case r.out <- msg:
	default:
		metrics.TicksDropped.WithLabelValues(r.adapter.Venue().String()).Inc()
	}
}

// drain discards whatever is buffered on the input channel.
func (r *Runner) drain() {
	for {
		select {
		case _, ok := <-r.in:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (r *Runner) clearCaches() {
	clear(r.bestCache)
	clear(r.books)
}

func midOf(bid, ask types.FixedPoint) types.FixedPoint {
	if bid == 0 {
		return ask
	}
	if ask == 0 {
		return bid
	}
	return types.FixedPoint((bid.Raw() + ask.Raw()) / 2)
}
