package feed

import (
	"log/slog"
	"os"
	"testing"

	"arb-scanner/internal/exchange"
	"arb-scanner/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRunner(adapter exchange.Adapter, out chan types.FeedMessage) *Runner {
	in := make(chan types.WsFrame)
	return NewRunner(adapter, in, out, testLogger())
}

func drainMessages(out chan types.FeedMessage) []types.FeedMessage {
	var msgs []types.FeedMessage
	for {
		select {
		case m := <-out:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func TestKoreanTickerRoutesStablecoinRate(t *testing.T) {
	t.Parallel()
	out := make(chan types.FeedMessage, 16)
	r := newTestRunner(exchange.UpbitAdapter{}, out)

	r.handlePayload(types.TextFrame(`{"type":"ticker","code":"KRW-USDT","trade_price":1350.0}`))

	msgs := drainMessages(out)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d", len(msgs))
	}
	tick := msgs[0].Tick
	if tick == nil || tick.Kind != types.TickStablecoinRate {
		t.Fatalf("expected a rate tick, got %+v", msgs[0])
	}
	if tick.Stablecoin != "USDT" || tick.Quote != "KRW" {
		t.Errorf("rate identity = %s/%s", tick.Stablecoin, tick.Quote)
	}
	if tick.Rate != types.FP(1350) {
		t.Errorf("rate = %v", tick.Rate.Float())
	}
}

func TestKoreanTickerCorrelatesOrderbookCache(t *testing.T) {
	t.Parallel()
	out := make(chan types.FeedMessage, 16)
	r := newTestRunner(exchange.UpbitAdapter{}, out)

	// Orderbook first populates the cache.
	r.handlePayload(types.TextFrame(`{"type":"orderbook","code":"KRW-BTC","orderbook_units":[` +
		`{"bid_price":134990000,"ask_price":135010000,"bid_size":0.5,"ask_size":0.7}]}`))
	drainMessages(out)

	// Ticker then picks up the cached best bid/ask and sizes.
	r.handlePayload(types.TextFrame(`{"type":"ticker","code":"KRW-BTC","trade_price":135000000.0}`))
	msgs := drainMessages(out)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d", len(msgs))
	}
	tick := msgs[0].Tick
	if tick.Bid != types.FP(134990000) || tick.Ask != types.FP(135010000) {
		t.Errorf("correlated best = %v/%v", tick.Bid.Float(), tick.Ask.Float())
	}
	if tick.BidSize != types.FP(0.5) || tick.AskSize != types.FP(0.7) {
		t.Errorf("correlated sizes = %v/%v", tick.BidSize.Float(), tick.AskSize.Float())
	}
	if tick.Quote != "KRW" {
		t.Errorf("quote = %q", tick.Quote)
	}
}

func TestKoreanTickerWithoutCacheFallsBackToPrice(t *testing.T) {
	t.Parallel()
	out := make(chan types.FeedMessage, 16)
	r := newTestRunner(exchange.UpbitAdapter{}, out)

	r.handlePayload(types.TextFrame(`{"type":"ticker","code":"KRW-BTC","trade_price":135000000.0}`))
	msgs := drainMessages(out)
	tick := msgs[0].Tick
	if tick.Bid != tick.Mid || tick.Ask != tick.Mid {
		t.Error("without cache, bid and ask should default to the trade price")
	}
}

func TestReconnectClearsRunnerCaches(t *testing.T) {
	t.Parallel()
	out := make(chan types.FeedMessage, 16)
	r := newTestRunner(exchange.UpbitAdapter{}, out)

	r.handlePayload(types.TextFrame(`{"type":"orderbook","code":"KRW-BTC","orderbook_units":[` +
		`{"bid_price":134990000,"ask_price":135010000,"bid_size":0.5,"ask_size":0.7}]}`))
	drainMessages(out)

	r.handleLifecycle(types.WsFrame{Kind: types.FrameReconnected})
	msgs := drainMessages(out)
	if len(msgs) != 1 || msgs[0].Event == nil || msgs[0].Event.Kind != types.EventReconnected {
		t.Fatalf("expected a reconnected event, got %+v", msgs)
	}

	// After the clear, a ticker no longer sees cached bid/ask.
	r.handlePayload(types.TextFrame(`{"type":"ticker","code":"KRW-BTC","trade_price":135000000.0}`))
	msgs = drainMessages(out)
	tick := msgs[0].Tick
	if tick.Bid != tick.Mid {
		t.Error("cache should have been cleared on reconnect")
	}
}

func TestOverseasStablecoinPairFeedsRateRegister(t *testing.T) {
	t.Parallel()
	out := make(chan types.FeedMessage, 16)
	r := newTestRunner(exchange.BybitAdapter{}, out)

	text := `{"topic":"orderbook.50.USDTUSD","type":"snapshot",` +
		`"data":{"s":"USDTUSD","b":[["0.999","100"]],"a":[["1.001","100"]]}}`
	r.handlePayload(types.TextFrame(text))

	msgs := drainMessages(out)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want rate + price", len(msgs))
	}
	rate := msgs[0].Tick
	if rate.Kind != types.TickStablecoinRate || rate.Stablecoin != "USDT" {
		t.Errorf("first message should be the rate tick, got %+v", rate)
	}
	if rate.Rate != types.FP(1.0) {
		t.Errorf("rate mid = %v", rate.Rate.Float())
	}
}

func TestCoinbaseRunnerMaintainsBook(t *testing.T) {
	t.Parallel()
	out := make(chan types.FeedMessage, 16)
	r := newTestRunner(exchange.CoinbaseAdapter{}, out)

	snap := `{"channel":"l2_data","events":[{"type":"snapshot","product_id":"BTC-USD",` +
		`"updates":[{"side":"bid","price_level":"100","new_quantity":"5"},` +
		`{"side":"bid","price_level":"99","new_quantity":"2"},` +
		`{"side":"offer","price_level":"101","new_quantity":"4"}]}]}`
	r.handlePayload(types.TextFrame(snap))
	msgs := drainMessages(out)
	if len(msgs) != 1 {
		t.Fatalf("messages after snapshot = %d", len(msgs))
	}
	if msgs[0].Tick.Bid != types.FP(100) {
		t.Errorf("best bid = %v", msgs[0].Tick.Bid.Float())
	}

	// Zero-size update removes the top bid; the next emit reflects it.
	update := `{"channel":"l2_data","events":[{"type":"update","product_id":"BTC-USD",` +
		`"updates":[{"side":"bid","price_level":"100","new_quantity":"0"}]}]}`
	r.handlePayload(types.TextFrame(update))
	msgs = drainMessages(out)
	if len(msgs) != 1 {
		t.Fatalf("messages after update = %d", len(msgs))
	}
	tick := msgs[0].Tick
	if tick.Bid != types.FP(99) {
		t.Errorf("best bid after deletion = %v, want 99", tick.Bid.Float())
	}
	if tick.Depth == nil || !tick.Depth.Snapshot {
		t.Error("coinbase runner should emit the post-apply book as a snapshot")
	}
}

func TestBackpressureDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()
	out := make(chan types.FeedMessage, 1)
	r := newTestRunner(exchange.UpbitAdapter{}, out)

	// Two ticks into a capacity-1 channel: the second is dropped, the
	// call must not block.
	for i := 0; i < 2; i++ {
		r.handlePayload(types.TextFrame(`{"type":"ticker","code":"KRW-BTC","trade_price":135000000.0}`))
	}
	if got := len(drainMessages(out)); got != 1 {
		t.Errorf("delivered = %d, want 1", got)
	}
}

func TestParseErrorsAreCountedNotFatal(t *testing.T) {
	t.Parallel()
	out := make(chan types.FeedMessage, 16)
	r := newTestRunner(exchange.UpbitAdapter{}, out)

	r.handlePayload(types.TextFrame(`{not json`))
	if r.parseErrors != 1 {
		t.Errorf("parseErrors = %d, want 1", r.parseErrors)
	}
	if msgs := drainMessages(out); msgs != nil {
		t.Error("malformed frame must not emit messages")
	}
}
