package exchange

import (
	"strings"
	"testing"

	"arb-scanner/pkg/types"
)

func TestBinanceBaseQuoteLongestSuffix(t *testing.T) {
	t.Parallel()
	a := BinanceAdapter{}

	cases := []struct {
		code        string
		base, quote string
		ok          bool
	}{
		{"BTCUSDT", "BTC", "USDT", true},
		{"btcusdt", "BTC", "USDT", true},
		{"ETHBUSD", "ETH", "BUSD", true},
		{"SOLUSDC", "SOL", "USDC", true},
		{"ETHBTC", "ETH", "BTC", true},
		{"USDT", "", "", false}, // no base left
		{"XYZ", "", "", false},
	}
	for _, c := range cases {
		base, quote, ok := a.BaseQuote(c.code)
		if ok != c.ok || base != c.base || quote != c.quote {
			t.Errorf("BaseQuote(%q) = %q/%q/%v, want %q/%q/%v",
				c.code, base, quote, ok, c.base, c.quote, c.ok)
		}
	}
}

func TestBinanceSubscribeMessage(t *testing.T) {
	t.Parallel()
	msgs := BinanceAdapter{}.SubscribeMessages([]string{"BTC", "ETH"})
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0], "btcusdt@depth20@100ms") || !strings.Contains(msgs[0], "ethusdt@depth20@100ms") {
		t.Errorf("subscribe = %s", msgs[0])
	}
	if !strings.Contains(msgs[0], "SUBSCRIBE") {
		t.Errorf("missing method: %s", msgs[0])
	}
}

func TestBinanceParsePartialDepth(t *testing.T) {
	t.Parallel()
	a := BinanceAdapter{}

	text := `{"stream":"btcusdt@depth20@100ms","data":{"lastUpdateId":160,` +
		`"bids":[["99500.00","1.5"],["99499.00","2.0"]],` +
		`"asks":[["99600.00","0.5"],["99601.00","3.0"]]}}`

	msgs, err := a.Parse(types.TextFrame(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}

	m := msgs[0]
	if m.Kind != MsgBook || m.Code != "BTCUSDT" {
		t.Errorf("kind/code = %v/%q", m.Kind, m.Code)
	}
	if !m.Snapshot {
		t.Error("partial depth must always be a snapshot")
	}
	if m.Bid != types.FP(99500) || m.Ask != types.FP(99600) {
		t.Errorf("best = %v/%v", m.Bid.Float(), m.Ask.Float())
	}
	if len(m.Bids) != 2 || len(m.Asks) != 2 {
		t.Errorf("levels = %d/%d", len(m.Bids), len(m.Asks))
	}
}

func TestBinanceParseIgnoresAcks(t *testing.T) {
	t.Parallel()
	msgs, err := BinanceAdapter{}.Parse(types.TextFrame(`{"result":null,"id":1}`))
	if err != nil || msgs != nil {
		t.Errorf("ack should be skipped silently, got %v/%v", msgs, err)
	}
}

func TestBinanceParseMalformed(t *testing.T) {
	t.Parallel()
	_, err := BinanceAdapter{}.Parse(types.TextFrame(`{"lastUpdateId": garbage`))
	if err == nil {
		t.Fatal("expected parse error")
	}
	var pe *ParseError
	if !asParseError(err, &pe) {
		t.Errorf("error type = %T", err)
	}
}

func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if ok {
		*target = pe
	}
	return ok
}
