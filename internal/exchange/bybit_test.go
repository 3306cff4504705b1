package exchange

import (
	"strings"
	"testing"

	"arb-scanner/pkg/types"
)

func TestBybitSubscribeChunking(t *testing.T) {
	t.Parallel()

	symbols := make([]string, 25)
	for i := range symbols {
		symbols[i] = "SYM" + string(rune('A'+i))
	}
	msgs := BybitAdapter{}.SubscribeMessages(symbols)
	if len(msgs) != 3 { // 25 topics / 10 per message
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	for _, m := range msgs {
		if !strings.Contains(m, `"op":"subscribe"`) {
			t.Errorf("missing op: %s", m)
		}
	}
}

func TestBybitParseSnapshot(t *testing.T) {
	t.Parallel()

	text := `{"topic":"orderbook.50.BTCUSDT","type":"snapshot",` +
		`"data":{"s":"BTCUSDT","b":[["100","5"],["99","2"]],"a":[["101","4"],["102","3"]]}}`

	msgs, err := BybitAdapter{}.Parse(types.TextFrame(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d", len(msgs))
	}
	m := msgs[0]
	if !m.Snapshot {
		t.Error("type snapshot should map to Snapshot=true")
	}
	if m.Code != "BTCUSDT" {
		t.Errorf("code = %q", m.Code)
	}
	if m.Bid != types.FP(100) || m.Ask != types.FP(101) {
		t.Errorf("best = %v/%v", m.Bid.Float(), m.Ask.Float())
	}
}

func TestBybitParseDelta(t *testing.T) {
	t.Parallel()

	text := `{"topic":"orderbook.50.BTCUSDT","type":"delta",` +
		`"data":{"s":"BTCUSDT","b":[["100","0"]],"a":[["101","6"]]}}`

	msgs, err := BybitAdapter{}.Parse(types.TextFrame(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := msgs[0]
	if m.Snapshot {
		t.Error("type delta should map to Snapshot=false")
	}
	if len(m.Bids) != 1 || m.Bids[0].Size != 0 {
		t.Error("zero-size delta level must be preserved for deletion")
	}
}

func TestBybitParseIgnoresOtherTopics(t *testing.T) {
	t.Parallel()
	msgs, err := BybitAdapter{}.Parse(types.TextFrame(`{"op":"subscribe","success":true}`))
	if err != nil || msgs != nil {
		t.Errorf("non-orderbook should be skipped, got %v/%v", msgs, err)
	}
}
