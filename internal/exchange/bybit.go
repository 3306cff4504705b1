package exchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"arb-scanner/pkg/types"
)

// bybitMaxArgs is Bybit's per-message subscription argument limit.
const bybitMaxArgs = 10

// BybitAdapter parses the v5 orderbook stream, which interleaves full
// snapshots with in-order deltas.
type BybitAdapter struct{}

func (BybitAdapter) Venue() types.Venue { return types.VenueBybit }

// SubscribeMessages chunks topics into multiple subscribe payloads to
// stay under Bybit's args-per-message limit.
func (BybitAdapter) SubscribeMessages(symbols []string) []string {
	topics := make([]string, 0, len(symbols))
	for _, s := range symbols {
		topics = append(topics, fmt.Sprintf("orderbook.50.%sUSDT", strings.ToUpper(s)))
	}

	var msgs []string
	for start := 0; start < len(topics); start += bybitMaxArgs {
		end := start + bybitMaxArgs
		if end > len(topics) {
			end = len(topics)
		}
		payload := map[string]any{"op": "subscribe", "args": topics[start:end]}
		data, _ := json.Marshal(payload)
		msgs = append(msgs, string(data))
	}
	return msgs
}

type bybitOrderbookMsg struct {
	Topic string `json:"topic"`
	Type  string `json:"type"` // "snapshot" or "delta"
	Data  struct {
		Symbol string     `json:"s"`
		Bids   [][]string `json:"b"`
		Asks   [][]string `json:"a"`
	} `json:"data"`
}

func (a BybitAdapter) Parse(frame types.WsFrame) ([]Message, error) {
	if frame.Kind != types.FrameText {
		return nil, nil
	}
	if !strings.Contains(frame.Text, `"orderbook.`) {
		return nil, nil
	}

	var msg bybitOrderbookMsg
	if err := json.Unmarshal([]byte(frame.Text), &msg); err != nil {
		return nil, parseErrf(a.Venue(), "orderbook: %v", err)
	}
	if msg.Data.Symbol == "" {
		return nil, nil
	}

	bids, err := parseLevels(msg.Data.Bids)
	if err != nil {
		return nil, parseErrf(a.Venue(), "bids: %v", err)
	}
	asks, err := parseLevels(msg.Data.Asks)
	if err != nil {
		return nil, parseErrf(a.Venue(), "asks: %v", err)
	}

	out := Message{
		Kind:     MsgBook,
		Code:     msg.Data.Symbol,
		Bids:     bids,
		Asks:     asks,
		Snapshot: msg.Type == "snapshot",
	}
	if len(bids) > 0 {
		out.Bid = types.FP(bids[0].Price)
		out.BidSize = types.FP(bids[0].Size)
	}
	if len(asks) > 0 {
		out.Ask = types.FP(asks[0].Price)
		out.AskSize = types.FP(asks[0].Size)
	}
	return []Message{out}, nil
}

// BaseQuote splits symbols the same way Binance does.
func (BybitAdapter) BaseQuote(code string) (string, string, bool) {
	return BinanceAdapter{}.BaseQuote(code)
}
