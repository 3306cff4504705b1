package exchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"arb-scanner/pkg/types"
)

// binanceQuotes are the recognized quote suffixes, longest first, for
// splitting Binance's concatenated symbols.
var binanceQuotes = []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH", "BNB"}

// BinanceAdapter parses the combined-stream partial depth feed. Binance
// partial depth messages are always full snapshots of the top levels.
type BinanceAdapter struct{}

func (BinanceAdapter) Venue() types.Venue { return types.VenueBinance }

// SubscribeMessages subscribes to the 20-level partial depth stream for
// each symbol, all in one SUBSCRIBE payload.
func (BinanceAdapter) SubscribeMessages(symbols []string) []string {
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, fmt.Sprintf("%susdt@depth20@100ms", strings.ToLower(s)))
	}
	msg := map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	}
	data, _ := json.Marshal(msg)
	return []string{string(data)}
}

// binanceDepthEnvelope is the combined-stream wrapper.
type binanceDepthEnvelope struct {
	Stream string            `json:"stream"`
	Data   binanceDepthEvent `json:"data"`
}

type binanceDepthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (a BinanceAdapter) Parse(frame types.WsFrame) ([]Message, error) {
	if frame.Kind != types.FrameText {
		return nil, nil
	}
	text := frame.Text
	if !strings.Contains(text, "lastUpdateId") {
		// Subscription acks and other control traffic.
		return nil, nil
	}

	var env binanceDepthEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, parseErrf(a.Venue(), "depth envelope: %v", err)
	}
	if env.Stream == "" {
		return nil, nil
	}

	code := strings.ToUpper(strings.SplitN(env.Stream, "@", 2)[0])
	bids, err := parseLevels(env.Data.Bids)
	if err != nil {
		return nil, parseErrf(a.Venue(), "bids: %v", err)
	}
	asks, err := parseLevels(env.Data.Asks)
	if err != nil {
		return nil, parseErrf(a.Venue(), "asks: %v", err)
	}
	if len(bids) == 0 || len(asks) == 0 {
		return nil, nil
	}

	return []Message{{
		Kind:     MsgBook,
		Code:     code,
		Bid:      types.FP(bids[0].Price),
		Ask:      types.FP(asks[0].Price),
		BidSize:  types.FP(bids[0].Size),
		AskSize:  types.FP(asks[0].Size),
		Bids:     bids,
		Asks:     asks,
		Snapshot: true, // partial depth is always a full top-N snapshot
	}}, nil
}

// BaseQuote splits a concatenated symbol by longest quote suffix match.
func (BinanceAdapter) BaseQuote(code string) (string, string, bool) {
	s := strings.ToUpper(code)
	for _, quote := range binanceQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)], quote, true
		}
	}
	return "", "", false
}
