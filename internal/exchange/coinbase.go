package exchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"arb-scanner/pkg/types"
)

// CoinbaseAdapter parses the Advanced Trade level2 channel: one snapshot
// event per product at subscribe time, then incremental updates where a
// zero quantity removes the level. The runner maintains the full sorted
// book; the adapter only normalizes events.
type CoinbaseAdapter struct{}

func (CoinbaseAdapter) Venue() types.Venue { return types.VenueCoinbase }

func (CoinbaseAdapter) SubscribeMessages(symbols []string) []string {
	products := make([]string, 0, len(symbols))
	for _, s := range symbols {
		products = append(products, fmt.Sprintf("%s-USD", strings.ToUpper(s)))
	}
	msg := map[string]any{
		"type":        "subscribe",
		"channel":     "level2",
		"product_ids": products,
	}
	data, _ := json.Marshal(msg)
	return []string{string(data)}
}

type coinbaseEnvelope struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type      string `json:"type"` // "snapshot" or "update"
		ProductID string `json:"product_id"`
		Updates   []struct {
			Side        string `json:"side"` // "bid" or "offer"
			PriceLevel  string `json:"price_level"`
			NewQuantity string `json:"new_quantity"`
		} `json:"updates"`
	} `json:"events"`
}

func (a CoinbaseAdapter) Parse(frame types.WsFrame) ([]Message, error) {
	if frame.Kind != types.FrameText {
		return nil, nil
	}
	if !strings.Contains(frame.Text, `"l2_data"`) {
		return nil, nil
	}

	var env coinbaseEnvelope
	if err := json.Unmarshal([]byte(frame.Text), &env); err != nil {
		return nil, parseErrf(a.Venue(), "l2 envelope: %v", err)
	}
	if env.Channel != "l2_data" {
		return nil, nil
	}

	var out []Message
	for _, ev := range env.Events {
		if ev.ProductID == "" {
			continue
		}
		msg := Message{
			Kind:     MsgBook,
			Code:     ev.ProductID,
			Snapshot: ev.Type == "snapshot",
		}
		for _, u := range ev.Updates {
			price, err := types.ParseFixedPoint(u.PriceLevel)
			if err != nil {
				return nil, parseErrf(a.Venue(), "price level: %v", err)
			}
			size, err := types.ParseFixedPoint(u.NewQuantity)
			if err != nil {
				return nil, parseErrf(a.Venue(), "quantity: %v", err)
			}
			level := types.BookLevel{Price: price.Float(), Size: size.Float()}
			switch u.Side {
			case "bid", "buy":
				msg.Bids = append(msg.Bids, level)
			case "offer", "sell", "ask":
				msg.Asks = append(msg.Asks, level)
			}
		}
		out = append(out, msg)
	}
	return out, nil
}

// BaseQuote splits Coinbase's dashed product IDs, e.g. "BTC-USD".
func (CoinbaseAdapter) BaseQuote(code string) (string, string, bool) {
	base, quote, found := strings.Cut(strings.ToUpper(code), "-")
	if !found || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}
