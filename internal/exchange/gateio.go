package exchange

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"arb-scanner/pkg/types"
)

// GateIOAdapter parses the spot order-book channels: spot.order_book
// delivers periodic full snapshots, spot.order_book_update deltas.
type GateIOAdapter struct{}

func (GateIOAdapter) Venue() types.Venue { return types.VenueGateIO }

func (GateIOAdapter) SubscribeMessages(symbols []string) []string {
	now := time.Now().Unix()
	var msgs []string
	for _, s := range symbols {
		pair := fmt.Sprintf("%s_USDT", strings.ToUpper(s))
		snap := map[string]any{
			"time":    now,
			"channel": "spot.order_book",
			"event":   "subscribe",
			"payload": []string{pair, "20", "1000ms"},
		}
		delta := map[string]any{
			"time":    now,
			"channel": "spot.order_book_update",
			"event":   "subscribe",
			"payload": []string{pair, "100ms"},
		}
		for _, m := range []map[string]any{snap, delta} {
			data, _ := json.Marshal(m)
			msgs = append(msgs, string(data))
		}
	}
	return msgs
}

type gateioMsg struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Result  json.RawMessage `json:"result"`
}

type gateioSnapshot struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"bids"`
	Asks   [][]string `json:"asks"`
}

type gateioDelta struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

func (a GateIOAdapter) Parse(frame types.WsFrame) ([]Message, error) {
	if frame.Kind != types.FrameText {
		return nil, nil
	}

	var msg gateioMsg
	if err := json.Unmarshal([]byte(frame.Text), &msg); err != nil {
		return nil, parseErrf(a.Venue(), "envelope: %v", err)
	}
	if msg.Event != "update" || len(msg.Result) == 0 {
		return nil, nil
	}

	switch msg.Channel {
	case "spot.order_book":
		var snap gateioSnapshot
		if err := json.Unmarshal(msg.Result, &snap); err != nil {
			return nil, parseErrf(a.Venue(), "snapshot: %v", err)
		}
		return a.bookMessage(snap.Symbol, snap.Bids, snap.Asks, true)
	case "spot.order_book_update":
		var delta gateioDelta
		if err := json.Unmarshal(msg.Result, &delta); err != nil {
			return nil, parseErrf(a.Venue(), "delta: %v", err)
		}
		return a.bookMessage(delta.Symbol, delta.Bids, delta.Asks, false)
	default:
		return nil, nil
	}
}

func (a GateIOAdapter) bookMessage(code string, rawBids, rawAsks [][]string, snapshot bool) ([]Message, error) {
	if code == "" {
		return nil, nil
	}
	bids, err := parseLevels(rawBids)
	if err != nil {
		return nil, parseErrf(a.Venue(), "bids: %v", err)
	}
	asks, err := parseLevels(rawAsks)
	if err != nil {
		return nil, parseErrf(a.Venue(), "asks: %v", err)
	}

	out := Message{
		Kind:     MsgBook,
		Code:     code,
		Bids:     bids,
		Asks:     asks,
		Snapshot: snapshot,
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

// BaseQuote splits Gate.io's underscore pairs, e.g. "BTC_USDT".
func (GateIOAdapter) BaseQuote(code string) (string, string, bool) {
	base, quote, found := strings.Cut(strings.ToUpper(code), "_")
	if !found || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}
