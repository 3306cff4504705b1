package exchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"arb-scanner/pkg/types"
)

// UpbitAdapter parses Upbit's ticker and orderbook channels. Upbit sends
// the same document shapes as JSON text frames or MessagePack binary
// frames; both are handled. Market codes look like "KRW-BTC", and the
// KRW-USDT / KRW-USDC markets are the venue's cross-rate source rather
// than tradeable pairs.
type UpbitAdapter struct{}

func (UpbitAdapter) Venue() types.Venue { return types.VenueUpbit }

// SubscribeMessages requests ticker and orderbook channels for the
// symbols plus the stablecoin markets that feed the cross-rate register.
func (a UpbitAdapter) SubscribeMessages(symbols []string) []string {
	codes := make([]string, 0, len(symbols)+2)
	for _, s := range symbols {
		codes = append(codes, fmt.Sprintf("KRW-%s", strings.ToUpper(s)))
	}
	codes = append(codes, "KRW-USDT", "KRW-USDC")

	payload := []any{
		map[string]string{"ticket": "arb-scanner"},
		map[string]any{"type": "ticker", "codes": codes},
		map[string]any{"type": "orderbook", "codes": codes},
		map[string]string{"format": "DEFAULT"},
	}
	data, _ := json.Marshal(payload)
	return []string{string(data)}
}

// upbitEnvelope covers both ticker and orderbook documents; Type
// discriminates. The same tags serve JSON and MessagePack payloads.
type upbitEnvelope struct {
	Type       string      `json:"type" msgpack:"type"`
	Code       string      `json:"code" msgpack:"code"`
	TradePrice float64     `json:"trade_price" msgpack:"trade_price"`
	Units      []upbitUnit `json:"orderbook_units" msgpack:"orderbook_units"`
}

type upbitUnit struct {
	BidPrice float64 `json:"bid_price" msgpack:"bid_price"`
	AskPrice float64 `json:"ask_price" msgpack:"ask_price"`
	BidSize  float64 `json:"bid_size" msgpack:"bid_size"`
	AskSize  float64 `json:"ask_size" msgpack:"ask_size"`
}

func (a UpbitAdapter) Parse(frame types.WsFrame) ([]Message, error) {
	var env upbitEnvelope
	switch frame.Kind {
	case types.FrameText:
		if err := json.Unmarshal([]byte(frame.Text), &env); err != nil {
			return nil, parseErrf(a.Venue(), "json: %v", err)
		}
	case types.FrameBinary:
		if err := msgpack.Unmarshal(frame.Data, &env); err != nil {
			return nil, parseErrf(a.Venue(), "msgpack: %v", err)
		}
	default:
		return nil, nil
	}

	return koreanEnvelopeMessages(env)
}

// koreanEnvelopeMessages converts a decoded Korean-protocol document to
// adapter messages. Shared by Upbit and Bithumb, whose WebSocket APIs
// use the same document shapes.
func koreanEnvelopeMessages(env upbitEnvelope) ([]Message, error) {
	switch env.Type {
	case "ticker":
		if env.Code == "" || env.TradePrice <= 0 {
			return nil, nil
		}
		return []Message{{
			Kind:  MsgTicker,
			Code:  env.Code,
			Price: types.FP(env.TradePrice),
		}}, nil

	case "orderbook":
		if env.Code == "" || len(env.Units) == 0 {
			return nil, nil
		}
		// Units are ordered best-first: bids descending, asks ascending.
		bids := make([]types.BookLevel, 0, len(env.Units))
		asks := make([]types.BookLevel, 0, len(env.Units))
		for _, u := range env.Units {
			if u.BidPrice > 0 {
				bids = append(bids, types.BookLevel{Price: u.BidPrice, Size: u.BidSize})
			}
			if u.AskPrice > 0 {
				asks = append(asks, types.BookLevel{Price: u.AskPrice, Size: u.AskSize})
			}
		}
		if len(bids) == 0 || len(asks) == 0 {
			return nil, nil
		}
		best := env.Units[0]
		return []Message{{
			Kind:     MsgBook,
			Code:     env.Code,
			Bid:      types.FP(best.BidPrice),
			Ask:      types.FP(best.AskPrice),
			BidSize:  types.FP(best.BidSize),
			AskSize:  types.FP(best.AskSize),
			Bids:     bids,
			Asks:     asks,
			Snapshot: true, // Korean orderbook frames are full snapshots
		}}, nil

	default:
		return nil, nil
	}
}

// BaseQuote splits "KRW-BTC" style codes: quote first, then base.
func (UpbitAdapter) BaseQuote(code string) (string, string, bool) {
	quote, base, found := strings.Cut(strings.ToUpper(code), "-")
	if !found || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}

func (UpbitAdapter) IsUSDTMarket(code string) bool {
	return strings.EqualFold(code, "KRW-USDT")
}

func (UpbitAdapter) IsUSDCMarket(code string) bool {
	return strings.EqualFold(code, "KRW-USDC")
}
