package exchange

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"arb-scanner/pkg/types"
)

// BithumbAdapter parses Bithumb's public stream. Bithumb's current
// WebSocket API mirrors the Upbit protocol (same document shapes and
// "KRW-BTC" market codes), with binary frames carrying the same
// documents MessagePack-encoded, so parsing is shared with Upbit.
type BithumbAdapter struct{}

func (BithumbAdapter) Venue() types.Venue { return types.VenueBithumb }

func (BithumbAdapter) SubscribeMessages(symbols []string) []string {
	codes := make([]string, 0, len(symbols)+2)
	for _, s := range symbols {
		codes = append(codes, fmt.Sprintf("KRW-%s", strings.ToUpper(s)))
	}
	codes = append(codes, "KRW-USDT", "KRW-USDC")

	// Ticker and orderbook are subscribed as separate payloads.
	var msgs []string
	for _, channel := range []string{"ticker", "orderbook"} {
		payload := []any{
			map[string]string{"ticket": "arb-scanner"},
			map[string]any{"type": channel, "codes": codes},
			map[string]string{"format": "DEFAULT"},
		}
		data, _ := json.Marshal(payload)
		msgs = append(msgs, string(data))
	}
	return msgs
}

func (a BithumbAdapter) Parse(frame types.WsFrame) ([]Message, error) {
	var env upbitEnvelope
	switch frame.Kind {
	case types.FrameText:
		if err := json.Unmarshal([]byte(frame.Text), &env); err != nil {
			return nil, parseErrf(a.Venue(), "json: %v", err)
		}
	case types.FrameBinary:
		if err := msgpack.Unmarshal(frame.Data, &env); err != nil {
			return nil, parseErrf(a.Venue(), "binary: %v", err)
		}
	default:
		return nil, nil
	}

	return koreanEnvelopeMessages(env)
}

func (BithumbAdapter) BaseQuote(code string) (string, string, bool) {
	return UpbitAdapter{}.BaseQuote(code)
}

func (BithumbAdapter) IsUSDTMarket(code string) bool {
	return strings.EqualFold(code, "KRW-USDT")
}

func (BithumbAdapter) IsUSDCMarket(code string) bool {
	return strings.EqualFold(code, "KRW-USDC")
}
