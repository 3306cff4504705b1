// adapter.go defines the per-venue message parsing contract.
//
// Each venue speaks its own wire dialect; an Adapter normalizes frames
// into ticker and order-book messages keyed by the venue-native market
// code. Adapters are pure parsers: connection state lives in the client,
// book state in the runner or shared state.
package exchange

import (
	"fmt"

	"arb-scanner/pkg/types"
)

// MessageKind discriminates parsed adapter messages.
type MessageKind uint8

const (
	// MsgTicker is a trade-price update for a market code.
	MsgTicker MessageKind = iota
	// MsgBook is a best-bid/ask update, optionally with ladder levels.
	// Snapshot levels replace the book; delta levels upsert (size 0
	// deletes).
	MsgBook
)

// Message is the normalized result of parsing one frame.
type Message struct {
	Kind MessageKind
	Code string // venue-native market code: "BTCUSDT", "KRW-BTC", "BTC-USD"

	// Ticker
	Price types.FixedPoint

	// Book
	Bid      types.FixedPoint
	Ask      types.FixedPoint
	BidSize  types.FixedPoint
	AskSize  types.FixedPoint
	Bids     []types.BookLevel
	Asks     []types.BookLevel
	Snapshot bool
}

// Adapter parses one venue's wire format.
//
// Parse returns zero or more messages per frame. Frames that are valid
// but carry nothing of interest (subscription acks, heartbeats) return
// (nil, nil); malformed frames return a *ParseError.
type Adapter interface {
	Venue() types.Venue

	// SubscribeMessages builds the subscription payloads for a list of
	// canonical base symbols.
	SubscribeMessages(symbols []string) []string

	// Parse normalizes one frame.
	Parse(frame types.WsFrame) ([]Message, error)

	// BaseQuote splits a venue-native market code into base and quote.
	BaseQuote(code string) (base, quote string, ok bool)
}

// KoreanAdapter extends Adapter for KRW venues, which additionally carry
// the USDT/KRW and USDC/KRW markets used as cross-rate sources rather
// than tradeable pairs.
type KoreanAdapter interface {
	Adapter
	IsUSDTMarket(code string) bool
	IsUSDCMarket(code string) bool
}

// ParseError reports a malformed venue message. The runner counts these
// and drops the frame; they never propagate past the runner.
type ParseError struct {
	Venue  types.Venue
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse: %s", e.Venue, e.Reason)
}

func parseErrf(venue types.Venue, format string, args ...any) error {
	return &ParseError{Venue: venue, Reason: fmt.Sprintf(format, args...)}
}

// parseLevels converts [["price","qty"], ...] string pairs into levels.
func parseLevels(raw [][]string) ([]types.BookLevel, error) {
	levels := make([]types.BookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("level needs price and size, got %d fields", len(pair))
		}
		price, err := types.ParseFixedPoint(pair[0])
		if err != nil {
			return nil, err
		}
		size, err := types.ParseFixedPoint(pair[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, types.BookLevel{Price: price.Float(), Size: size.Float()})
	}
	return levels, nil
}
