package types

import "time"

// ————————————————————————————————————————————————————————————————————————
// WebSocket frames (WsClient → FeedRunner)
// ————————————————————————————————————————————————————————————————————————

// FrameKind discriminates WsFrame values.
type FrameKind uint8

const (
	FrameConnected FrameKind = iota
	FrameReconnected
	FrameDisconnected
	FrameError
	FrameBreakerOpen
	FrameText
	FrameBinary
)

// WsFrame is what the WebSocket client emits to its runner: raw payloads
// plus connection lifecycle transitions. The client never parses
// application payloads; that is the adapter's job.
type WsFrame struct {
	Kind     FrameKind
	Text     string        // FrameText payload
	Data     []byte        // FrameBinary payload
	Err      string        // FrameError detail
	Cooldown time.Duration // FrameBreakerOpen cooldown
}

// TextFrame wraps a text payload.
func TextFrame(s string) WsFrame { return WsFrame{Kind: FrameText, Text: s} }

// BinaryFrame wraps a binary payload.
func BinaryFrame(b []byte) WsFrame { return WsFrame{Kind: FrameBinary, Data: b} }

// IsLifecycle reports whether the frame is a connection event rather than
// a payload.
func (f WsFrame) IsLifecycle() bool {
	return f.Kind != FrameText && f.Kind != FrameBinary
}

// ————————————————————————————————————————————————————————————————————————
// Feed messages (FeedRunner → FeedHandler)
// ————————————————————————————————————————————————————————————————————————

// EventKind is the connection lifecycle event type.
type EventKind uint8

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventReconnected
	EventCircuitBreakerOpen
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnected:
		return "reconnected"
	case EventCircuitBreakerOpen:
		return "circuit_breaker_open"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionEvent is a venue connection state change forwarded to the
// handler and the status notifier.
type ConnectionEvent struct {
	Kind     EventKind
	Venue    Venue
	Err      string
	Cooldown time.Duration
}

// TickKind discriminates ParsedTick values.
type TickKind uint8

const (
	// TickPrice is a regular per-asset price update.
	TickPrice TickKind = iota
	// TickStablecoinRate is a cross-rate update (USDT/KRW, USDC/USD, ...)
	// feeding the per-venue rate registers instead of the asset books.
	TickStablecoinRate
)

// ParsedTick is the normalized output of an exchange adapter: either a
// per-asset price (with optional depth) or a stablecoin cross rate.
type ParsedTick struct {
	Kind  TickKind
	Venue Venue

	// Price fields. Symbol is the raw venue base symbol ("BTC"), Quote
	// the raw quote currency ("USDT", "KRW").
	Symbol  string
	Quote   string
	Mid     FixedPoint
	Bid     FixedPoint
	Ask     FixedPoint
	BidSize FixedPoint
	AskSize FixedPoint
	Depth   *Depth

	// StablecoinRate fields: Rate is the Stablecoin/Quote price.
	Stablecoin string
	Rate       FixedPoint
}

// PriceParsed builds a regular price tick.
func PriceParsed(venue Venue, symbol, quote string, mid, bid, ask, bidSize, askSize FixedPoint) ParsedTick {
	return ParsedTick{
		Kind:    TickPrice,
		Venue:   venue,
		Symbol:  symbol,
		Quote:   quote,
		Mid:     mid,
		Bid:     bid,
		Ask:     ask,
		BidSize: bidSize,
		AskSize: askSize,
	}
}

// RateParsed builds a stablecoin cross-rate tick.
func RateParsed(venue Venue, stablecoin, quote string, rate FixedPoint) ParsedTick {
	return ParsedTick{
		Kind:       TickStablecoinRate,
		Venue:      venue,
		Stablecoin: stablecoin,
		Quote:      quote,
		Rate:       rate,
	}
}

// FeedMessage is the union the runners emit to the handler: exactly one
// of Tick or Event is set.
type FeedMessage struct {
	Tick  *ParsedTick
	Event *ConnectionEvent
}

// TickMessage wraps a tick.
func TickMessage(t ParsedTick) FeedMessage { return FeedMessage{Tick: &t} }

// EventMessage wraps a connection event.
func EventMessage(e ConnectionEvent) FeedMessage { return FeedMessage{Event: &e} }
