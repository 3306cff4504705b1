package types

import (
	"hash/fnv"
	"strings"
	"time"
)

// PairID hashes a canonical base symbol into the 32-bit pair identifier
// used to key all per-pair state. Hashing is case-insensitive so "btc"
// and "BTC" address the same pair.
func PairID(symbol string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(symbol)))
	return h.Sum32()
}

// NowMs is the millisecond timestamp used throughout the pipeline.
func NowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

// PriceTick is the latest top-of-book view for one (venue, pair).
// Invariant: Bid <= Mid <= Ask when both sides are present.
type PriceTick struct {
	Venue       Venue
	PairID      uint32
	Mid         FixedPoint
	Bid         FixedPoint
	Ask         FixedPoint
	BidSize     FixedPoint
	AskSize     FixedPoint
	Volume24h   FixedPoint
	Liquidity   FixedPoint
	Quote       Quote
	TimestampMs uint64
}

// NewPriceTick builds a tick stamped with the current time.
func NewPriceTick(venue Venue, pairID uint32, mid, bid, ask FixedPoint) PriceTick {
	return PriceTick{
		Venue:       venue,
		PairID:      pairID,
		Mid:         mid,
		Bid:         bid,
		Ask:         ask,
		Quote:       QuoteUSD,
		TimestampMs: NowMs(),
	}
}

// WithSizes returns a copy carrying best bid/ask sizes.
func (t PriceTick) WithSizes(bidSize, askSize FixedPoint) PriceTick {
	t.BidSize = bidSize
	t.AskSize = askSize
	return t
}

// Spread returns ask - bid.
func (t PriceTick) Spread() FixedPoint {
	return t.Ask - t.Bid
}

// AgeMs returns how old the tick is relative to nowMs.
func (t PriceTick) AgeMs(nowMs uint64) uint64 {
	if nowMs < t.TimestampMs {
		return 0
	}
	return nowMs - t.TimestampMs
}

// BookLevel is a single price level of an order book ladder.
type BookLevel struct {
	Price float64
	Size  float64
}

// Depth carries order book levels attached to a parsed tick. Snapshot
// replaces the book; a non-snapshot (delta) upserts levels, with size 0
// deleting a level.
type Depth struct {
	Bids     []BookLevel
	Asks     []BookLevel
	Snapshot bool
}

// IsEmpty reports whether the depth carries no levels at all.
func (d *Depth) IsEmpty() bool {
	return d == nil || (len(d.Bids) == 0 && len(d.Asks) == 0)
}
