// Package state holds the process-wide market state: per-(venue, pair)
// price ticks in raw and USD-normalized form, order books with
// snapshot/delta semantics, and the per-venue cross-rate registers.
//
// One writer (the feed handler) mutates; the detector and broadcast side
// read. Books are individually locked so a reader never observes a torn
// ladder.
package state

import (
	"math"
	"sort"
	"sync"
	"time"

	"arb-scanner/pkg/types"
)

// priceKey converts a float price into the integer ladder key. Fixed
// integer keys keep ladder ordering exact; float keys would not.
func priceKey(price float64) int64 {
	return int64(math.Round(price * 1e8))
}

// ladderLevel is one price level keyed by fixed-point price.
type ladderLevel struct {
	key  int64
	size float64
}

// ladder is a price-sorted level list, ascending by key. Bids read from
// the top end, asks from the bottom.
type ladder []ladderLevel

// upsert inserts or updates a level; size 0 deletes it.
func (l ladder) upsert(key int64, size float64) ladder {
	i := sort.Search(len(l), func(i int) bool { return l[i].key >= key })
	if i < len(l) && l[i].key == key {
		if size == 0 {
			return append(l[:i], l[i+1:]...)
		}
		l[i].size = size
		return l
	}
	if size == 0 {
		return l
	}
	l = append(l, ladderLevel{})
	copy(l[i+1:], l[i:])
	l[i] = ladderLevel{key: key, size: size}
	return l
}

func (l ladder) clone() ladder {
	out := make(ladder, len(l))
	copy(out, l)
	return out
}

// Book is the order book for one (venue, pair): a bid ladder and an ask
// ladder with snapshot-replace and per-level delta semantics. A delta
// that would cross the book (top bid >= top ask) is discarded and the
// book marked stale; the next snapshot or the next delta that applies
// cleanly clears the flag.
type Book struct {
	mu      sync.RWMutex
	bids    ladder
	asks    ladder
	stale   bool
	updated time.Time
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{}
}

// ApplySnapshot fully replaces both ladders and clears staleness.
func (b *Book) ApplySnapshot(bids, asks []types.BookLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = b.bids[:0]
	b.asks = b.asks[:0]
	for _, lv := range bids {
		if lv.Size > 0 {
			b.bids = b.bids.upsert(priceKey(lv.Price), lv.Size)
		}
	}
	for _, lv := range asks {
		if lv.Size > 0 {
			b.asks = b.asks.upsert(priceKey(lv.Price), lv.Size)
		}
	}
	b.stale = false
	b.updated = time.Now()
}

// ApplyDelta upserts price levels (size 0 deletes). If the resulting
// ladders would cross, the whole delta is discarded, the book is marked
// stale, and false is returned.
func (b *Book) ApplyDelta(bids, asks []types.BookLevel) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	nextBids := b.bids.clone()
	nextAsks := b.asks.clone()
	for _, lv := range bids {
		nextBids = nextBids.upsert(priceKey(lv.Price), lv.Size)
	}
	for _, lv := range asks {
		nextAsks = nextAsks.upsert(priceKey(lv.Price), lv.Size)
	}

	if len(nextBids) > 0 && len(nextAsks) > 0 {
		if nextBids[len(nextBids)-1].key >= nextAsks[0].key {
			b.stale = true
			return false
		}
	}

	b.bids = nextBids
	b.asks = nextAsks
	b.stale = false
	b.updated = time.Now()
	return true
}

// Best returns the top of book. ok is false when either side is empty or
// the book is stale.
func (b *Book) Best() (bid, ask types.BookLevel, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stale || len(b.bids) == 0 || len(b.asks) == 0 {
		return types.BookLevel{}, types.BookLevel{}, false
	}
	top := b.bids[len(b.bids)-1]
	bottom := b.asks[0]
	return types.BookLevel{Price: float64(top.key) / 1e8, Size: top.size},
		types.BookLevel{Price: float64(bottom.key) / 1e8, Size: bottom.size}, true
}

// Levels returns copies of both ladders, bids best-first (descending),
// asks best-first (ascending).
func (b *Book) Levels() (bids, asks []types.BookLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids = make([]types.BookLevel, 0, len(b.bids))
	for i := len(b.bids) - 1; i >= 0; i-- {
		bids = append(bids, types.BookLevel{Price: float64(b.bids[i].key) / 1e8, Size: b.bids[i].size})
	}
	asks = make([]types.BookLevel, 0, len(b.asks))
	for _, lv := range b.asks {
		asks = append(asks, types.BookLevel{Price: float64(lv.key) / 1e8, Size: lv.size})
	}
	return bids, asks
}

// IsStale reports whether the book was invalidated by a crossing delta.
func (b *Book) IsStale() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stale
}

// LastUpdated returns the time of the last applied mutation.
func (b *Book) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

// AvgFillPrice walks the ask ladder from the top, consuming size*price
// until the requested notional is covered, and returns the average fill
// price. ok is false when the book cannot cover the notional.
func (b *Book) AvgFillPrice(notional float64) (avg float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stale || notional <= 0 {
		return 0, false
	}

	remaining := notional
	var qty, cost float64
	for _, lv := range b.asks {
		price := float64(lv.key) / 1e8
		levelNotional := price * lv.size
		if levelNotional >= remaining {
			take := remaining / price
			qty += take
			cost += remaining
			remaining = 0
			break
		}
		qty += lv.size
		cost += levelNotional
		remaining -= levelNotional
	}
	if remaining > 0 || qty == 0 {
		return 0, false
	}
	return cost / qty, true
}
