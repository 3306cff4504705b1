package state

import (
	"testing"

	"arb-scanner/pkg/types"
)

func TestSnapshotThenDelta(t *testing.T) {
	t.Parallel()
	b := NewBook()

	b.ApplySnapshot(
		[]types.BookLevel{{Price: 100, Size: 5}, {Price: 99, Size: 2}},
		[]types.BookLevel{{Price: 101, Size: 4}, {Price: 102, Size: 3}},
	)

	// Delta removes the top bid and resizes the top ask.
	if !b.ApplyDelta(
		[]types.BookLevel{{Price: 100, Size: 0}},
		[]types.BookLevel{{Price: 101, Size: 6}},
	) {
		t.Fatal("delta should apply")
	}

	bid, ask, ok := b.Best()
	if !ok {
		t.Fatal("Best returned ok=false")
	}
	if bid.Price != 99 || bid.Size != 2 {
		t.Errorf("best bid = %v/%v, want 99/2", bid.Price, bid.Size)
	}
	if ask.Price != 101 || ask.Size != 6 {
		t.Errorf("best ask = %v/%v, want 101/6", ask.Price, ask.Size)
	}
}

func TestSnapshotReplacesBook(t *testing.T) {
	t.Parallel()
	b := NewBook()

	b.ApplySnapshot(
		[]types.BookLevel{{Price: 100, Size: 5}},
		[]types.BookLevel{{Price: 101, Size: 4}},
	)
	b.ApplySnapshot(
		[]types.BookLevel{{Price: 90, Size: 1}},
		[]types.BookLevel{{Price: 91, Size: 1}},
	)

	bids, asks := b.Levels()
	if len(bids) != 1 || len(asks) != 1 {
		t.Fatalf("levels = %d/%d, want 1/1", len(bids), len(asks))
	}
	if bids[0].Price != 90 || asks[0].Price != 91 {
		t.Error("snapshot did not replace previous book")
	}
}

func TestCrossingDeltaDiscardedAndMarksStale(t *testing.T) {
	t.Parallel()
	b := NewBook()

	b.ApplySnapshot(
		[]types.BookLevel{{Price: 100, Size: 5}},
		[]types.BookLevel{{Price: 101, Size: 4}},
	)

	// A bid at 102 would cross the 101 ask.
	if b.ApplyDelta([]types.BookLevel{{Price: 102, Size: 1}}, nil) {
		t.Fatal("crossing delta should be discarded")
	}
	if !b.IsStale() {
		t.Error("book should be stale after crossing delta")
	}
	if _, _, ok := b.Best(); ok {
		t.Error("stale book should not report a best")
	}

	// The discarded delta must not have touched the ladders.
	b2 := NewBook()
	b2.ApplySnapshot(
		[]types.BookLevel{{Price: 100, Size: 5}},
		[]types.BookLevel{{Price: 101, Size: 4}},
	)
	b2.ApplyDelta([]types.BookLevel{{Price: 102, Size: 1}}, nil)
	bids, _ := b2.Levels()
	for _, lv := range bids {
		if lv.Price == 102 {
			t.Error("discarded delta leaked into the ladder")
		}
	}

	// A fresh snapshot recovers.
	b.ApplySnapshot(
		[]types.BookLevel{{Price: 100, Size: 5}},
		[]types.BookLevel{{Price: 101, Size: 4}},
	)
	if b.IsStale() {
		t.Error("snapshot should clear staleness")
	}
}

func TestTopBidBelowTopAskInvariant(t *testing.T) {
	t.Parallel()
	b := NewBook()

	b.ApplySnapshot(
		[]types.BookLevel{{Price: 100, Size: 1}, {Price: 99.5, Size: 2}, {Price: 98, Size: 3}},
		[]types.BookLevel{{Price: 100.5, Size: 1}, {Price: 101, Size: 2}},
	)

	for _, delta := range [][2][]types.BookLevel{
		{{{Price: 99.9, Size: 4}}, nil},
		{nil, {{Price: 100.4, Size: 1}}},
		{{{Price: 100, Size: 0}}, {{Price: 100.5, Size: 0}}},
	} {
		b.ApplyDelta(delta[0], delta[1])
		if bid, ask, ok := b.Best(); ok && bid.Price >= ask.Price {
			t.Fatalf("book crossed: bid %v >= ask %v", bid.Price, ask.Price)
		}
	}
}

func TestAvgFillPrice(t *testing.T) {
	t.Parallel()
	b := NewBook()

	b.ApplySnapshot(
		[]types.BookLevel{{Price: 99, Size: 10}},
		[]types.BookLevel{{Price: 100, Size: 1}, {Price: 110, Size: 1}},
	)

	// 100 USD notional fits entirely inside the first ask level.
	avg, ok := b.AvgFillPrice(100)
	if !ok {
		t.Fatal("expected coverage at 100 notional")
	}
	if avg != 100 {
		t.Errorf("avg = %v, want 100", avg)
	}

	// 155 USD consumes level one (100) and half of level two.
	avg, ok = b.AvgFillPrice(155)
	if !ok {
		t.Fatal("expected coverage at 155 notional")
	}
	if avg <= 100 || avg >= 110 {
		t.Errorf("avg = %v, want between 100 and 110", avg)
	}

	// More notional than the ladder holds.
	if _, ok := b.AvgFillPrice(1_000_000); ok {
		t.Error("expected no coverage beyond ladder depth")
	}
}

func TestDeltaUpsertsNewLevel(t *testing.T) {
	t.Parallel()
	b := NewBook()

	b.ApplySnapshot(
		[]types.BookLevel{{Price: 100, Size: 1}},
		[]types.BookLevel{{Price: 101, Size: 1}},
	)
	b.ApplyDelta([]types.BookLevel{{Price: 100.5, Size: 2}}, nil)

	bid, _, ok := b.Best()
	if !ok || bid.Price != 100.5 {
		t.Errorf("best bid = %v, want 100.5", bid.Price)
	}
}
