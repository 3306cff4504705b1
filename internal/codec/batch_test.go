package codec

import (
	"errors"
	"testing"

	"arb-scanner/pkg/types"
)

func sampleTicks() []types.PriceTick {
	t1 := types.PriceTick{
		Venue: types.VenueBinance, PairID: 1,
		Mid: types.FP(50000.0), Bid: types.FP(49999.0), Ask: types.FP(50001.0),
		Quote: types.QuoteUSD, TimestampMs: 1_700_000_000_000,
	}
	t2 := types.PriceTick{
		Venue: types.VenueCoinbase, PairID: 2,
		Mid: types.FP(50100.0), Bid: types.FP(50099.0), Ask: types.FP(50101.0),
		Quote: types.QuoteUSD, TimestampMs: 1_700_000_000_000,
	}
	return []types.PriceTick{t1, t2}
}

func TestBatchEncodedSizeAndMagic(t *testing.T) {
	t.Parallel()

	data := EncodeBatch(sampleTicks(), 1)
	if len(data) != 133 { // 25 header + 2*54
		t.Fatalf("encoded length = %d, want 133", len(data))
	}
	if data[0] != 0x42 || data[1] != 0x4B || data[2] != 0x54 || data[3] != 0x50 {
		t.Errorf("magic bytes wrong: % x", data[:4])
	}
	if data[4] != Version {
		t.Errorf("version byte = %d, want %d", data[4], Version)
	}
}

func TestBatchRoundTrip(t *testing.T) {
	t.Parallel()

	ticks := sampleTicks()
	data := EncodeBatch(ticks, 1)

	batch, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if batch.BatchID != 1 {
		t.Errorf("batch id = %d, want 1", batch.BatchID)
	}
	if batch.TimestampMs != 1_700_000_000_000 {
		t.Errorf("timestamp = %d", batch.TimestampMs)
	}
	if len(batch.Ticks) != len(ticks) {
		t.Fatalf("decoded %d ticks, want %d", len(batch.Ticks), len(ticks))
	}

	for i, want := range ticks {
		got := batch.Ticks[i]
		if got.Venue != want.Venue || got.PairID != want.PairID {
			t.Errorf("tick %d identity: got %v/%d", i, got.Venue, got.PairID)
		}
		if got.Mid != want.Mid || got.Bid != want.Bid || got.Ask != want.Ask {
			t.Errorf("tick %d prices differ", i)
		}
		if got.Volume24h != want.Volume24h || got.Liquidity != want.Liquidity {
			t.Errorf("tick %d volume/liquidity differ", i)
		}
		if got.TimestampMs != want.TimestampMs {
			t.Errorf("tick %d timestamp differs", i)
		}
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	t.Parallel()

	data := EncodeBatch(sampleTicks(), 1)
	data[0] = 0x00
	if _, err := DecodeBatch(data); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("err = %v, want ErrInvalidMagic", err)
	}
}

func TestDecodeBufferTooSmall(t *testing.T) {
	t.Parallel()

	if _, err := DecodeBatch([]byte{0x42, 0x4B, 0x54, 0x50}); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("err = %v, want ErrBufferTooSmall", err)
	}

	// Valid header claiming more ticks than the body carries.
	data := EncodeBatch(sampleTicks(), 1)
	if _, err := DecodeBatch(data[:len(data)-10]); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("truncated err = %v, want ErrBufferTooSmall", err)
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	t.Parallel()

	data := EncodeBatch(sampleTicks(), 1)
	data[4] = 99
	if _, err := DecodeBatch(data); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecodeUnknownVenue(t *testing.T) {
	t.Parallel()

	data := EncodeBatch(sampleTicks(), 1)
	// First tick's exchange field sits right after the header.
	data[25] = 0xFF
	data[26] = 0xFF
	if _, err := DecodeBatch(data); !errors.Is(err, ErrUnknownVenue) {
		t.Errorf("err = %v, want ErrUnknownVenue", err)
	}
}

func TestSingleTickRoundTrip(t *testing.T) {
	t.Parallel()

	want := sampleTicks()[0]
	got, err := DecodeTick(EncodeTick(want))
	if err != nil {
		t.Fatalf("DecodeTick: %v", err)
	}
	if got.Venue != want.Venue || got.Mid != want.Mid {
		t.Error("single tick round trip mismatch")
	}
}
