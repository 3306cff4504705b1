// Package codec implements the binary tick-batch wire format consumed
// by downstream broadcast clients.
//
// Layout (little-endian):
//
//	Header (25 bytes): magic u32 | version u8 | tick_count u32 |
//	                   batch_id u64 | timestamp_ms u64
//	Body: tick_count records of 54 bytes each:
//	      exchange u16 | pair_id u32 | price u64 | bid u64 | ask u64 |
//	      volume_24h u64 | liquidity u64 | timestamp_ms u64
//
// Prices are 8-decimal fixed-point raw values.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"arb-scanner/pkg/types"
)

// Magic identifies a tick batch: "PTKB" read little-endian.
const Magic uint32 = 0x50544B42

// Version is the current format version.
const Version uint8 = 1

const (
	headerSize = 25
	tickSize   = 54
)

// Codec error set.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrBufferTooSmall     = errors.New("buffer too small")
	ErrUnknownVenue       = errors.New("unknown exchange id")
	ErrEmptyBatch         = errors.New("empty batch")
)

// Batch is a decoded tick batch.
type Batch struct {
	BatchID     uint64
	TimestampMs uint64
	Ticks       []types.PriceTick
}

// EncodedSize returns the wire size for n ticks.
func EncodedSize(n int) int {
	return headerSize + n*tickSize
}

// EncodeBatch serializes ticks into a fresh buffer. The header timestamp
// is taken from the first tick.
func EncodeBatch(ticks []types.PriceTick, batchID uint64) []byte {
	buf := make([]byte, EncodedSize(len(ticks)))

	binary.LittleEndian.PutUint32(buf[0:], Magic)
	buf[4] = Version
	binary.LittleEndian.PutUint32(buf[5:], uint32(len(ticks)))
	binary.LittleEndian.PutUint64(buf[9:], batchID)
	var ts uint64
	if len(ticks) > 0 {
		ts = ticks[0].TimestampMs
	}
	binary.LittleEndian.PutUint64(buf[17:], ts)

	offset := headerSize
	for _, t := range ticks {
		binary.LittleEndian.PutUint16(buf[offset:], t.Venue.ID())
		binary.LittleEndian.PutUint32(buf[offset+2:], t.PairID)
		binary.LittleEndian.PutUint64(buf[offset+6:], uint64(t.Mid.Raw()))
		binary.LittleEndian.PutUint64(buf[offset+14:], uint64(t.Bid.Raw()))
		binary.LittleEndian.PutUint64(buf[offset+22:], uint64(t.Ask.Raw()))
		binary.LittleEndian.PutUint64(buf[offset+30:], uint64(t.Volume24h.Raw()))
		binary.LittleEndian.PutUint64(buf[offset+38:], uint64(t.Liquidity.Raw()))
		binary.LittleEndian.PutUint64(buf[offset+46:], t.TimestampMs)
		offset += tickSize
	}
	return buf
}

// DecodeBatch parses a tick batch.
func DecodeBatch(data []byte) (*Batch, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, headerSize, len(data))
	}

	if magic := binary.LittleEndian.Uint32(data[0:]); magic != Magic {
		return nil, ErrInvalidMagic
	}
	if version := data[4]; version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	count := int(binary.LittleEndian.Uint32(data[5:]))
	batchID := binary.LittleEndian.Uint64(data[9:])
	tsMs := binary.LittleEndian.Uint64(data[17:])

	expected := EncodedSize(count)
	if len(data) < expected {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, expected, len(data))
	}

	ticks := make([]types.PriceTick, 0, count)
	offset := headerSize
	for i := 0; i < count; i++ {
		venueID := binary.LittleEndian.Uint16(data[offset:])
		venue, ok := types.VenueFromID(venueID)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownVenue, venueID)
		}
		ticks = append(ticks, types.PriceTick{
			Venue:       venue,
			PairID:      binary.LittleEndian.Uint32(data[offset+2:]),
			Mid:         types.FixedPoint(binary.LittleEndian.Uint64(data[offset+6:])),
			Bid:         types.FixedPoint(binary.LittleEndian.Uint64(data[offset+14:])),
			Ask:         types.FixedPoint(binary.LittleEndian.Uint64(data[offset+22:])),
			Volume24h:   types.FixedPoint(binary.LittleEndian.Uint64(data[offset+30:])),
			Liquidity:   types.FixedPoint(binary.LittleEndian.Uint64(data[offset+38:])),
			Quote:       types.QuoteUSD,
			TimestampMs: binary.LittleEndian.Uint64(data[offset+46:]),
		})
		offset += tickSize
	}

	return &Batch{BatchID: batchID, TimestampMs: tsMs, Ticks: ticks}, nil
}

// EncodeTick serializes a single tick as a one-element batch.
func EncodeTick(tick types.PriceTick) []byte {
	return EncodeBatch([]types.PriceTick{tick}, 0)
}

// DecodeTick parses a one-element batch.
func DecodeTick(data []byte) (types.PriceTick, error) {
	batch, err := DecodeBatch(data)
	if err != nil {
		return types.PriceTick{}, err
	}
	if len(batch.Ticks) == 0 {
		return types.PriceTick{}, ErrEmptyBatch
	}
	return batch.Ticks[0], nil
}
