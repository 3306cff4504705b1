// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the scanner: fixed-point
// prices, venue/chain/quote identifiers, price ticks, and the channel
// message types exchanged between the WebSocket layer, the feed runners,
// and the feed handler. It has no dependencies on internal packages, so
// it can be imported by any layer.
package types

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// fpScale is the fixed-point denominator: all prices carry 8 decimals.
const fpScale = 100_000_000

// FixedPoint is a signed 8-decimal fixed-point value: the raw int64 is
// the value multiplied by 10^8. Venue prices, sizes, and cross rates are
// all carried in this representation so comparisons and premium math are
// exact. Overflow at |value| >= 2^63/10^8 (~92 billion) is a programming
// error, not a runtime condition.
type FixedPoint int64

// FP constructs a FixedPoint from a float64, rounding to 8 decimals.
func FP(v float64) FixedPoint {
	return FixedPoint(math.Round(v * fpScale))
}

// ParseFixedPoint converts a decimal string (the form venues quote prices
// in) to a FixedPoint without an intermediate float64 round-trip.
func ParseFixedPoint(s string) (FixedPoint, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse fixed point %q: %w", s, err)
	}
	return FixedPoint(d.Shift(8).IntPart()), nil
}

// Float converts back to float64.
func (f FixedPoint) Float() float64 {
	return float64(f) / fpScale
}

// Raw returns the underlying scaled integer.
func (f FixedPoint) Raw() int64 { return int64(f) }

// Add returns f + other.
func (f FixedPoint) Add(other FixedPoint) FixedPoint { return f + other }

// Sub returns f - other.
func (f FixedPoint) Sub(other FixedPoint) FixedPoint { return f - other }

// MulInt returns f scaled by an integer factor.
func (f FixedPoint) MulInt(n int64) FixedPoint { return FixedPoint(int64(f) * n) }

// IsZero reports whether the value is exactly zero.
func (f FixedPoint) IsZero() bool { return f == 0 }

// Cmp compares f to other: -1 if f < other, 0 if equal, +1 if f > other.
func (f FixedPoint) Cmp(other FixedPoint) int {
	switch {
	case f < other:
		return -1
	case f > other:
		return 1
	default:
		return 0
	}
}

func (f FixedPoint) String() string {
	return decimal.New(int64(f), -8).String()
}

// PremiumBps computes the premium of selling at sell after buying at buy,
// in basis points: (sell - buy) / buy * 10000. Returns 0 when buy is zero.
func PremiumBps(buy, sell FixedPoint) int32 {
	if buy == 0 {
		return 0
	}
	return int32(int64(sell-buy) * 10_000 / int64(buy))
}
