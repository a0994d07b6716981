// Package filter implements the exchange lot-size/notional/price rules
// described in spec §3 and §4.3, and the quantity rounding they gate.
package filter

import "math"

// LotSize bounds and steps a quantity. StepSize == 0 means "no step, just
// clamp"; MaxQty == 0 means "no ceiling".
type LotSize struct {
	MinQty   float64
	MaxQty   float64
	StepSize float64
}

// Notional bounds the price*qty product of an order.
type Notional struct {
	Min              float64
	Max              float64
	ApplyMinToMarket bool
	ApplyMaxToMarket bool
}

// MinNotional is a second, independently-configurable notional floor some
// exchanges expose alongside Notional.
type MinNotional struct {
	Min           float64
	ApplyToMarket bool
}

// PriceFilter bounds and ticks a limit price. The core never emits limit
// orders (spec §4.6 only ever produces Market orders), but the filter is
// still parsed and carried per spec §3 for completeness and future use.
type PriceFilter struct {
	Min      float64
	Max      float64
	TickSize float64
}

// Set is the subset of one symbol's exchange filters that gate execution,
// per spec §3. MarketLotSize, when its fields are all zero, falls back to
// LotSize (spec §4.3).
type Set struct {
	LotSize       LotSize
	MarketLotSize LotSize
	Notional      Notional
	MinNotional   MinNotional
	PriceFilter   PriceFilter
}

func (l LotSize) isZero() bool {
	return l.MinQty == 0 && l.MaxQty == 0 && l.StepSize == 0
}

func clamp(v, lo, hi float64) float64 {
	if hi > 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// roundToward rounds q toward zero to the nearest multiple of step, then
// clamps into [min, max]. Rounding toward zero — never up — avoids
// exceeding an exchange-imposed ceiling (spec §4.3).
func roundToward(q float64, l LotSize) float64 {
	if l.StepSize > 0 {
		q = math.Floor(q/l.StepSize) * l.StepSize
	}
	return clamp(q, l.MinQty, l.MaxQty)
}

// RoundQty applies spec §4.3's round_qty using the regular LotSize.
func (s *Set) RoundQty(q float64) float64 {
	return roundToward(q, s.LotSize)
}

// RoundMarketQty applies spec §4.3's round_market_qty: use MarketLotSize,
// falling back to LotSize when MarketLotSize is unset.
func (s *Set) RoundMarketQty(q float64) float64 {
	l := s.MarketLotSize
	if l.isZero() {
		l = s.LotSize
	}
	return roundToward(q, l)
}

// ValidateNotional enforces MinNotional and Notional.Min/Max per spec §4.3,
// honoring the apply-to-market toggles. isMarket should be true for the
// market orders this core always emits.
func (s *Set) ValidateNotional(price, qty float64, isMarket bool) bool {
	notional := price * qty

	if s.MinNotional.Min > 0 {
		if !isMarket || s.MinNotional.ApplyToMarket {
			if notional < s.MinNotional.Min {
				return false
			}
		}
	}

	if s.Notional.Min > 0 {
		if !isMarket || s.Notional.ApplyMinToMarket {
			if notional < s.Notional.Min {
				return false
			}
		}
	}
	if s.Notional.Max > 0 {
		if !isMarket || s.Notional.ApplyMaxToMarket {
			if notional > s.Notional.Max {
				return false
			}
		}
	}

	return true
}

// MinQtyForNotional returns the smallest quantity, rounded up to a step
// boundary, that satisfies both the lot-size minimum and the notional floor
// at the given price: ceil_to_step(max(lot_min, notional_min / price)).
func (s *Set) MinQtyForNotional(price float64) float64 {
	floor := s.LotSize.MinQty
	if s.Notional.Min > 0 && price > 0 {
		needed := s.Notional.Min / price
		if needed > floor {
			floor = needed
		}
	}
	if s.MinNotional.Min > 0 && price > 0 {
		needed := s.MinNotional.Min / price
		if needed > floor {
			floor = needed
		}
	}

	if s.LotSize.StepSize > 0 {
		return math.Ceil(floor/s.LotSize.StepSize) * s.LotSize.StepSize
	}
	return floor
}
