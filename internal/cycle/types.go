// Package cycle enumerates closed three-leg arbitrage cycles over a symbol
// catalog and indexes them for O(delta) reactivation on a quote update, per
// spec §3 and §4.4.
//
// The enumeration here generalizes the teacher's router.parseCycles /
// wireAddrs / buildSplit bootstrap (router/router.go, router/update.go),
// which wires fixed 3-pool EVM triangles read from a flat file into a
// per-core fan-out table. This package performs the equivalent breadth-first
// expansion directly from the symbol catalog instead of a pre-computed file,
// since a centralized exchange's tradable-pair set is discovered at
// start-up via the REST collaborator rather than fixed at build time.
package cycle

import "triarb/internal/symbol"

// Side is the direction of one leg.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// OrderKind distinguishes limit vs market orders. The core only ever emits
// Market (spec §4.6), but the type exists so the Order shape matches spec
// §3 exactly.
type OrderKind int

const (
	Market OrderKind = iota
	Limit
)

// Order is one leg's instruction, per spec §3. Qty and Price are mutated
// during evaluation and final on emission. FeeMultiplier carries the leg's
// fee factor (1 - fee_percent/100) forward so a later re-derivation of PnL
// from realized fills (spec §4.6's "traced PnL") can apply the same fee
// the Evaluator assumed.
type Order struct {
	SymbolID      symbol.ID
	Side          Side
	Kind          OrderKind
	Qty           float64
	Price         float64
	FeeMultiplier float64
}

// Leg is one immutable component of a Cycle: which symbol, which direction,
// and its fee multiplier, computed once at construction (spec §3).
type Leg struct {
	SymbolID      symbol.ID
	IsBuy         bool
	FeePercent    float64
	FeeMultiplier float64 // 1 - FeePercent/100
}

// Cycle is a closed three-leg path back to the starting asset. All fields
// are computed once during enumeration and never mutated afterward (spec
// §3, §4.4).
type Cycle struct {
	Legs        [3]Leg
	Description string
}

// SymbolIDs returns the three leg symbol ids, in leg order.
func (c *Cycle) SymbolIDs() [3]symbol.ID {
	return [3]symbol.ID{c.Legs[0].SymbolID, c.Legs[1].SymbolID, c.Legs[2].SymbolID}
}

// Signal is the emitted executable proposal: three priced/sized orders plus
// the theoretical PnL that justified emitting them (spec §3).
type Signal struct {
	Orders         [3]Order
	Description    string
	TheoreticalPnL float64
}
