package cycle

import "triarb/internal/symbol"

const depth = 3

// partial is a cycle under construction during breadth-first expansion.
type partial struct {
	legs    []Leg
	used    map[symbol.ID]bool
	current string // the asset a further leg must consume
}

// FeeLookup returns the fee percent (e.g. 0.1 for 0.1%) to apply to orders
// on sym. Implementations typically consult default_fee with per-symbol
// overrides (spec §6's "per-symbol fees" section).
type FeeLookup func(sym symbol.ID) float64

// Enumerate computes every closed three-leg cycle starting and ending at
// startingAsset, per spec §4.4. The breadth-first expansion mirrors the
// teacher's wireAddrs/buildSplit bootstrap (router/router.go): start from
// every edge touching the anchor asset, extend one leg at a time forbidding
// symbol reuse, and keep only paths that return to the anchor at the target
// depth.
func Enumerate(cat *symbol.Catalog, startingAsset string, fee FeeLookup) *Set {
	frontier := make([]partial, 0, 64)

	for id := symbol.ID(0); int(id) < cat.Len(); id++ {
		m := cat.Meta(id)
		switch {
		case m.BaseAsset == startingAsset:
			frontier = append(frontier, extend(nil, id, false, m, startingAsset, fee))
		case m.QuoteAsset == startingAsset:
			frontier = append(frontier, extend(nil, id, true, m, startingAsset, fee))
		}
	}

	for step := 1; step < depth; step++ {
		next := make([]partial, 0, len(frontier))
		for _, p := range frontier {
			for id := symbol.ID(0); int(id) < cat.Len(); id++ {
				if p.used[id] {
					continue
				}
				m := cat.Meta(id)
				switch {
				case m.QuoteAsset == p.current:
					next = append(next, extend(p.legs, id, true, m, p.current, fee))
				case m.BaseAsset == p.current:
					next = append(next, extend(p.legs, id, false, m, p.current, fee))
				}
			}
		}
		frontier = next
	}

	cycles := make([]Cycle, 0, len(frontier))
	for _, p := range frontier {
		if len(p.legs) != depth {
			continue
		}
		if p.current != startingAsset {
			continue
		}
		cycles = append(cycles, build(cat, p.legs))
	}

	return newSet(cycles)
}

// extend appends one leg (symbolID, isBuy) to priorLegs and returns the new
// partial, whose `current` is the resulting asset of the new leg: Buy(B/Q)
// goes Q->B (resulting asset B, the base); Sell(B/Q) goes B->Q (resulting
// asset Q, the quote).
func extend(priorLegs []Leg, id symbol.ID, isBuy bool, m symbol.Meta, from string, fee FeeLookup) partial {
	legs := make([]Leg, len(priorLegs), len(priorLegs)+1)
	copy(legs, priorLegs)

	feePct := fee(id)
	legs = append(legs, Leg{
		SymbolID:      id,
		IsBuy:         isBuy,
		FeePercent:    feePct,
		FeeMultiplier: 1 - feePct/100,
	})

	used := make(map[symbol.ID]bool, len(legs))
	for _, l := range legs {
		used[l.SymbolID] = true
	}

	resulting := m.QuoteAsset
	if isBuy {
		resulting = m.BaseAsset
	}

	return partial{legs: legs, used: used, current: resulting}
}

func build(cat *symbol.Catalog, legs []Leg) Cycle {
	c := Cycle{}
	copy(c.Legs[:], legs)
	c.Description = describe(cat, c.Legs)
	return c
}

func describe(cat *symbol.Catalog, legs [3]Leg) string {
	s := ""
	for i, l := range legs {
		if i > 0 {
			s += " -> "
		}
		dir := "SELL"
		if l.IsBuy {
			dir = "BUY"
		}
		s += dir + " " + cat.Registry.Name(l.SymbolID)
	}
	return s
}
