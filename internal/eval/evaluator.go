// Package eval implements the two-stage cycle evaluation described in spec
// §4.5: a branch-light fast ratio screen, followed by a full evaluation that
// applies exchange filters and produces an executable order trio.
//
// The affected-cycle fan-out this package drives is the generalized form of
// the teacher's onPriceUpdate hot path (router/update.go): there, one tick
// update recomputes a small, pre-wired set of ArbPath sums; here, one Update
// Bitmap snapshot recomputes a small, pre-wired set of Cycles via the same
// inverted-index shape.
package eval

import (
	"triarb/internal/book"
	"triarb/internal/cycle"
	"triarb/internal/symbol"
)

// DefaultMinProfitRatio is spec §4.5's configured threshold default.
const DefaultMinProfitRatio = 1.0001

// Evaluator holds read-only references to the Order Book, the Cycle Set,
// and the Symbol Catalog (for per-symbol filters). It never takes locks: all
// book reads go through the wait-free seqlock protocol (spec §4.5
// "Concurrency").
type Evaluator struct {
	Book           *book.Book
	Cycles         *cycle.Set
	Catalog        *symbol.Catalog
	MinProfitRatio float64

	scratch *cycle.Scratch
	hits    []int
}

// New constructs an Evaluator over an already-frozen cycle set.
func New(b *book.Book, cycles *cycle.Set, cat *symbol.Catalog) *Evaluator {
	return &Evaluator{
		Book:           b,
		Cycles:         cycles,
		Catalog:        cat,
		MinProfitRatio: DefaultMinProfitRatio,
		scratch:        cycles.NewScratch(),
	}
}

// OnUpdate is spec §4.5's entry point. It returns the highest strictly
// profitable Signal among the cycles affected by bm, or ok=false if no
// profitable cycle was found (or stake/cycle-set preconditions failed).
func (e *Evaluator) OnUpdate(bm *book.Bitmap, stake float64) (sig cycle.Signal, ok bool) {
	if stake <= 0 || e.Cycles.Len() == 0 {
		return cycle.Signal{}, false
	}

	e.hits = e.Cycles.Affected(bm, e.scratch, e.hits)

	best := cycle.Signal{}
	found := false

	for _, ci := range e.hits {
		c := &e.Cycles.Cycles[ci]

		if !e.fastScreen(c) {
			continue
		}

		candidate, pnlOK := e.fullEvaluate(c, stake)
		if !pnlOK {
			continue
		}

		if !found || candidate.TheoreticalPnL > best.TheoreticalPnL {
			best = candidate
			found = true
		}
	}

	return best, found
}

// fastScreen is spec §4.5's fast ratio screen: reject cycles with any
// invalid leg quote, or whose product of effective-multiplier*fee-multiplier
// does not clear MinProfitRatio.
func (e *Evaluator) fastScreen(c *cycle.Cycle) bool {
	ratio, valid := e.cycleRatio(c)
	return valid && ratio > e.MinProfitRatio
}

// cycleRatio computes the raw product of effective-multiplier*fee-multiplier
// across c's three legs against the current book snapshot, with no
// rounding applied. valid is false if any leg's required side of the quote
// has not yet been observed.
func (e *Evaluator) cycleRatio(c *cycle.Cycle) (ratio float64, valid bool) {
	ids := c.SymbolIDs()
	q0, q1, q2 := e.Book.ReadTriple(ids[0], ids[1], ids[2])
	quotes := [3]book.Quote{q0, q1, q2}

	ratio = 1.0
	for i, leg := range c.Legs {
		q := quotes[i]
		var mult float64
		if leg.IsBuy {
			if q.Ask <= 0 {
				return 0, false
			}
			mult = 1 / q.Ask
		} else {
			if q.Bid <= 0 {
				return 0, false
			}
			mult = q.Bid
		}
		ratio *= mult * leg.FeeMultiplier
	}

	return ratio, true
}

// fullEvaluate is spec §4.5's full evaluation pass: walk the three legs
// applying exchange lot-size rounding, rejecting on an unfillable leg, and
// emitting a Signal iff the final PnL is strictly positive.
func (e *Evaluator) fullEvaluate(c *cycle.Cycle, stake float64) (cycle.Signal, bool) {
	ids := c.SymbolIDs()
	q0, q1, q2 := e.Book.ReadTriple(ids[0], ids[1], ids[2])
	quotes := [3]book.Quote{q0, q1, q2}

	var orders [3]cycle.Order
	current := stake

	for i, leg := range c.Legs {
		q := quotes[i]
		m := e.Catalog.Meta(leg.SymbolID)

		if leg.IsBuy {
			if q.Ask <= 0 {
				return cycle.Signal{}, false
			}
			raw := current / q.Ask
			rounded := m.Filters.RoundMarketQty(raw)
			if rounded <= 0 || !m.Filters.ValidateNotional(q.Ask, rounded, true) {
				return cycle.Signal{}, false
			}
			orders[i] = cycle.Order{
				SymbolID:      leg.SymbolID,
				Side:          cycle.Buy,
				Kind:          cycle.Market,
				Qty:           raw,
				Price:         q.Ask,
				FeeMultiplier: leg.FeeMultiplier,
			}
			// The rounding check above only gates validity (can the
			// exchange actually fill a lot this size?); the carried
			// balance advances on the unrounded raw amount, per spec.
			current = raw * leg.FeeMultiplier
		} else {
			if q.Bid <= 0 {
				return cycle.Signal{}, false
			}
			rounded := m.Filters.RoundMarketQty(current)
			if rounded <= 0 || !m.Filters.ValidateNotional(q.Bid, rounded, true) {
				return cycle.Signal{}, false
			}
			orders[i] = cycle.Order{
				SymbolID:      leg.SymbolID,
				Side:          cycle.Sell,
				Kind:          cycle.Market,
				Qty:           rounded,
				Price:         q.Bid,
				FeeMultiplier: leg.FeeMultiplier,
			}
			current = rounded * q.Bid * leg.FeeMultiplier
		}
	}

	pnl := current - stake
	if pnl <= 0 {
		return cycle.Signal{}, false
	}

	return cycle.Signal{
		Orders:         orders,
		Description:    c.Description,
		TheoreticalPnL: pnl,
	}, true
}
