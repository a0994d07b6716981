package cycle

import (
	"sort"

	"triarb/internal/book"
	"triarb/internal/symbol"
)

// Set is the frozen collection of enumerated cycles plus the inverted index
// symbol_id -> [cycle indices], built once at initialization (spec §4.4) and
// shared by reference without synchronization thereafter (spec §5).
//
// The inverted index itself generalizes the teacher's CoreRouter.fanOut
// table (router/update.go): there, a pool address maps to the small set of
// ArbPath legs it feeds; here, a SymbolId maps to the small set of Cycle
// indices it participates in.
type Set struct {
	Cycles      []Cycle
	invertedIdx [symbol.MaxSymbols][]int
}

func newSet(cycles []Cycle) *Set {
	s := &Set{Cycles: cycles}
	for ci, c := range cycles {
		for _, id := range c.SymbolIDs() {
			s.invertedIdx[id] = append(s.invertedIdx[id], ci)
		}
	}
	return s
}

// Len reports how many cycles are in the set.
func (s *Set) Len() int {
	return len(s.Cycles)
}

// Scratch is a fixed-size bitmap of size |cycles| used to deduplicate cycle
// indices while materializing the affected-cycle set (spec §4.5 step 2). Its
// capacity matches symbol.MaxSymbols cubed in the worst case, but in
// practice the number of live cycles is far smaller; callers size it once
// via NewScratch and reuse it across calls to avoid hot-path allocation.
type Scratch struct {
	seen []bool
}

// NewScratch allocates a reusable dedup scratch sized to s.
func (s *Set) NewScratch() *Scratch {
	return &Scratch{seen: make([]bool, len(s.Cycles))}
}

// Affected materializes the set of cycle indices touched by any bit set in
// bm, deduplicating via scratch, and returns them in dst's backing array
// (dst is truncated first, so callers may pass a reused slice or nil), in
// ascending cycle-index order. This is spec §4.5 step 2: "iterate set
// bits in the update bitmap and union the inverted-index entries,
// deduplicating via a scratch bitmap" — the ascending order is required by
// the Evaluator's tie-break rule (spec §4.5: "on exact equality, the first
// evaluated by cycle index is retained"), so emission order here cannot
// simply follow symbol-visitation order.
func (s *Set) Affected(bm *book.Bitmap, scratch *Scratch, dst []int) []int {
	dst = dst[:0]
	bm.ForEach(func(id symbol.ID) {
		for _, ci := range s.invertedIdx[id] {
			if scratch.seen[ci] {
				continue
			}
			scratch.seen[ci] = true
			dst = append(dst, ci)
		}
	})
	// reset only the indices we touched, so Scratch stays O(affected) per call
	for _, ci := range dst {
		scratch.seen[ci] = false
	}
	sort.Ints(dst)
	return dst
}
