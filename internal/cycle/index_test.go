package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triarb/internal/book"
	"triarb/internal/symbol"
)

func TestAffectedUnionsInvertedIndexEntriesAndDedupes(t *testing.T) {
	cat := usdtCatalog(t)
	set := Enumerate(cat, "USDT", constFee(0.1))
	require.Equal(t, 2, set.Len())

	btcusdt := cat.Registry.GetID("BTCUSDT")
	ethbtc := cat.Registry.GetID("ETHBTC")

	b := book.New()
	b.Update(btcusdt, 1, 1)
	b.Update(ethbtc, 1, 1) // both symbols feed both cycles
	bm := b.Consume()

	scratch := set.NewScratch()
	affected := set.Affected(&bm, scratch, nil)

	assert.Equal(t, []int{0, 1}, affected)
}

// TestAffectedEmitsAscendingCycleIndexOrderRegardlessOfSymbolVisitationOrder
// builds an inverted index where a low symbol ID's cycle list starts with a
// high cycle index ([100]) and a high symbol ID's list starts with a low
// one ([5, 100]), so appending in symbol-visitation order (as bm.ForEach
// walks ascending SymbolID) would yield [100, 5] — out of order. Affected
// must still emit ascending cycle-index order, since the Evaluator's
// tie-break rule (spec §4.5: "on exact equality, the first evaluated by
// cycle index is retained") depends on it.
func TestAffectedEmitsAscendingCycleIndexOrderRegardlessOfSymbolVisitationOrder(t *testing.T) {
	symA := symbol.ID(1) // only in cycle 100
	symB := symbol.ID(2) // in cycles 5 and 100

	cycles := make([]Cycle, 101)
	cycles[5] = Cycle{Legs: [3]Leg{{SymbolID: symB}, {SymbolID: 3}, {SymbolID: 4}}}
	cycles[100] = Cycle{Legs: [3]Leg{{SymbolID: symA}, {SymbolID: symB}, {SymbolID: 6}}}

	set := newSet(cycles)

	b := book.New()
	b.Update(symA, 1, 1)
	b.Update(symB, 1, 1)
	bm := b.Consume()

	scratch := set.NewScratch()
	affected := set.Affected(&bm, scratch, nil)

	assert.Equal(t, []int{5, 100}, affected)
}

func TestAffectedScratchIsReusableAcrossCalls(t *testing.T) {
	cat := usdtCatalog(t)
	set := Enumerate(cat, "USDT", constFee(0.1))
	ethusdt := cat.Registry.GetID("ETHUSDT")

	b := book.New()
	scratch := set.NewScratch()

	b.Update(ethusdt, 1, 1)
	bm1 := b.Consume()
	first := set.Affected(&bm1, scratch, nil)
	assert.NotEmpty(t, first)

	b.Update(ethusdt, 2, 2)
	bm2 := b.Consume()
	second := set.Affected(&bm2, scratch, nil)
	assert.Equal(t, first, second)
}
