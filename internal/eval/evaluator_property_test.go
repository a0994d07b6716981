package eval

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"triarb/internal/book"
	"triarb/internal/cycle"
	"triarb/internal/filter"
	"triarb/internal/symbol"
)

// TestFastScreen_Soundness_Property is spec §8 invariant #7: if the raw,
// unrounded multiplier ratio for a cycle is at or below 1, full evaluation
// on the same book state must not be able to produce a strictly positive
// PnL. With no exchange filters configured, RoundMarketQty is the identity
// function, so full evaluation's final balance equals stake*ratio exactly.
func TestFastScreen_Soundness_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	cat := symbol.NewCatalog()
	for _, m := range []symbol.Meta{
		{DisplayName: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"},
		{DisplayName: "ETHBTC", BaseAsset: "ETH", QuoteAsset: "BTC"},
		{DisplayName: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT"},
	} {
		if _, err := cat.Add(m); err != nil {
			t.Fatal(err)
		}
	}
	set := cycle.Enumerate(cat, "USDT", func(symbol.ID) float64 { return 0.1 })

	properties.Property("raw ratio at or below 1 implies no positive PnL", prop.ForAll(
		func(btcBid, btcAsk, ethbtcBid, ethbtcAsk, ethusdtBid, ethusdtAsk float64) bool {
			b := book.New()
			b.Update(cat.Registry.GetID("BTCUSDT"), btcBid, btcAsk)
			b.Update(cat.Registry.GetID("ETHBTC"), ethbtcBid, ethbtcAsk)
			b.Update(cat.Registry.GetID("ETHUSDT"), ethusdtBid, ethusdtAsk)

			e := New(b, set, cat)

			for i := range set.Cycles {
				c := &set.Cycles[i]
				ratio, valid := e.cycleRatio(c)
				if !valid || ratio > 1 {
					continue // not the case this invariant constrains
				}
				if _, ok := e.fullEvaluate(c, 100); ok {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.001, 1e6),
		gen.Float64Range(0.001, 1e6),
		gen.Float64Range(0.001, 1e6),
		gen.Float64Range(0.001, 1e6),
		gen.Float64Range(0.001, 1e6),
		gen.Float64Range(0.001, 1e6),
	))

	properties.TestingRun(t)
}

// TestFullEvaluate_RejectsUnfillableLot guards the zero-floor edge of lot
// rounding: when MinQty is unset, a step too coarse for the available
// quantity floors to zero rather than clamping up, and must reject rather
// than emit a zero-size order.
func TestFullEvaluate_RejectsUnfillableLot(t *testing.T) {
	cat := symbol.NewCatalog()
	for _, m := range []symbol.Meta{
		{DisplayName: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"},
		{DisplayName: "ETHBTC", BaseAsset: "ETH", QuoteAsset: "BTC", Filters: filter.Set{
			LotSize: filter.LotSize{StepSize: 1000},
		}},
		{DisplayName: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT"},
	} {
		if _, err := cat.Add(m); err != nil {
			t.Fatal(err)
		}
	}
	set := cycle.Enumerate(cat, "USDT", func(symbol.ID) float64 { return 0.1 })
	b := book.New()
	b.Update(cat.Registry.GetID("BTCUSDT"), 50000, 50001)
	b.Update(cat.Registry.GetID("ETHBTC"), 0, 0.058)
	b.Update(cat.Registry.GetID("ETHUSDT"), 3000, 3001)

	e := New(b, set, cat)
	for i := range set.Cycles {
		if _, ok := e.fullEvaluate(&set.Cycles[i], 100); ok {
			t.Fatalf("cycle %d should have been unfillable at this lot size", i)
		}
	}
}
