package book

import (
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"triarb/internal/symbol"
)

// TestBook_NoTornReads_Property is the property-test form of scenario S6: a
// writer alternates between two arbitrary non-zero (bid, ask) pairs while a
// concurrent reader samples the slot; every sample must equal one of the two
// pairs, never a torn mix of one pair's bid with the other's ask.
func TestBook_NoTornReads_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent reads never observe a torn (bid, ask) pair", prop.ForAll(
		func(bid1, ask1, bid2, ask2 float64) bool {
			if bid1 == 0 {
				bid1 = 1
			}
			if ask1 == 0 {
				ask1 = 1
			}
			if bid2 == 0 {
				bid2 = 1
			}
			if ask2 == 0 {
				ask2 = 1
			}

			b := New()
			const id = symbol.ID(0)

			var wg sync.WaitGroup
			torn := false
			var mu sync.Mutex

			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					q := b.Read(id)
					if q == (Quote{}) {
						continue
					}
					if q != (Quote{Bid: bid1, Ask: ask1}) && q != (Quote{Bid: bid2, Ask: ask2}) {
						mu.Lock()
						torn = true
						mu.Unlock()
					}
				}
			}()

			for i := 0; i < 500; i++ {
				if i%2 == 0 {
					b.Update(id, bid1, ask1)
				} else {
					b.Update(id, bid2, ask2)
				}
			}
			wg.Wait()

			mu.Lock()
			defer mu.Unlock()
			return !torn
		},
		gen.Float64Range(0.01, 1e6),
		gen.Float64Range(0.01, 1e6),
		gen.Float64Range(0.01, 1e6),
		gen.Float64Range(0.01, 1e6),
	))

	properties.TestingRun(t)
}
