package filter

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRoundQty_Monotonicity_Property verifies invariant #6 from spec §8:
// round_qty(q) <= q for all q >= 0, and the rounding error stays strictly
// below one step.
func TestRoundQty_Monotonicity_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("round_qty never rounds up and never drifts by more than one step", prop.ForAll(
		func(q, step float64) bool {
			if q < 0 {
				q = -q
			}
			if step <= 0 {
				step = 0.01
			}

			s := &Set{LotSize: LotSize{MinQty: 0, MaxQty: 0, StepSize: step}}
			rounded := s.RoundQty(q)

			if rounded > q {
				return false
			}
			return math.Abs(q-rounded) < step || rounded == q
		},
		gen.Float64Range(0, 1e9),
		gen.Float64Range(0.0001, 1000),
	))

	properties.TestingRun(t)
}
