package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundQtyWithStep(t *testing.T) {
	s := &Set{LotSize: LotSize{MinQty: 0.001, MaxQty: 100, StepSize: 0.01}}
	assert.InDelta(t, 0.12, s.RoundQty(0.129), 1e-9)
}

func TestRoundQtyNoStepClampsOnly(t *testing.T) {
	s := &Set{LotSize: LotSize{MinQty: 1, MaxQty: 10}}
	assert.Equal(t, 1.0, s.RoundQty(0.5))
	assert.Equal(t, 10.0, s.RoundQty(50))
	assert.Equal(t, 5.0, s.RoundQty(5))
}

func TestRoundMarketQtyFallsBackToLotSize(t *testing.T) {
	s := &Set{LotSize: LotSize{MinQty: 0, MaxQty: 100, StepSize: 0.1}}
	assert.InDelta(t, 1.2, s.RoundMarketQty(1.23), 1e-9)
}

func TestRoundMarketQtyUsesMarketLotSizeWhenSet(t *testing.T) {
	s := &Set{
		LotSize:       LotSize{MinQty: 0, MaxQty: 100, StepSize: 0.1},
		MarketLotSize: LotSize{MinQty: 0, MaxQty: 100, StepSize: 1},
	}
	assert.Equal(t, 1.0, s.RoundMarketQty(1.9))
}

func TestValidateNotionalRejectsBelowMin(t *testing.T) {
	s := &Set{Notional: Notional{Min: 10, ApplyMinToMarket: true}}
	assert.False(t, s.ValidateNotional(1, 5, true))
	assert.True(t, s.ValidateNotional(1, 15, true))
}

func TestValidateNotionalHonorsApplyToMarketToggle(t *testing.T) {
	s := &Set{Notional: Notional{Min: 1000, ApplyMinToMarket: false}}
	assert.True(t, s.ValidateNotional(1, 1, true)) // toggle off: market orders skip this check
}

func TestMinQtyForNotional(t *testing.T) {
	s := &Set{
		LotSize:  LotSize{MinQty: 0.001, StepSize: 0.001},
		Notional: Notional{Min: 10},
	}
	got := s.MinQtyForNotional(50000)
	assert.InDelta(t, 0.001, got, 1e-9)

	got2 := s.MinQtyForNotional(5)
	assert.InDelta(t, 2.0, got2, 1e-9)
}
