// Package simbroker implements broker.Broker for spec §4.6's test mode:
// every order fills instantaneously and completely at its estimated price,
// so the Executor state machine runs unmodified with no real position ever
// taken. The fill-bookkeeping shape (a map of id to resolved state) is
// grounded on the teacher's pack-mate paper.Executor
// (Song-Mao-bittap-watch/internal/core/paper/executor.go), simplified from
// that package's spread-position model down to single-order fills.
package simbroker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"triarb/internal/broker"
)

// Broker is an in-memory, always-instantly-filled broker.Broker.
type Broker struct {
	mu     sync.Mutex
	orders map[string]broker.OrderState
}

// New constructs an empty simulated broker.
func New() *Broker {
	return &Broker{orders: make(map[string]broker.OrderState)}
}

func (b *Broker) place(qty, estPrice float64) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.orders[id] = broker.OrderState{FilledQty: qty, AvgPrice: estPrice}
	b.mu.Unlock()
	return id
}

// SendMarketOrder simulates the same instantaneous full fill as
// TestMarketOrder. In test mode (spec §4.6) the Orchestrator never routes
// real orders to this implementation, but the method exists so Broker is
// satisfied uniformly.
func (b *Broker) SendMarketOrder(_ context.Context, _ string, _ broker.Side, qty, estPrice float64) (string, error) {
	return b.place(qty, estPrice), nil
}

// TestMarketOrder fills qty completely at estPrice, per spec §6.
func (b *Broker) TestMarketOrder(_ context.Context, _ string, _ broker.Side, qty, estPrice float64) (string, error) {
	return b.place(qty, estPrice), nil
}

// WaitForCompletion always returns Filled immediately: the order was
// resolved synchronously at placement time.
func (b *Broker) WaitForCompletion(_ context.Context, clOrdID string, _ time.Duration) (broker.TerminalStatus, error) {
	b.mu.Lock()
	_, ok := b.orders[clOrdID]
	b.mu.Unlock()
	if !ok {
		return broker.Unknown, nil
	}
	return broker.Filled, nil
}

// GetOrderState returns the recorded simulated fill.
func (b *Broker) GetOrderState(clOrdID string) (broker.OrderState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orders[clOrdID], nil
}
