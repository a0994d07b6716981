// Package feed defines the quote-feed collaborator boundary from spec §6:
// subscribe to a symbol set, wait for an initial snapshot per symbol, and
// push every decoded update into the Order Book.
package feed

import (
	"context"
	"time"

	"triarb/internal/book"
	"triarb/internal/symbol"
)

// Feed is the quote-feed collaborator. Subscribe/Unsubscribe take canonical
// display names (e.g. "BTCUSDT"); WaitForSnapshots blocks until every
// subscribed symbol has delivered at least one update, or timeout elapses.
type Feed interface {
	Subscribe(ctx context.Context, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
	WaitForSnapshots(timeout time.Duration) (received, expected int)
	Run(ctx context.Context)
	Close() error
}

// Sink is the non-owning reference a concrete Feed implementation is handed
// at construction, per spec §9 "Cyclic ownership between Feeder and Order
// Book": the feed only ever calls Update, never anything that would let it
// take ownership of the Book's lifecycle.
type Sink interface {
	Update(id symbol.ID, bid, ask float64)
}

var _ Sink = (*book.Book)(nil)

// Resolver resolves a canonical display name to its registered symbol.ID,
// so a wire client never needs the full symbol.Catalog.
type Resolver interface {
	GetID(name string) symbol.ID
}

var _ Resolver = (*symbol.Registry)(nil)
