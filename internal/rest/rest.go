// Package rest defines the REST admin collaborator boundary from spec §6:
// fetch the tradable-symbol catalog (with filters) and free balances.
package rest

import (
	"context"

	"triarb/internal/symbol"
)

// Client is the REST admin collaborator.
type Client interface {
	// FetchExchangeInfo returns every spot-tradable symbol's metadata,
	// filtered per spec §9's "REST as the authoritative filter source"
	// decision.
	FetchExchangeInfo(ctx context.Context) ([]symbol.Meta, error)
	// FetchBalances returns the free balance of every asset the account
	// holds, keyed by asset symbol (e.g. "USDT").
	FetchBalances(ctx context.Context) (map[string]float64, error)
}
