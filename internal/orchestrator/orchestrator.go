// Package orchestrator wires every collaborator into the phased lifecycle
// described in spec §4.8: load the tradable catalog, enumerate cycles,
// subscribe the quote feed, wait for the initial snapshot barrier, then run
// the evaluate/execute hot loop until told to stop.
//
// The phase sequence is grounded on the teacher's main.go bootstrap
// (PHASE 0 load/register, PHASE 1/2 sync barrier, PHASE 3 the infinite
// processEventStream hot loop). The shutdown signal is grounded on
// control.go's lock-free hot/stop flags, narrowed to the single atomic
// Stop flag this package actually needs — Run has no equivalent of
// control's auto-cooldown, since the Book's own hot/blocking Wait modes
// already cover that distinction (spec §4.2).
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"triarb/internal/audit"
	"triarb/internal/book"
	"triarb/internal/broker"
	"triarb/internal/config"
	"triarb/internal/cycle"
	"triarb/internal/eval"
	"triarb/internal/execution"
	"triarb/internal/feed"
	"triarb/internal/logging"
	"triarb/internal/rest"
	"triarb/internal/symbol"
)

// Orchestrator owns every collaborator's wiring and drives the phased
// lifecycle. Construct with New, then call Bootstrap, Subscribe and Run.
type Orchestrator struct {
	cfg  *config.Config
	feed feed.Feed
	log  *zap.Logger

	catalog *symbol.Catalog
	cycles  *cycle.Set
	book    *book.Book
	eval    *eval.Evaluator
	audit   *audit.Log
	exec    *execution.Executor

	stop atomic.Bool
}

// New constructs an Orchestrator. b is the Order Book the caller must have
// already handed to feedClient's constructor (spec §9's "Cyclic ownership
// between Feeder and Order Book": the Book outlives and is shared by both,
// neither owns the other, so it is built once by the caller and injected
// into each). The catalog is built separately, via LoadCatalog, before the
// feed can be constructed at all — the feed's Resolver needs the
// catalog's Registry, so catalog loading cannot be deferred into this
// Orchestrator's own Bootstrap the way spec §4.8's single PHASE 0 suggests.
func New(cfg *config.Config, feedClient feed.Feed, b *book.Book, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:  cfg,
		feed: feedClient,
		book: b,
		log:  log,
	}
}

// LoadCatalog fetches every spot-tradable symbol over REST and interns it
// into a fresh Catalog, per spec §4.8 PHASE 0. Callers construct a feed
// against the returned Catalog's Registry before calling Bootstrap, since
// a concrete Feed needs a Resolver at construction time.
func LoadCatalog(ctx context.Context, restClient rest.Client) (*symbol.Catalog, error) {
	metas, err := restClient.FetchExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: fetch exchange info: %w", err)
	}

	cat := symbol.NewCatalog()
	for _, m := range metas {
		if _, err := cat.Add(m); err != nil {
			return nil, fmt.Errorf("orchestrator: register %s: %w", m.DisplayName, err)
		}
	}
	return cat, nil
}

// Stop requests that Run return after its current loop iteration, per
// control.go's Shutdown(). Safe to call from a signal handler.
func (o *Orchestrator) Stop() {
	o.stop.Store(true)
}

// Stopped reports whether Stop has been called.
func (o *Orchestrator) Stopped() bool {
	return o.stop.Load()
}

// Bootstrap completes PHASE 0 of spec §4.8 over an already-loaded catalog
// (see LoadCatalog): enumerate cycles anchored at the configured starting
// asset, open the audit log, and construct the Evaluator/Executor pair.
func (o *Orchestrator) Bootstrap(ctx context.Context, cat *symbol.Catalog, brk broker.Broker, balance execution.BalanceRefresher) error {
	o.catalog = cat
	o.log.Info("catalog loaded", zap.Int("symbol_count", cat.Len()))

	o.cycles = cycle.Enumerate(cat, o.cfg.Strategy.StartingAsset, o.feeLookup)
	o.log.Info("cycles enumerated", zap.Int("cycle_count", o.cycles.Len()))

	auditLog, err := audit.Open(o.cfg.Persistence.TradeLogDir)
	if err != nil {
		return fmt.Errorf("orchestrator: open audit log: %w", err)
	}
	o.audit = auditLog

	o.eval = eval.New(o.book, o.cycles, cat)
	o.eval.MinProfitRatio = o.cfg.Strategy.MinProfitRatio

	o.exec = execution.New(brk, auditLog, cat, balance)

	return nil
}

func (o *Orchestrator) feeLookup(id symbol.ID) float64 {
	name := o.catalog.Registry.Name(id)
	return o.cfg.FeeFor(name)
}

// Subscribe is PHASE 1 of spec §4.8: subscribe the feed to every
// registered symbol and block until every one has delivered its first
// snapshot or timeout elapses.
func (o *Orchestrator) Subscribe(ctx context.Context, snapshotTimeout time.Duration) error {
	names := make([]string, 0, o.catalog.Len())
	for id := symbol.ID(0); int(id) < o.catalog.Len(); id++ {
		names = append(names, o.catalog.Registry.Name(id))
	}

	if err := o.feed.Subscribe(ctx, names); err != nil {
		return fmt.Errorf("orchestrator: subscribe: %w", err)
	}

	go o.feed.Run(ctx)

	received, expected := o.feed.WaitForSnapshots(snapshotTimeout)
	o.log.Info("snapshot barrier cleared", zap.Int("received", received), zap.Int("expected", expected))
	if received < expected {
		return fmt.Errorf("orchestrator: snapshot barrier timed out: %d/%d symbols", received, expected)
	}
	return nil
}

// waitOptions translates the configured polling mode into book.WaitOptions,
// always timed so the hot loop can re-check the stop flag (spec §4.8's
// shutdown responsiveness requirement).
func (o *Orchestrator) waitOptions() book.WaitOptions {
	const pollInterval = 250 * time.Millisecond
	switch o.cfg.Performance.PollingMode {
	case config.BusyPoll:
		return book.WaitOptions{Mode: book.BusyPoll, SpinCount: o.cfg.Performance.BusyPollSpinCount}
	case config.Hybrid:
		return book.WaitOptions{Mode: book.TimedBlocking, Timeout: pollInterval}
	default:
		return book.WaitOptions{Mode: book.TimedBlocking, Timeout: pollInterval}
	}
}

// Run is PHASE 2 of spec §4.8: the hot loop. Bootstrap must have run
// first (Run does not call it, nor Subscribe); Run evaluates every Book
// update against the Cycle Set and executes the best profitable Signal
// found, until Stop is called or ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context, stake float64, liveMode bool) error {
	opts := o.waitOptions()

	for !o.Stopped() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		bm, ok := o.book.Wait(opts)
		if !ok {
			continue // timed out with no update; re-check stop flag
		}

		sig, found := o.eval.OnUpdate(&bm, stake)
		if !found {
			continue
		}

		preBalance := stake
		result := o.exec.Execute(ctx, sig, preBalance, liveMode)

		logging.ExecutionSummary(o.log, result.ParentID, preBalance, preBalance+result.ActualPnL,
			result.ActualPnL, result.TracedPnL, result.TheoreticalPnL)

		if result.State == execution.Compromised {
			logging.Critical(o.log, "execution left a compromised position",
				zap.String("parent_id", result.ParentID))
		}
	}

	o.log.Info("orchestrator stopped")
	return nil
}

// Catalog exposes the populated symbol catalog for callers that need it
// after Bootstrap (e.g. to log the tradable set, or to feed a monitoring
// endpoint).
func (o *Orchestrator) Catalog() *symbol.Catalog {
	return o.catalog
}

// Audit exposes the opened audit log so a caller can Close it (or inspect
// its checksum) on shutdown.
func (o *Orchestrator) Audit() *audit.Log {
	return o.audit
}
