// Package execution implements the Executor state machine from spec §4.6:
// sequential three-leg order submission with timeout-bounded fill waits and
// LIFO rollback on partial failure.
//
// The terminal-state vocabulary (Completed/RolledBack/Compromised) and the
// per-order lifecycle bookkeeping are grounded on the teacher's pack-mate
// og.StateMachine (yanun0323-go-hft/internal/og/state_machine.go): a map of
// in-flight orders keyed by id, advanced by explicit Apply* transitions,
// with a terminal/non-terminal split gating further transitions. Where that
// state machine tracks one order's lifecycle from many possible external
// events, this one drives a fixed three-order sequence end to end and adds
// the rollback half spec §4.6 requires, which og.StateMachine has no
// equivalent of.
package execution

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"triarb/internal/audit"
	"triarb/internal/broker"
	"triarb/internal/cycle"
	"triarb/internal/symbol"
)

// State is the Executor's coarse lifecycle position, per spec §4.6.
type State int

const (
	Idle State = iota
	Sending
	AwaitingFill
	Completed
	RolledBack
	Compromised
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Sending:
		return "Sending"
	case AwaitingFill:
		return "AwaitingFill"
	case Completed:
		return "Completed"
	case RolledBack:
		return "RolledBack"
	case Compromised:
		return "Compromised"
	default:
		return "Unknown"
	}
}

func isTerminal(s State) bool {
	switch s {
	case Completed, RolledBack, Compromised:
		return true
	default:
		return false
	}
}

// atomicState tracks the Idle/Sending(k)/AwaitingFill(k)/terminal position
// described in spec §4.6, readable from another goroutine while Execute is
// in flight (e.g. a monitoring endpoint).
type atomicState struct {
	state atomic.Int32
	leg   atomic.Int32
}

func (a *atomicState) set(s State, leg int) {
	a.state.Store(int32(s))
	a.leg.Store(int32(leg))
}

func (a *atomicState) get() (State, int) {
	return State(a.state.Load()), int(a.leg.Load())
}

// Default timing and tolerance constants, per spec §4.6.
const (
	DefaultFillTimeout          = 5 * time.Second
	DefaultRollbackTimeout      = 10 * time.Second
	DefaultPartialFillTolerance = 0.99
)

// BalanceRefresher fetches the current free balance of the starting asset.
// Injected so the Executor never depends on the REST collaborator package
// directly (spec §4.8 assigns balance refresh to the account/REST
// boundary; the Executor only needs the resulting number).
type BalanceRefresher func(ctx context.Context) (float64, error)

// Executor drives one Signal's three legs to a terminal state. One
// Executor runs one sequence at a time; state reflects the most recent (or
// in-flight) Execute call and is safe to read concurrently with it.
type Executor struct {
	Broker  broker.Broker
	Audit   *audit.Log
	Catalog *symbol.Catalog
	Balance BalanceRefresher

	FillTimeout          time.Duration
	RollbackTimeout      time.Duration
	PartialFillTolerance float64

	state atomicState
}

// New constructs an Executor with spec-default timing.
func New(b broker.Broker, log *audit.Log, cat *symbol.Catalog, balance BalanceRefresher) *Executor {
	return &Executor{
		Broker:               b,
		Audit:                log,
		Catalog:              cat,
		Balance:              balance,
		FillTimeout:          DefaultFillTimeout,
		RollbackTimeout:      DefaultRollbackTimeout,
		PartialFillTolerance: DefaultPartialFillTolerance,
	}
}

// State reports the Executor's current lifecycle position and, for
// Sending/AwaitingFill, which leg (1-indexed) it concerns.
func (e *Executor) State() (State, int) {
	return e.state.get()
}

// Done reports whether the most recent Execute call has reached a terminal
// state (Completed, RolledBack, or Compromised).
func (e *Executor) Done() bool {
	s, _ := e.state.get()
	return isTerminal(s)
}

// executedLeg records what actually happened to one successfully submitted
// leg, enough to drive a LIFO rollback and to derive traced PnL.
type executedLeg struct {
	clOrdID       string
	kind          audit.LegKind
	symbolID      symbol.ID
	side          cycle.Side
	feeMultiplier float64
	filledQty     float64
	avgPrice      float64
}

// Result is the Executor's outcome, per spec §4.6 step 3's three PnL
// figures plus the terminal state.
type Result struct {
	ParentID       string
	State          State
	ActualPnL      float64
	TracedPnL      float64
	TheoreticalPnL float64
}

func legKind(i int) audit.LegKind {
	switch i {
	case 0:
		return audit.Entry
	case 1:
		return audit.Intermediate
	default:
		return audit.Exit
	}
}

func toBrokerSide(s cycle.Side) broker.Side {
	if s == cycle.Buy {
		return broker.Buy
	}
	return broker.Sell
}

func opposite(s cycle.Side) cycle.Side {
	if s == cycle.Buy {
		return cycle.Sell
	}
	return cycle.Buy
}

// Execute runs sig's three legs to completion or rollback, per spec §4.6.
// liveMode selects SendMarketOrder (real) vs TestMarketOrder (simulated),
// per the strategy.live_mode configuration key.
func (e *Executor) Execute(ctx context.Context, sig cycle.Signal, preBalance float64, liveMode bool) Result {
	parentID := uuid.NewString()
	now := time.Now().UTC()

	var executed []executedLeg

	for i, order := range sig.Orders {
		symName := e.Catalog.Registry.Name(order.SymbolID)
		side := order.Side

		e.state.set(Sending, i+1)
		clOrdID, err := e.submit(ctx, liveMode, symName, side, order.Qty, order.Price)
		if err != nil {
			e.recordFailure(parentID, "", legKind(i), symName, side, order, now)
			return e.rollback(ctx, parentID, executed, sig.TheoreticalPnL, preBalance)
		}

		e.state.set(AwaitingFill, i+1)
		status, err := e.Broker.WaitForCompletion(ctx, clOrdID, e.FillTimeout)
		if err != nil {
			status = broker.Unknown
		}

		state, _ := e.Broker.GetOrderState(clOrdID)

		if status == broker.Filled && state.FilledQty >= e.PartialFillTolerance*order.Qty {
			executed = append(executed, executedLeg{
				clOrdID: clOrdID, kind: legKind(i), symbolID: order.SymbolID, side: side,
				feeMultiplier: order.FeeMultiplier, filledQty: state.FilledQty, avgPrice: state.AvgPrice,
			})
			e.recordExecuted(parentID, clOrdID, legKind(i), symName, side, order, state, now, audit.Executed)
			continue
		}

		// Partial-but-nonzero: still counts as an executed leg we must
		// unwind, just logged as Partial rather than Executed.
		if state.FilledQty > 0 {
			executed = append(executed, executedLeg{
				clOrdID: clOrdID, kind: legKind(i), symbolID: order.SymbolID, side: side,
				feeMultiplier: order.FeeMultiplier, filledQty: state.FilledQty, avgPrice: state.AvgPrice,
			})
			e.recordExecuted(parentID, clOrdID, legKind(i), symName, side, order, state, now, audit.Partial)
		} else {
			e.recordFailure(parentID, clOrdID, legKind(i), symName, side, order, now)
		}

		return e.rollback(ctx, parentID, executed, sig.TheoreticalPnL, preBalance)
	}

	// All three legs filled: success.
	e.state.set(Completed, len(sig.Orders))
	postBalance, _ := e.refreshBalance(ctx, preBalance)
	return Result{
		ParentID:       parentID,
		State:          Completed,
		ActualPnL:      postBalance - preBalance,
		TracedPnL:      tracedPnL(executed, preBalance),
		TheoreticalPnL: sig.TheoreticalPnL,
	}
}

func (e *Executor) submit(ctx context.Context, liveMode bool, sym string, side cycle.Side, qty, estPrice float64) (string, error) {
	bside := toBrokerSide(side)
	if liveMode {
		return e.Broker.SendMarketOrder(ctx, sym, bside, qty, estPrice)
	}
	return e.Broker.TestMarketOrder(ctx, sym, bside, qty, estPrice)
}

// rollback unwinds executed legs in LIFO order (spec invariant #8), at
// most one retry per leg, with a longer timeout than the forward pass.
func (e *Executor) rollback(ctx context.Context, parentID string, executed []executedLeg, theoreticalPnL, preBalance float64) Result {
	now := time.Now().UTC()
	var errs error
	allOK := true

	for i := len(executed) - 1; i >= 0; i-- {
		leg := executed[i]
		if !e.rollbackLeg(ctx, parentID, leg, now) {
			if !e.rollbackLeg(ctx, parentID, leg, now) { // at most one retry
				allOK = false
				errs = multierr.Append(errs, fmt.Errorf("rollback failed for leg %s (%s)", leg.clOrdID, e.Catalog.Registry.Name(leg.symbolID)))
			}
		}
	}

	final := RolledBack
	if !allOK {
		final = Compromised
	}
	e.state.set(final, len(executed))

	postBalance, _ := e.refreshBalance(ctx, preBalance)
	return Result{
		ParentID:       parentID,
		State:          final,
		ActualPnL:      postBalance - preBalance,
		TracedPnL:      tracedPnL(executed, preBalance),
		TheoreticalPnL: theoreticalPnL,
	}
}

// rollbackLeg submits the opposite side of leg at its filled quantity and
// reports whether the rollback itself filled to tolerance.
func (e *Executor) rollbackLeg(ctx context.Context, parentID string, leg executedLeg, now time.Time) bool {
	sym := e.Catalog.Registry.Name(leg.symbolID)
	side := opposite(leg.side)

	clOrdID, err := e.Broker.SendMarketOrder(ctx, sym, toBrokerSide(side), leg.filledQty, leg.avgPrice)
	if err != nil {
		e.record(audit.Record{
			TradeID: leg.clOrdID, ParentID: parentID, LegKind: leg.kind, Symbol: sym,
			Side: side.String(), IntendedQty: leg.filledQty, IntendedPrice: leg.avgPrice,
			Status: audit.Failed, Timestamp: now,
		})
		return false
	}

	status, err := e.Broker.WaitForCompletion(ctx, clOrdID, e.RollbackTimeout)
	if err != nil {
		status = broker.Unknown
	}
	state, _ := e.Broker.GetOrderState(clOrdID)

	ok := status == broker.Filled && state.FilledQty >= e.PartialFillTolerance*leg.filledQty

	st := audit.Failed
	if ok {
		st = audit.Rollback
	}
	// TradeID reuses leg.clOrdID, not the rollback order's own clOrdID
	// (clOrdID above), so this record satisfies the round-trip law: a
	// Rollback record shares its clOrdId with the Executed record it
	// unwinds, within the same parent_id sequence.
	e.record(audit.Record{
		TradeID: leg.clOrdID, ParentID: parentID, LegKind: leg.kind, Symbol: sym,
		Side: side.String(), IntendedQty: leg.filledQty, IntendedPrice: leg.avgPrice,
		ActualQty: state.FilledQty, ActualPrice: state.AvgPrice,
		Status: st, Timestamp: now,
	})
	return ok
}

func (e *Executor) refreshBalance(ctx context.Context, fallback float64) (float64, error) {
	if e.Balance == nil {
		return fallback, nil
	}
	bal, err := e.Balance(ctx)
	if err != nil {
		return fallback, err
	}
	return bal, nil
}

func (e *Executor) recordExecuted(parentID, clOrdID string, kind audit.LegKind, sym string, side cycle.Side, order cycle.Order, state broker.OrderState, now time.Time, status audit.Status) {
	e.record(audit.Record{
		TradeID: clOrdID, ParentID: parentID, LegKind: kind, Symbol: sym, Side: side.String(),
		IntendedPrice: order.Price, IntendedQty: order.Qty,
		ActualPrice: state.AvgPrice, ActualQty: state.FilledQty,
		Status: status, Timestamp: now,
	})
}

func (e *Executor) recordFailure(parentID, clOrdID string, kind audit.LegKind, sym string, side cycle.Side, order cycle.Order, now time.Time) {
	e.record(audit.Record{
		TradeID: clOrdID, ParentID: parentID, LegKind: kind, Symbol: sym, Side: side.String(),
		IntendedPrice: order.Price, IntendedQty: order.Qty,
		Status: audit.Failed, Timestamp: now,
	})
}

func (e *Executor) record(r audit.Record) {
	if e.Audit == nil {
		return
	}
	_ = e.Audit.Record(r) // AuditIOError: log-and-continue per spec §7, best-effort
}

// tracedPnL re-derives PnL from realized fill prices/quantities rather than
// the Evaluator's estimate, per spec §4.6 step 3. It walks the executed
// legs in order, applying each leg's realized price to the running balance
// exactly as fullEvaluate does with estimated prices.
func tracedPnL(executed []executedLeg, preBalance float64) float64 {
	current := preBalance
	for _, leg := range executed {
		fee := leg.feeMultiplier
		if fee == 0 {
			fee = 1 // an unset fee multiplier (e.g. a rollback leg) is a no-op
		}
		if leg.side == cycle.Buy {
			current = leg.filledQty * fee
		} else {
			current = leg.filledQty * leg.avgPrice * fee
		}
	}
	return current - preBalance
}
