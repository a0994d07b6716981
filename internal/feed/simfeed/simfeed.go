// Package simfeed implements feed.Feed as a deterministic in-memory feed:
// callers push quotes directly via Push rather than through a wire
// connection, for use in tests. cmd/triarb does not use it: paper-trading
// mode still reads quotes from binancefeed.
package simfeed

import (
	"context"
	"sync"
	"time"

	"triarb/internal/feed"
	"triarb/internal/symbol"
)

// Feed is an in-memory feed.Feed: Push delivers one update synchronously,
// Subscribe/Unsubscribe just track the expected symbol set for
// WaitForSnapshots bookkeeping.
type Feed struct {
	sink     feed.Sink
	resolver feed.Resolver

	mu        sync.Mutex
	expected  map[string]bool
	delivered map[string]bool
	cond      *sync.Cond
}

// New constructs a simulated feed writing into sink, resolving names via
// resolver.
func New(sink feed.Sink, resolver feed.Resolver) *Feed {
	f := &Feed{
		sink:      sink,
		resolver:  resolver,
		expected:  make(map[string]bool),
		delivered: make(map[string]bool),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Feed) Subscribe(_ context.Context, symbols []string) error {
	f.mu.Lock()
	for _, s := range symbols {
		f.expected[s] = true
	}
	f.mu.Unlock()
	return nil
}

func (f *Feed) Unsubscribe(_ context.Context, symbols []string) error {
	f.mu.Lock()
	for _, s := range symbols {
		delete(f.expected, s)
		delete(f.delivered, s)
	}
	f.mu.Unlock()
	return nil
}

// Push delivers one (bid, ask) update for name, per the Update Bitmap's
// partial-update rule (zero means "no change to that side").
func (f *Feed) Push(name string, bid, ask float64) {
	id := f.resolver.GetID(name)
	if id == symbol.Invalid {
		return
	}
	f.sink.Update(id, bid, ask)

	f.mu.Lock()
	f.delivered[name] = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

func (f *Feed) WaitForSnapshots(timeout time.Duration) (received, expected int) {
	deadline := time.Now().Add(timeout)

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		received, expected = f.countLocked()
		if received >= expected || timeout <= 0 {
			return
		}
		remaining := deadline.Sub(time.Now())
		if remaining <= 0 {
			return
		}
		timer := time.AfterFunc(remaining, f.cond.Broadcast)
		f.cond.Wait()
		timer.Stop()
	}
}

func (f *Feed) countLocked() (received, expected int) {
	expected = len(f.expected)
	for s := range f.expected {
		if f.delivered[s] {
			received++
		}
	}
	return
}

// Run is a no-op: simfeed has no background connection to drive.
func (f *Feed) Run(_ context.Context) {}

func (f *Feed) Close() error { return nil }
