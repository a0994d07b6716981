package book

import (
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"triarb/internal/symbol"
)

func TestSlotSize(t *testing.T) {
	assert.Equal(t, uintptr(cacheLineSize), unsafe.Sizeof(slot{}))
}

func TestUpdateThenReadRoundTrips(t *testing.T) {
	b := New()
	b.Update(3, 100.5, 101.5)
	q := b.Read(3)
	assert.Equal(t, Quote{Bid: 100.5, Ask: 101.5}, q)
}

func TestPartialUpdateLeavesOtherSideUnchanged(t *testing.T) {
	b := New()
	b.Update(5, 1.0, 2.0)
	b.Update(5, 0, 3.0) // bid=0 means "no change"
	q := b.Read(5)
	assert.Equal(t, Quote{Bid: 1.0, Ask: 3.0}, q)
}

func TestUnwrittenSlotIsZero(t *testing.T) {
	b := New()
	assert.Equal(t, Quote{}, b.Read(42))
}

func TestConsumeClearsBitmap(t *testing.T) {
	b := New()
	b.Update(1, 1, 1)
	b.Update(2, 1, 1)

	snap := b.Consume()
	assert.True(t, snap.IsSet(1))
	assert.True(t, snap.IsSet(2))
	assert.False(t, snap.IsSet(3))

	again := b.Consume()
	assert.True(t, again.Empty())
}

func TestBitmapForEachVisitsSetBitsInOrder(t *testing.T) {
	b := New()
	b.Update(70, 1, 1) // crosses into the second bitmap word
	b.Update(1, 1, 1)

	snap := b.Consume()
	var seen []symbol.ID
	snap.ForEach(func(id symbol.ID) { seen = append(seen, id) })
	assert.Equal(t, []symbol.ID{1, 70}, seen)
}

func TestWaitBlockingWakesOnUpdate(t *testing.T) {
	b := New()
	done := make(chan Bitmap, 1)
	go func() {
		snap, ok := b.Wait(WaitOptions{Mode: Blocking})
		assert.True(t, ok)
		done <- snap
	}()

	time.Sleep(10 * time.Millisecond)
	b.Update(7, 10, 11)

	select {
	case snap := <-done:
		assert.True(t, snap.IsSet(7))
	case <-time.After(time.Second):
		t.Fatal("Wait never woke up")
	}
}

func TestWaitTimedBlockingTimesOut(t *testing.T) {
	b := New()
	_, ok := b.Wait(WaitOptions{Mode: TimedBlocking, Timeout: 10 * time.Millisecond})
	assert.False(t, ok)
}

func TestWaitBusyPollFallsBackToBlocking(t *testing.T) {
	b := New()
	go func() {
		time.Sleep(5 * time.Millisecond)
		b.Update(9, 1, 1)
	}()
	snap, ok := b.Wait(WaitOptions{Mode: BusyPoll, SpinCount: 4})
	assert.True(t, ok)
	assert.True(t, snap.IsSet(9))
}

// TestConcurrentUpdatesNeverTear drives scenario S6: a single writer
// alternates between two fully-formed (bid, ask) pairs while many readers
// race against it; every observed quote must equal one of the two pairs,
// never a torn mix.
func TestConcurrentUpdatesNeverTear(t *testing.T) {
	b := New()
	const id = symbol.ID(11)
	const iterations = 20000

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				q := b.Read(id)
				if q != (Quote{}) && q != (Quote{Bid: 1, Ask: 2}) && q != (Quote{Bid: 3, Ask: 4}) {
					t.Errorf("observed torn read: %+v", q)
				}
			}
		}()
	}

	for i := 0; i < iterations; i++ {
		if i%2 == 0 {
			b.Update(id, 1, 2)
		} else {
			b.Update(id, 3, 4)
		}
	}
	close(stop)
	wg.Wait()
}
