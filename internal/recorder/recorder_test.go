// internal/recorder/recorder_test.go
package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/burstbench/internal/executor"
)

func TestMemory_Record(t *testing.T) {
	m := NewMemory()
	base := time.Now()

	m.Record(RequestEvent{BurstIndex: 0, Dispatch: base, Outcome: executor.OutcomeSuccess, Latency: 10 * time.Millisecond})
	m.Record(RequestEvent{BurstIndex: 0, Dispatch: base, Outcome: executor.OutcomeFailure})
	m.Record(RequestEvent{BurstIndex: 1, Dispatch: base.Add(5 * time.Second), Outcome: executor.OutcomeTimeout, Late: true})

	totals := m.Totals()
	assert.Equal(t, 3, totals.Requests)
	assert.Equal(t, 1, totals.Successes)
	assert.Equal(t, 1, totals.Failures)
	assert.Equal(t, 1, totals.Timeouts)
	assert.Equal(t, 1, totals.LastBurst)
	assert.Equal(t, 1, totals.LateEvents)
	assert.Equal(t, 3, m.Len())
}

func TestMemory_SnapshotOrdering(t *testing.T) {
	m := NewMemory()
	base := time.Now()

	// Recorded out of dispatch order, as completions arrive in practice.
	m.Record(RequestEvent{BurstIndex: 2, Dispatch: base.Add(10 * time.Second), Outcome: executor.OutcomeSuccess})
	m.Record(RequestEvent{BurstIndex: 0, Dispatch: base, Outcome: executor.OutcomeSuccess})
	m.Record(RequestEvent{BurstIndex: 1, Dispatch: base.Add(5 * time.Second), Outcome: executor.OutcomeSuccess})

	snap := m.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 0, snap[0].BurstIndex)
	assert.Equal(t, 1, snap[1].BurstIndex)
	assert.Equal(t, 2, snap[2].BurstIndex)
}

func TestMemory_SnapshotIsCopy(t *testing.T) {
	m := NewMemory()
	m.Record(RequestEvent{BurstIndex: 0, Dispatch: time.Now(), Outcome: executor.OutcomeSuccess})

	snap := m.Snapshot()
	snap[0].BurstIndex = 99

	again := m.Snapshot()
	assert.Equal(t, 0, again[0].BurstIndex)
}

func TestMemory_ConcurrentWriters(t *testing.T) {
	m := NewMemory()
	base := time.Now()

	const writers = 16
	const perWriter = 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				m.Record(RequestEvent{
					BurstIndex: w,
					Dispatch:   base.Add(time.Duration(i) * time.Millisecond),
					Outcome:    executor.OutcomeSuccess,
				})
			}
		}(w)
	}

	// Snapshot concurrently with writers; must not race or tear.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			snap := m.Snapshot()
			for j := 1; j < len(snap); j++ {
				assert.False(t, snap[j].Dispatch.Before(snap[j-1].Dispatch))
			}
		}
	}()

	wg.Wait()
	<-done

	assert.Equal(t, writers*perWriter, m.Len())
	assert.Equal(t, writers*perWriter, m.Totals().Requests)
}

func TestMulti(t *testing.T) {
	a := NewMemory()
	b := NewMemory()
	sink := Multi{a, b}

	sink.Record(RequestEvent{BurstIndex: 3, Dispatch: time.Now(), Outcome: executor.OutcomeSuccess})

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}
