// internal/burst/scheduler_test.go
package burst

import (
	"context"
	"testing"
	"time"

	"github.com/FairForge/burstbench/internal/config"
	"github.com/FairForge/burstbench/internal/executor"
	"github.com/FairForge/burstbench/internal/recorder"
)

// sleepyExecutor succeeds after d unless the context is cut first.
func sleepyExecutor(d time.Duration) executor.Executor {
	return executor.Func(func(ctx context.Context) executor.Result {
		start := time.Now()
		select {
		case <-time.After(d):
			return executor.Result{Outcome: executor.OutcomeSuccess, Latency: time.Since(start), StatusCode: 200}
		case <-ctx.Done():
			return executor.Result{Outcome: executor.OutcomeTimeout, Latency: time.Since(start), Err: ctx.Err()}
		}
	})
}

func burstStarts(events []recorder.RequestEvent) map[int]time.Time {
	starts := make(map[int]time.Time)
	for _, ev := range events {
		if first, ok := starts[ev.BurstIndex]; !ok || ev.Dispatch.Before(first) {
			starts[ev.BurstIndex] = ev.Dispatch
		}
	}
	return starts
}

func TestNew_Validation(t *testing.T) {
	rec := recorder.NewMemory()
	exec := sleepyExecutor(time.Millisecond)
	good := config.RunConfig{BurstSize: 1, BurstInterval: time.Second, TotalDuration: time.Second}

	if _, err := New(good, exec, rec, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := New(config.RunConfig{BurstSize: 0, BurstInterval: time.Second, TotalDuration: time.Second}, exec, rec, nil, nil); err == nil {
		t.Error("expected error for zero burst size")
	}
	if _, err := New(good, nil, rec, nil, nil); err == nil {
		t.Error("expected error for nil executor")
	}
	if _, err := New(good, exec, nil, nil, nil); err == nil {
		t.Error("expected error for nil sink")
	}
}

func TestScheduler_DispatchesExpectedBursts(t *testing.T) {
	rec := recorder.NewMemory()
	cfg := config.RunConfig{
		BurstSize:     4,
		BurstInterval: 50 * time.Millisecond,
		TotalDuration: 120 * time.Millisecond, // ticks at 0, 50, 100
		GracePeriod:   time.Second,
	}

	s, err := New(cfg, sleepyExecutor(5*time.Millisecond), rec, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.Bursts != 3 {
		t.Errorf("expected 3 bursts, got %d", stats.Bursts)
	}
	if stats.Dispatched != 12 {
		t.Errorf("expected 12 dispatched requests, got %d", stats.Dispatched)
	}
	if rec.Len() != 12 {
		t.Errorf("expected 12 recorded events, got %d", rec.Len())
	}
	if !stats.Drained {
		t.Error("expected clean drain")
	}
}

func TestScheduler_AnchoredTicksUnderSlowTarget(t *testing.T) {
	// Executor latency well above the interval: bursts overlap, and a
	// completion-anchored loop would drift by latency per tick. The
	// schedule must hold each burst to its original t_k.
	rec := recorder.NewMemory()
	cfg := config.RunConfig{
		BurstSize:     3,
		BurstInterval: 50 * time.Millisecond,
		TotalDuration: 300 * time.Millisecond, // 6 ticks
		GracePeriod:   2 * time.Second,
	}

	s, err := New(cfg, sleepyExecutor(180*time.Millisecond), rec, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Bursts != 6 {
		t.Fatalf("expected 6 bursts, got %d", stats.Bursts)
	}

	const epsilon = 30 * time.Millisecond
	starts := burstStarts(rec.Snapshot())
	for k := 0; k < 6; k++ {
		scheduled := stats.Started.Add(time.Duration(k) * cfg.BurstInterval)
		got, ok := starts[k]
		if !ok {
			t.Fatalf("burst %d missing from recorder", k)
		}
		if got.Before(scheduled) {
			t.Errorf("burst %d dispatched before its tick: %v < %v", k, got, scheduled)
		}
		if drift := got.Sub(scheduled); drift > epsilon {
			t.Errorf("burst %d drifted %v past its tick (max %v)", k, drift, epsilon)
		}
	}
}

func TestScheduler_MonotonicBurstOrder(t *testing.T) {
	rec := recorder.NewMemory()
	cfg := config.RunConfig{
		BurstSize:     5,
		BurstInterval: 40 * time.Millisecond,
		TotalDuration: 200 * time.Millisecond,
		GracePeriod:   2 * time.Second,
	}

	s, err := New(cfg, sleepyExecutor(100*time.Millisecond), rec, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	starts := burstStarts(rec.Snapshot())
	for k := 1; k < len(starts); k++ {
		if starts[k].Before(starts[k-1]) {
			t.Errorf("burst %d started before burst %d", k, k-1)
		}
	}
}

func TestScheduler_CancellationStopsNewBursts(t *testing.T) {
	rec := recorder.NewMemory()
	cfg := config.RunConfig{
		BurstSize:     2,
		BurstInterval: 50 * time.Millisecond,
		TotalDuration: 10 * time.Second,
		GracePeriod:   time.Second,
	}

	s, err := New(cfg, sleepyExecutor(10*time.Millisecond), rec, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(120 * time.Millisecond)
		cancel()
	}()

	stats, err := s.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Ticks at 0, 50, 100 fire before the cancel at ~120ms.
	if stats.Bursts < 2 || stats.Bursts > 4 {
		t.Errorf("expected cancellation after ~3 bursts, got %d", stats.Bursts)
	}
	if !stats.Drained {
		t.Error("in-flight requests should have drained within grace")
	}
	// Everything dispatched before the cancel still completed normally.
	if got := rec.Totals().Successes; got != stats.Dispatched {
		t.Errorf("expected %d successes, got %d", stats.Dispatched, got)
	}
}

func TestScheduler_GraceExpiryRecordsTimeouts(t *testing.T) {
	rec := recorder.NewMemory()
	cfg := config.RunConfig{
		BurstSize:     3,
		BurstInterval: 50 * time.Millisecond,
		TotalDuration: 60 * time.Millisecond, // 2 ticks
		GracePeriod:   40 * time.Millisecond,
	}

	s, err := New(cfg, sleepyExecutor(5*time.Second), rec, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.Drained {
		t.Error("expected grace period to expire")
	}
	totals := rec.Totals()
	if totals.Timeouts != stats.Dispatched {
		t.Errorf("expected all %d requests recorded as timeouts, got %d", stats.Dispatched, totals.Timeouts)
	}
}

func TestScheduler_SpawnPacingFlagsLateBursts(t *testing.T) {
	// Pacing 10 requests at 100/s takes ~90ms per burst, past the 50ms
	// interval, so later ticks are already behind when checked. They
	// must dispatch immediately, be flagged late, and stay on the
	// original schedule.
	rec := recorder.NewMemory()
	cfg := config.RunConfig{
		BurstSize:     10,
		BurstInterval: 50 * time.Millisecond,
		TotalDuration: 200 * time.Millisecond,
		GracePeriod:   2 * time.Second,
		SpawnRate:     100,
		LateThreshold: 10 * time.Millisecond,
	}

	s, err := New(cfg, sleepyExecutor(time.Millisecond), rec, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.Bursts != 4 {
		t.Fatalf("expected 4 bursts, got %d", stats.Bursts)
	}
	if stats.LateBursts == 0 {
		t.Error("expected at least one late burst under slow spawn pacing")
	}

	var lateEvents int
	for _, ev := range rec.Snapshot() {
		if ev.Late {
			lateEvents++
			if ev.Skew <= 0 {
				t.Error("late event must carry a positive skew")
			}
		}
	}
	if lateEvents == 0 {
		t.Error("expected late flag on recorded events")
	}
}
