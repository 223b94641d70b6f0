// Package burst implements the tick-anchored burst scheduling engine.
//
// The scheduler dispatches exactly burst_size concurrent requests at
// every tick t_k = start + k*interval. Ticks are computed from the
// fixed schedule, never from the previous burst's completion, so
// request latency cannot drift the cadence. If the target is too slow
// to absorb a burst before the next tick, the new burst is dispatched
// anyway: offering load is the scheduler's job, absorbing it is the
// target's.
package burst

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FairForge/burstbench/internal/config"
	"github.com/FairForge/burstbench/internal/executor"
	"github.com/FairForge/burstbench/internal/metrics"
	"github.com/FairForge/burstbench/internal/recorder"
)

// Scheduler owns the timing loop for one run.
type Scheduler struct {
	cfg     config.RunConfig
	exec    executor.Executor
	sink    recorder.Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter
}

// Stats summarizes a completed run.
type Stats struct {
	Started    time.Time
	Finished   time.Time
	Bursts     int
	LateBursts int
	Dispatched int
	// Drained is false when the grace period expired with requests
	// still in flight; those requests are recorded as timeouts.
	Drained bool
}

// New builds a scheduler. Fails fast on invalid configuration so no
// scheduling ever starts from a bad config.
func New(cfg config.RunConfig, exec executor.Executor, sink recorder.Sink, logger *zap.Logger, m *metrics.Metrics) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("burst: executor is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("burst: sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}
	if cfg.LateThreshold <= 0 {
		cfg.LateThreshold = 50 * time.Millisecond
	}

	s := &Scheduler{cfg: cfg, exec: exec, sink: sink, logger: logger, metrics: m}
	if cfg.SpawnRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SpawnRate), 1)
	}
	return s, nil
}

// Run executes the schedule until every tick inside the run duration
// has fired or ctx is cancelled, then drains in-flight requests.
func (s *Scheduler) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Started: start}

	// Requests get their own lifetime: cancelling the run stops new
	// bursts immediately while in-flight requests keep the grace
	// period to finish.
	reqCtx, cancelReqs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelReqs()

	var wg sync.WaitGroup
	timer := time.NewTimer(s.cfg.BurstInterval)
	defer timer.Stop()

	s.logger.Info("run starting",
		zap.Int("burst_size", s.cfg.BurstSize),
		zap.Duration("burst_interval", s.cfg.BurstInterval),
		zap.Duration("total_duration", s.cfg.TotalDuration))

schedule:
	for k := 0; ; k++ {
		offset := time.Duration(k) * s.cfg.BurstInterval
		if offset >= s.cfg.TotalDuration {
			break
		}
		tick := start.Add(offset)

		select {
		case <-ctx.Done():
			s.logger.Info("run cancelled",
				zap.Int("bursts_dispatched", stats.Bursts))
			break schedule
		default:
		}

		// Wait on the absolute deadline from the fixed schedule. A
		// relative sleep(interval) here would accumulate drift.
		if wait := time.Until(tick); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				s.logger.Info("run cancelled",
					zap.Int("bursts_dispatched", stats.Bursts))
				break schedule
			case <-timer.C:
			}
		}

		skew := time.Since(tick)
		late := skew > s.cfg.LateThreshold
		if late {
			stats.LateBursts++
			s.metrics.BurstsLate.Inc()
			// Subsequent ticks stay anchored to the original t_k
			// sequence; lateness is recorded, never compounded.
			s.logger.Warn("burst dispatched late",
				zap.Int("burst", k),
				zap.Duration("skew", skew))
		}

		s.dispatch(reqCtx, k, late, skew, &wg)
		stats.Bursts++
		stats.Dispatched += s.cfg.BurstSize
		s.metrics.BurstsDispatched.Inc()
		s.metrics.TickSkew.Observe(skew.Seconds())
	}

	stats.Drained = s.drain(&wg, cancelReqs)
	stats.Finished = time.Now()

	s.logger.Info("run finished",
		zap.Int("bursts", stats.Bursts),
		zap.Int("late_bursts", stats.LateBursts),
		zap.Int("requests", stats.Dispatched),
		zap.Bool("drained", stats.Drained),
		zap.Duration("elapsed", stats.Finished.Sub(stats.Started)))
	return stats, nil
}

// dispatch fans out one burst. Every request runs in its own goroutine
// and hands its event to the sink exactly once; a slow request never
// blocks recording of the others.
func (s *Scheduler) dispatch(ctx context.Context, index int, late bool, skew time.Duration, wg *sync.WaitGroup) {
	for i := 0; i < s.cfg.BurstSize; i++ {
		if s.limiter != nil {
			_ = s.limiter.Wait(ctx)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatched := time.Now()
			s.metrics.InFlight.Inc()
			res := s.exec.Execute(ctx)
			s.metrics.InFlight.Dec()

			s.metrics.Requests.WithLabelValues(string(res.Outcome)).Inc()
			s.metrics.Latency.Observe(res.Latency.Seconds())

			ev := recorder.RequestEvent{
				BurstIndex: index,
				Dispatch:   dispatched,
				Outcome:    res.Outcome,
				Latency:    res.Latency,
				StatusCode: res.StatusCode,
				Late:       late,
				Skew:       skew,
			}
			if res.Outcome == executor.OutcomeSuccess {
				ev.Completion = dispatched.Add(res.Latency)
			}
			s.sink.Record(ev)
		}()
	}
}

// drain waits for in-flight requests, cutting them off when the grace
// period expires. Cut requests complete with outcome timeout through
// the executor's context handling.
func (s *Scheduler) drain(wg *sync.WaitGroup, cancel context.CancelFunc) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.cfg.GracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		return true
	case <-grace.C:
		s.logger.Warn("grace period expired, cancelling in-flight requests",
			zap.Duration("grace_period", s.cfg.GracePeriod))
		cancel()
		<-done
		return false
	}
}
