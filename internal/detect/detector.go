// Package detect verifies that recorded traffic matches the intended
// burst cadence. It buckets dispatch timestamps, finds burst windows,
// and compares observed interval statistics against the configured
// schedule, producing a pass/fail report with human-readable reasons.
package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/FairForge/burstbench/internal/executor"
	"github.com/FairForge/burstbench/internal/recorder"
)

// Params configures one analysis run.
type Params struct {
	ExpectedInterval time.Duration
	BurstSize        int
	ExpectedBursts   int
	// BucketWidthFraction sets bucket width as a fraction of the
	// expected interval. Kept well below 1.0 to avoid aliasing.
	BucketWidthFraction float64
	// DensityFraction is the fraction of BurstSize that must land in a
	// single bucket for it to count as a burst candidate. Tolerates
	// partial delivery: at the default 0.8, a burst can lose 20% of its
	// requests and still be detected.
	DensityFraction float64
	// IntervalTolerance bounds both |mean - expected| and the interval
	// stddev, as a fraction of the expected interval.
	IntervalTolerance float64
}

func (p Params) withDefaults() Params {
	if p.BucketWidthFraction == 0 {
		p.BucketWidthFraction = 0.1
	}
	if p.DensityFraction == 0 {
		p.DensityFraction = 0.8
	}
	if p.IntervalTolerance == 0 {
		p.IntervalTolerance = 0.1
	}
	return p
}

func (p Params) validate() error {
	if p.ExpectedInterval <= 0 {
		return fmt.Errorf("detect: expected interval must be positive, got %v", p.ExpectedInterval)
	}
	if p.BurstSize <= 0 {
		return fmt.Errorf("detect: burst size must be positive, got %d", p.BurstSize)
	}
	return nil
}

// Window is one detected burst: a contiguous run of dense buckets.
// Derived during analysis only, never persisted.
type Window struct {
	// Center is the count-weighted mean dispatch time of the window's
	// events, as an offset from the first recorded dispatch.
	Center   time.Duration `json:"center"`
	Requests int           `json:"requests"`
}

// Report is the analysis verdict plus supporting statistics. Analysis
// always terminates with a report; it never aborts.
type Report struct {
	RunID string `json:"run_id"`

	Windows          []Window      `json:"detected_bursts"`
	DetectedBursts   int           `json:"detected_burst_count"`
	ExpectedBursts   int           `json:"expected_burst_count"`
	MeanInterval     time.Duration `json:"mean_interval"`
	IntervalStddev   time.Duration `json:"interval_stddev"`
	ExpectedInterval time.Duration `json:"expected_interval"`

	TotalRequests int `json:"total_requests"`
	Successes     int `json:"successes"`
	Failures      int `json:"failures"`
	Timeouts      int `json:"timeouts"`
	LateBursts    int `json:"late_bursts"`

	Pass    bool     `json:"pass"`
	Reasons []string `json:"reasons,omitempty"`
}

// Analyze runs burst detection over recorded events. Events must be
// ordered by dispatch time, which both recorder snapshots and event
// log reads guarantee.
func Analyze(events []recorder.RequestEvent, p Params) (*Report, error) {
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:            uuid.NewString(),
		ExpectedBursts:   p.ExpectedBursts,
		ExpectedInterval: p.ExpectedInterval,
	}
	tallyOutcomes(report, events)

	if len(events) == 0 {
		report.Reasons = append(report.Reasons, "no data")
		return report, nil
	}

	report.Windows = findWindows(events, p)
	report.DetectedBursts = len(report.Windows)

	if report.DetectedBursts < 2 {
		report.Reasons = append(report.Reasons, "insufficient bursts detected")
		return report, nil
	}

	intervals := make([]float64, 0, report.DetectedBursts-1)
	for i := 1; i < len(report.Windows); i++ {
		intervals = append(intervals, (report.Windows[i].Center - report.Windows[i-1].Center).Seconds())
	}
	mean, stddev := meanStddev(intervals)
	report.MeanInterval = time.Duration(mean * float64(time.Second))
	report.IntervalStddev = time.Duration(stddev * float64(time.Second))

	applyVerdict(report, p)
	return report, nil
}

// findWindows buckets dispatch times and merges adjacent dense buckets
// into burst windows.
func findWindows(events []recorder.RequestEvent, p Params) []Window {
	width := time.Duration(float64(p.ExpectedInterval) * p.BucketWidthFraction)
	if width <= 0 {
		width = time.Millisecond
	}
	base := events[0].Dispatch
	threshold := float64(p.BurstSize) * p.DensityFraction

	type bucket struct {
		count   int
		sumNano int64 // sum of dispatch offsets, for the weighted center
	}
	buckets := make(map[int64]*bucket)
	var order []int64
	for _, ev := range events {
		offset := ev.Dispatch.Sub(base)
		idx := int64(offset / width)
		b, ok := buckets[idx]
		if !ok {
			b = &bucket{}
			buckets[idx] = b
			order = append(order, idx)
		}
		b.count++
		b.sumNano += int64(offset)
	}
	// Events arrive sorted by dispatch, so seen-order of bucket indices
	// is already ascending.

	var windows []Window
	var curCount int
	var curSum int64
	var prevIdx int64 = -2

	flush := func() {
		if curCount == 0 {
			return
		}
		windows = append(windows, Window{
			Center:   time.Duration(curSum / int64(curCount)),
			Requests: curCount,
		})
		curCount, curSum = 0, 0
	}

	for _, idx := range order {
		b := buckets[idx]
		if float64(b.count) < threshold {
			continue
		}
		if idx != prevIdx+1 {
			// Not adjacent to the previous candidate: close the window.
			flush()
		}
		curCount += b.count
		curSum += b.sumNano
		prevIdx = idx
	}
	flush()
	return windows
}

// applyVerdict checks the three pass conditions and appends a reason
// for each one violated.
func applyVerdict(r *Report, p Params) {
	tolerance := time.Duration(float64(p.ExpectedInterval) * p.IntervalTolerance)

	if p.ExpectedBursts > 0 {
		if diff := abs(r.DetectedBursts - p.ExpectedBursts); diff > 1 {
			r.Reasons = append(r.Reasons, fmt.Sprintf(
				"burst count mismatch: detected %d bursts, expected %d",
				r.DetectedBursts, p.ExpectedBursts))
		}
	}
	if dev := absDuration(r.MeanInterval - p.ExpectedInterval); dev > tolerance {
		r.Reasons = append(r.Reasons, fmt.Sprintf(
			"mean interval %v deviates from expected %v by %v (tolerance %v)",
			r.MeanInterval.Round(time.Millisecond), p.ExpectedInterval,
			dev.Round(time.Millisecond), tolerance))
	}
	if r.IntervalStddev > tolerance {
		r.Reasons = append(r.Reasons, fmt.Sprintf(
			"interval stddev %v exceeds tolerance %v",
			r.IntervalStddev.Round(time.Millisecond), tolerance))
	}

	r.Pass = len(r.Reasons) == 0
}

func tallyOutcomes(r *Report, events []recorder.RequestEvent) {
	lateBursts := make(map[int]struct{})
	for _, ev := range events {
		r.TotalRequests++
		switch ev.Outcome {
		case executor.OutcomeSuccess:
			r.Successes++
		case executor.OutcomeTimeout:
			r.Timeouts++
		default:
			r.Failures++
		}
		if ev.Late {
			lateBursts[ev.BurstIndex] = struct{}{}
		}
	}
	r.LateBursts = len(lateBursts)
}

func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
