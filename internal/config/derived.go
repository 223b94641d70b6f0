// internal/config/derived.go
package config

import (
	"math"
	"time"
)

// DerivedMetrics are the rates implied by a run configuration. They are
// computed before a run for operator display and feed the detector's
// verdict as the expected schedule.
type DerivedMetrics struct {
	BurstsPerMinute float64
	BurstsPerHour   float64
	// TargetRPM is burst_size * bursts per minute.
	TargetRPM float64
	// ExpectedBursts is how many ticks fall inside the run duration.
	ExpectedBursts int
}

// Derive computes the metrics implied by a schedule. It is a pure
// function: the same config always yields the same metrics.
func Derive(r RunConfig) (DerivedMetrics, error) {
	if err := r.Validate(); err != nil {
		return DerivedMetrics{}, err
	}
	perMinute := float64(time.Minute) / float64(r.BurstInterval)
	return DerivedMetrics{
		BurstsPerMinute: perMinute,
		BurstsPerHour:   perMinute * 60,
		TargetRPM:       float64(r.BurstSize) * perMinute,
		ExpectedBursts:  int(math.Ceil(float64(r.TotalDuration) / float64(r.BurstInterval))),
	}, nil
}

// TickPreview returns the offsets of the first n scheduled ticks,
// capped at the ticks that actually fall inside the run duration.
func TickPreview(r RunConfig, n int) ([]time.Duration, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	ticks := make([]time.Duration, 0, n)
	for k := 0; k < n; k++ {
		offset := time.Duration(k) * r.BurstInterval
		if offset >= r.TotalDuration {
			break
		}
		ticks = append(ticks, offset)
	}
	return ticks, nil
}
