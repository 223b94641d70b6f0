// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRun() RunConfig {
	return RunConfig{
		BurstSize:     250,
		BurstInterval: 5 * time.Second,
		TotalDuration: 15 * time.Minute,
	}
}

func TestRunConfig_Validate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		r := validRun()
		assert.NoError(t, r.Validate())
	})

	t.Run("rejects zero burst size", func(t *testing.T) {
		r := validRun()
		r.BurstSize = 0
		err := r.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "burst_size")
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		r := validRun()
		r.BurstInterval = 0
		err := r.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "burst_interval")

		r.BurstInterval = -time.Second
		assert.Error(t, r.Validate())
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		r := validRun()
		r.TotalDuration = 0
		err := r.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "total_duration")
	})

	t.Run("rejects negative spawn rate", func(t *testing.T) {
		r := validRun()
		r.SpawnRate = -1
		assert.Error(t, r.Validate())
	})
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Run: validRun()}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())

	t.Run("rejects bucket width fraction of one", func(t *testing.T) {
		bad := &Config{Run: validRun()}
		bad.ApplyDefaults()
		bad.Detect.BucketWidthFraction = 1.0
		assert.Error(t, bad.Validate())
	})

	t.Run("rejects density fraction above one", func(t *testing.T) {
		bad := &Config{Run: validRun()}
		bad.ApplyDefaults()
		bad.Detect.DensityFraction = 1.5
		assert.Error(t, bad.Validate())
	})
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{Run: validRun()}
	cfg.ApplyDefaults()

	assert.Equal(t, 0.1, cfg.Detect.BucketWidthFraction)
	assert.Equal(t, 0.8, cfg.Detect.DensityFraction)
	assert.Equal(t, 0.1, cfg.Detect.IntervalTolerance)
	assert.Equal(t, 30*time.Second, cfg.Run.GracePeriod)
	assert.Equal(t, 50*time.Millisecond, cfg.Run.LateThreshold)
	assert.Equal(t, "table", cfg.Output.Format)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	data := `
run:
  burst_size: 100
  burst_interval: 5s
  total_duration: 2m
target:
  url: https://api.example.com/inference
  model: test-model
detect:
  interval_tolerance: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Run.BurstSize)
	assert.Equal(t, 5*time.Second, cfg.Run.BurstInterval)
	assert.Equal(t, 2*time.Minute, cfg.Run.TotalDuration)
	assert.Equal(t, "https://api.example.com/inference", cfg.Target.URL)
	assert.Equal(t, 0.2, cfg.Detect.IntervalTolerance)
	// Defaults filled for fields the file omits.
	assert.Equal(t, 0.8, cfg.Detect.DensityFraction)

	t.Run("numeric durations are seconds", func(t *testing.T) {
		p := filepath.Join(dir, "numeric.yaml")
		require.NoError(t, os.WriteFile(p, []byte("run:\n  burst_size: 5\n  burst_interval: 2.5\n  total_duration: 60\n"), 0o600))
		cfg, err := Load(p)
		require.NoError(t, err)
		assert.Equal(t, 2500*time.Millisecond, cfg.Run.BurstInterval)
		assert.Equal(t, time.Minute, cfg.Run.TotalDuration)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("run: ["), 0o600))
		_, err := Load(bad)
		assert.Error(t, err)
	})
}

func TestDerive(t *testing.T) {
	r := RunConfig{BurstSize: 250, BurstInterval: 5 * time.Second, TotalDuration: 900 * time.Second}

	m, err := Derive(r)
	require.NoError(t, err)

	assert.InDelta(t, 12.0, m.BurstsPerMinute, 1e-9)
	assert.InDelta(t, 720.0, m.BurstsPerHour, 1e-9)
	assert.InDelta(t, 3000.0, m.TargetRPM, 1e-9)
	assert.Equal(t, 180, m.ExpectedBursts)

	t.Run("target RPM is exactly size times per-minute rate", func(t *testing.T) {
		for _, r := range []RunConfig{
			{BurstSize: 10, BurstInterval: 1500 * time.Millisecond, TotalDuration: time.Minute},
			{BurstSize: 7, BurstInterval: 13 * time.Second, TotalDuration: time.Hour},
			{BurstSize: 1, BurstInterval: 333 * time.Millisecond, TotalDuration: 10 * time.Second},
		} {
			m, err := Derive(r)
			require.NoError(t, err)
			assert.InDelta(t, float64(r.BurstSize)*60/r.BurstInterval.Seconds(), m.TargetRPM, 1e-6)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		again, err := Derive(r)
		require.NoError(t, err)
		assert.Equal(t, m, again)
	})

	t.Run("partial trailing interval rounds up", func(t *testing.T) {
		m, err := Derive(RunConfig{BurstSize: 1, BurstInterval: 5 * time.Second, TotalDuration: 901 * time.Second})
		require.NoError(t, err)
		assert.Equal(t, 181, m.ExpectedBursts)
	})

	t.Run("invalid config fails fast", func(t *testing.T) {
		_, err := Derive(RunConfig{BurstSize: 0, BurstInterval: time.Second, TotalDuration: time.Minute})
		assert.Error(t, err)
	})
}

func TestTickPreview(t *testing.T) {
	r := RunConfig{BurstSize: 10, BurstInterval: 5 * time.Second, TotalDuration: 12 * time.Second}

	ticks, err := TickPreview(r, 10)
	require.NoError(t, err)
	// Only ticks inside the run duration: 0s, 5s, 10s.
	assert.Equal(t, []time.Duration{0, 5 * time.Second, 10 * time.Second}, ticks)

	short, err := TickPreview(r, 2)
	require.NoError(t, err)
	assert.Len(t, short, 2)
}
