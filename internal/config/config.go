// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration for a benchmark run.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Target  TargetConfig  `yaml:"target"`
	Detect  DetectConfig  `yaml:"detect"`
	Monitor MonitorConfig `yaml:"monitor"`
	Output  OutputConfig  `yaml:"output"`
}

// RunConfig controls the burst schedule. Immutable once a run starts.
type RunConfig struct {
	BurstSize     int           `yaml:"burst_size"`
	BurstInterval time.Duration `yaml:"burst_interval"`
	TotalDuration time.Duration `yaml:"total_duration"`
	GracePeriod   time.Duration `yaml:"grace_period"`
	// SpawnRate paces goroutine launches within a burst, in requests
	// per second. Zero means the whole burst is launched at once.
	SpawnRate float64 `yaml:"spawn_rate"`
	// LateThreshold is how far past its tick a burst may start before
	// it is flagged as late.
	LateThreshold time.Duration `yaml:"late_threshold"`
}

// TargetConfig describes the service under test.
type TargetConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	// PromptTokens and MaxTokens size the synthetic inference payload.
	PromptTokens int  `yaml:"prompt_tokens"`
	MaxTokens    int  `yaml:"max_tokens"`
	Stream       bool `yaml:"stream"`
}

// DetectConfig tunes the burst detection algorithm.
type DetectConfig struct {
	// BucketWidthFraction sets bucket width as a fraction of the
	// expected interval. Must stay well below 1.0 to avoid aliasing.
	BucketWidthFraction float64 `yaml:"bucket_width_fraction"`
	// DensityFraction is the fraction of burst_size that must land in
	// one bucket for it to count as a burst candidate.
	DensityFraction float64 `yaml:"density_fraction"`
	// IntervalTolerance is the allowed deviation of mean interval and
	// stddev, as a fraction of the expected interval.
	IntervalTolerance float64 `yaml:"interval_tolerance"`
}

// MonitorConfig controls the live monitoring HTTP server.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// OutputConfig controls persisted run artifacts.
type OutputConfig struct {
	// EventLog is the path for the per-request event log. A .zst
	// suffix enables zstd compression.
	EventLog string `yaml:"event_log"`
	Format   string `yaml:"format"` // "table" or "json"
}

// duration decodes YAML values like "5s" or bare numbers (seconds).
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("config: duration must be a scalar")
	}
	if parsed, err := time.ParseDuration(value.Value); err == nil {
		*d = duration(parsed)
		return nil
	}
	if secs, err := strconv.ParseFloat(value.Value, 64); err == nil {
		*d = duration(secs * float64(time.Second))
		return nil
	}
	return fmt.Errorf("config: invalid duration %q", value.Value)
}

// UnmarshalYAML decodes run settings, accepting both Go duration
// strings and numeric seconds for the time fields.
func (r *RunConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		BurstSize     int      `yaml:"burst_size"`
		BurstInterval duration `yaml:"burst_interval"`
		TotalDuration duration `yaml:"total_duration"`
		GracePeriod   duration `yaml:"grace_period"`
		SpawnRate     float64  `yaml:"spawn_rate"`
		LateThreshold duration `yaml:"late_threshold"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*r = RunConfig{
		BurstSize:     raw.BurstSize,
		BurstInterval: time.Duration(raw.BurstInterval),
		TotalDuration: time.Duration(raw.TotalDuration),
		GracePeriod:   time.Duration(raw.GracePeriod),
		SpawnRate:     raw.SpawnRate,
		LateThreshold: time.Duration(raw.LateThreshold),
	}
	return nil
}

// UnmarshalYAML decodes target settings with flexible timeout values.
func (t *TargetConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		URL          string   `yaml:"url"`
		APIKey       string   `yaml:"api_key"`
		Model        string   `yaml:"model"`
		Timeout      duration `yaml:"timeout"`
		PromptTokens int      `yaml:"prompt_tokens"`
		MaxTokens    int      `yaml:"max_tokens"`
		Stream       bool     `yaml:"stream"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*t = TargetConfig{
		URL:          raw.URL,
		APIKey:       raw.APIKey,
		Model:        raw.Model,
		Timeout:      time.Duration(raw.Timeout),
		PromptTokens: raw.PromptTokens,
		MaxTokens:    raw.MaxTokens,
		Stream:       raw.Stream,
	}
	return nil
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in default values.
func (c *Config) ApplyDefaults() {
	if c.Run.GracePeriod == 0 {
		c.Run.GracePeriod = 30 * time.Second
	}
	if c.Run.LateThreshold == 0 {
		c.Run.LateThreshold = 50 * time.Millisecond
	}
	if c.Target.Timeout == 0 {
		c.Target.Timeout = 30 * time.Second
	}
	if c.Target.PromptTokens == 0 {
		c.Target.PromptTokens = 128
	}
	if c.Target.MaxTokens == 0 {
		c.Target.MaxTokens = 64
	}
	if c.Detect.BucketWidthFraction == 0 {
		c.Detect.BucketWidthFraction = 0.1
	}
	if c.Detect.DensityFraction == 0 {
		c.Detect.DensityFraction = 0.8
	}
	if c.Detect.IntervalTolerance == 0 {
		c.Detect.IntervalTolerance = 0.1
	}
	if c.Monitor.Addr == "" {
		c.Monitor.Addr = ":9090"
	}
	if c.Output.Format == "" {
		c.Output.Format = "table"
	}
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if err := c.Run.Validate(); err != nil {
		return err
	}
	if c.Detect.BucketWidthFraction <= 0 || c.Detect.BucketWidthFraction >= 1 {
		return fmt.Errorf("config: bucket_width_fraction must be in (0, 1), got %g", c.Detect.BucketWidthFraction)
	}
	if c.Detect.DensityFraction <= 0 || c.Detect.DensityFraction > 1 {
		return fmt.Errorf("config: density_fraction must be in (0, 1], got %g", c.Detect.DensityFraction)
	}
	if c.Detect.IntervalTolerance <= 0 {
		return fmt.Errorf("config: interval_tolerance must be positive, got %g", c.Detect.IntervalTolerance)
	}
	return nil
}

// Validate checks the schedule parameters.
func (r *RunConfig) Validate() error {
	if r.BurstSize <= 0 {
		return fmt.Errorf("config: burst_size must be positive, got %d", r.BurstSize)
	}
	if r.BurstInterval <= 0 {
		return fmt.Errorf("config: burst_interval must be positive, got %v", r.BurstInterval)
	}
	if r.TotalDuration <= 0 {
		return fmt.Errorf("config: total_duration must be positive, got %v", r.TotalDuration)
	}
	if r.SpawnRate < 0 {
		return fmt.Errorf("config: spawn_rate must not be negative, got %g", r.SpawnRate)
	}
	return nil
}
