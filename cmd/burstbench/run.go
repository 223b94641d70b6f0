// cmd/burstbench/run.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/burstbench/internal/api"
	"github.com/FairForge/burstbench/internal/burst"
	"github.com/FairForge/burstbench/internal/config"
	"github.com/FairForge/burstbench/internal/detect"
	"github.com/FairForge/burstbench/internal/executor"
	"github.com/FairForge/burstbench/internal/metrics"
	"github.com/FairForge/burstbench/internal/recorder"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the burst schedule against the target and verify the pattern",
	RunE:  runBench,
}

func init() {
	f := runCmd.Flags()
	f.String("url", "", "target endpoint URL")
	f.String("api-key", "", "bearer token for the target")
	f.String("model", "", "model name for the inference payload")
	f.Int("burst-size", 0, "requests per burst")
	f.Duration("interval", 0, "time between burst ticks")
	f.Duration("duration", 0, "total run duration")
	f.Float64("spawn-rate", 0, "request launches per second within a burst (0 = all at once)")
	f.String("event-log", "", "write per-request events to this CSV file (.zst compresses)")
	f.String("format", "", "report format: table or json")
	f.Bool("monitor", false, "serve live stats and metrics over HTTP")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := exitIfMissingTarget(cfg); err != nil {
		return err
	}

	derived, err := config.Derive(cfg.Run)
	if err != nil {
		return err
	}
	logger.Info("benchmark configured",
		zap.Int("burst_size", cfg.Run.BurstSize),
		zap.Duration("burst_interval", cfg.Run.BurstInterval),
		zap.Duration("total_duration", cfg.Run.TotalDuration),
		zap.Float64("bursts_per_minute", derived.BurstsPerMinute),
		zap.Float64("target_rpm", derived.TargetRPM),
		zap.Int("expected_bursts", derived.ExpectedBursts))

	m := metrics.New()
	mem := recorder.NewMemory()
	var sink recorder.Sink = mem

	var eventLog *recorder.CSVSink
	if cfg.Output.EventLog != "" {
		eventLog, err = recorder.OpenCSVSink(cfg.Output.EventLog)
		if err != nil {
			return err
		}
		sink = recorder.Multi{mem, eventLog}
	}

	if cfg.Monitor.Enabled {
		monitor := api.NewServer(cfg.Monitor.Addr, mem, m, logger)
		monitor.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = monitor.Shutdown(ctx)
		}()
	}

	exec, err := executor.NewHTTP(cfg.Target)
	if err != nil {
		return err
	}
	sched, err := burst.New(cfg.Run, exec, sink, logger, m)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := sched.Run(ctx)
	if err != nil {
		return err
	}
	if eventLog != nil {
		if cerr := eventLog.Close(); cerr != nil {
			logger.Warn("closing event log", zap.Error(cerr))
		} else {
			logger.Info("event log written", zap.String("path", cfg.Output.EventLog))
		}
	}

	rep, err := detect.Analyze(mem.Snapshot(), detectParams(cfg, stats.Bursts))
	if err != nil {
		return err
	}
	return renderReport(stdout, cfg.Output.Format, rep)
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if v, _ := f.GetString("url"); v != "" {
		cfg.Target.URL = v
	}
	if v, _ := f.GetString("api-key"); v != "" {
		cfg.Target.APIKey = v
	}
	if v, _ := f.GetString("model"); v != "" {
		cfg.Target.Model = v
	}
	if v, _ := f.GetInt("burst-size"); v != 0 {
		cfg.Run.BurstSize = v
	}
	if v, ok := flagDuration(cmd, "interval"); ok {
		cfg.Run.BurstInterval = v
	}
	if v, ok := flagDuration(cmd, "duration"); ok {
		cfg.Run.TotalDuration = v
	}
	if v, _ := f.GetFloat64("spawn-rate"); v != 0 {
		cfg.Run.SpawnRate = v
	}
	if v, _ := f.GetString("event-log"); v != "" {
		cfg.Output.EventLog = v
	}
	if v, _ := f.GetString("format"); v != "" {
		cfg.Output.Format = v
	}
	if v, _ := f.GetBool("monitor"); v {
		cfg.Monitor.Enabled = true
	}
}
