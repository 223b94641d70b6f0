// cmd/burstbench/analyze.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/burstbench/internal/config"
	"github.com/FairForge/burstbench/internal/detect"
	"github.com/FairForge/burstbench/internal/recorder"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <event-log>",
	Short: "Verify the burst pattern in a previously recorded event log",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.Int("burst-size", 0, "requests per burst the run was configured with")
	f.Duration("interval", 0, "expected burst interval")
	f.Duration("duration", 0, "total run duration, for the expected burst count")
	f.Int("expected-bursts", 0, "override the expected burst count")
	f.Float64("tolerance", 0, "interval tolerance as a fraction of the interval")
	f.String("format", "", "report format: table or json")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if v, _ := f.GetInt("burst-size"); v != 0 {
		cfg.Run.BurstSize = v
	}
	if v, ok := flagDuration(cmd, "interval"); ok {
		cfg.Run.BurstInterval = v
	}
	if v, ok := flagDuration(cmd, "duration"); ok {
		cfg.Run.TotalDuration = v
	}
	if v, _ := f.GetFloat64("tolerance"); v != 0 {
		cfg.Detect.IntervalTolerance = v
	}
	if v, _ := f.GetString("format"); v != "" {
		cfg.Output.Format = v
	}
	if cfg.Run.BurstSize <= 0 || cfg.Run.BurstInterval <= 0 {
		return fmt.Errorf("analyze needs --burst-size and --interval (or a config file)")
	}

	expectedBursts, _ := f.GetInt("expected-bursts")
	if expectedBursts == 0 && cfg.Run.TotalDuration > 0 {
		derived, err := config.Derive(cfg.Run)
		if err != nil {
			return err
		}
		expectedBursts = derived.ExpectedBursts
	}

	events, err := recorder.ReadEvents(args[0])
	if err != nil {
		return err
	}
	logger.Info("event log loaded",
		zap.String("path", args[0]),
		zap.Int("events", len(events)))

	rep, err := detect.Analyze(events, detectParams(cfg, expectedBursts))
	if err != nil {
		return err
	}
	return renderReport(stdout, cfg.Output.Format, rep)
}
