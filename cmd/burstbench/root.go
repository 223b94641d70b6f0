// cmd/burstbench/root.go
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/burstbench/internal/config"
	"github.com/FairForge/burstbench/internal/detect"
	"github.com/FairForge/burstbench/internal/report"
)

var (
	cfgPath string
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "burstbench",
	Short:         "Bursty load generator and burst-pattern verifier",
	Long: `burstbench offers fixed-size request bursts to a target service on a
fixed-interval schedule, records every request, and verifies after the
run that the observed traffic actually followed the intended cadence.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development-style logging")

	rootCmd.AddCommand(runCmd, analyzeCmd, previewCmd)
}

// loadConfig reads the config file when given, otherwise starts from
// defaults that flags can fill in.
func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg, nil
}

// detectParams maps the run configuration onto the detector. The
// expected burst count comes from the bursts actually scheduled, so a
// run interrupted early is judged against the truncated schedule.
func detectParams(cfg *config.Config, expectedBursts int) detect.Params {
	return detect.Params{
		ExpectedInterval:    cfg.Run.BurstInterval,
		BurstSize:           cfg.Run.BurstSize,
		ExpectedBursts:      expectedBursts,
		BucketWidthFraction: cfg.Detect.BucketWidthFraction,
		DensityFraction:     cfg.Detect.DensityFraction,
		IntervalTolerance:   cfg.Detect.IntervalTolerance,
	}
}

// renderReport writes the report in the configured format and turns a
// fail verdict into a non-zero exit for CI gating.
func renderReport(w io.Writer, format string, rep *detect.Report) error {
	var err error
	switch format {
	case "json":
		err = report.WriteJSON(w, rep)
	default:
		err = report.WriteTable(w, rep)
	}
	if err != nil {
		return err
	}
	if !rep.Pass {
		return fmt.Errorf("burst pattern verification failed")
	}
	return nil
}

func flagDuration(cmd *cobra.Command, name string) (time.Duration, bool) {
	if !cmd.Flags().Changed(name) {
		return 0, false
	}
	d, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return 0, false
	}
	return d, true
}

func exitIfMissingTarget(cfg *config.Config) error {
	if cfg.Target.URL == "" {
		return fmt.Errorf("target url is required (set target.url or --url)")
	}
	return nil
}

var stdout io.Writer = os.Stdout
