// cmd/burstbench/preview.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FairForge/burstbench/internal/config"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the derived rates and first scheduled ticks for a config",
	RunE:  runPreview,
}

func init() {
	f := previewCmd.Flags()
	f.Int("burst-size", 0, "requests per burst")
	f.Duration("interval", 0, "time between burst ticks")
	f.Duration("duration", 0, "total run duration")
	f.Int("ticks", 10, "number of scheduled ticks to preview")
}

func runPreview(cmd *cobra.Command, args []string) error {
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

	derived, err := config.Derive(cfg.Run)
	if err != nil {
		return err
	}
	ticks, _ := f.GetInt("ticks")
	preview, err := config.TickPreview(cfg.Run, ticks)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Schedule: %d requests every %v for %v\n",
		cfg.Run.BurstSize, cfg.Run.BurstInterval, cfg.Run.TotalDuration)
	fmt.Fprintf(stdout, "Bursts per minute: %.2f\n", derived.BurstsPerMinute)
	fmt.Fprintf(stdout, "Bursts per hour:   %.2f\n", derived.BurstsPerHour)
	fmt.Fprintf(stdout, "Target RPM:        %.2f\n", derived.TargetRPM)
	fmt.Fprintf(stdout, "Expected bursts:   %d\n", derived.ExpectedBursts)

	fmt.Fprintln(stdout, "First scheduled ticks:")
	for k, offset := range preview {
		fmt.Fprintf(stdout, "  burst %3d at t+%v\n", k, offset)
	}
	return nil
}
