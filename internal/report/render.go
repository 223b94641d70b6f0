// Package report renders analysis results for humans and for CI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/FairForge/burstbench/internal/detect"
)

// maxTableWindows caps the burst table; long runs summarize the rest.
const maxTableWindows = 25

// WriteJSON emits the machine-readable report for CI gating.
func WriteJSON(w io.Writer, rep *detect.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteTable emits the human-readable report.
func WriteTable(w io.Writer, rep *detect.Report) error {
	fmt.Fprintf(w, "Run %s\n", rep.RunID)
	fmt.Fprintf(w, "Requests: %d total, %d success, %d failure, %d timeout\n",
		rep.TotalRequests, rep.Successes, rep.Failures, rep.Timeouts)
	fmt.Fprintf(w, "Bursts: %d detected, %d expected, %d late\n",
		rep.DetectedBursts, rep.ExpectedBursts, rep.LateBursts)
	fmt.Fprintf(w, "Intervals: mean %v, stddev %v, expected %v\n\n",
		rep.MeanInterval.Round(time.Millisecond),
		rep.IntervalStddev.Round(time.Millisecond),
		rep.ExpectedInterval)

	if len(rep.Windows) > 0 {
		if err := writeWindowTable(w, rep); err != nil {
			return err
		}
	}

	verdict := color.New(color.FgGreen).SprintFunc()("PASS")
	if !rep.Pass {
		verdict = color.New(color.FgRed).SprintFunc()("FAIL")
	}
	fmt.Fprintf(w, "\nVerdict: %s\n", verdict)
	for _, reason := range rep.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	return nil
}

func writeWindowTable(w io.Writer, rep *detect.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Burst", "Center", "Requests", "Gap To Next"})

	shown := len(rep.Windows)
	if shown > maxTableWindows {
		shown = maxTableWindows
	}

	var data [][]string
	for i := 0; i < shown; i++ {
		win := rep.Windows[i]
		gap := "-"
		if i+1 < len(rep.Windows) {
			gap = (rep.Windows[i+1].Center - win.Center).Round(time.Millisecond).String()
		}
		data = append(data, []string{
			strconv.Itoa(i),
			win.Center.Round(time.Millisecond).String(),
			strconv.Itoa(win.Requests),
			gap,
		})
	}

	if err := table.Bulk(data); err != nil {
		return fmt.Errorf("report: build table: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("report: render table: %w", err)
	}
	if hidden := len(rep.Windows) - shown; hidden > 0 {
		fmt.Fprintf(w, "... %d more bursts\n", hidden)
	}
	return nil
}
