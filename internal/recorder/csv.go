// internal/recorder/csv.go
package recorder

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/FairForge/burstbench/internal/executor"
)

// csvHeader is the row-oriented boundary format the analyzer consumes.
// One row per request, ordered by dispatch time on read.
var csvHeader = []string{
	"burst_index", "dispatch_time", "completion_time",
	"outcome", "latency_ms", "status_code", "late", "skew_ms",
}

// CSVSink streams events to a file as they are recorded. A .zst path
// suffix enables zstd compression.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	zw     *zstd.Encoder
	w      *csv.Writer
	closed bool
}

// OpenCSVSink creates the event log file and writes the header.
func OpenCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("recorder: create event log: %w", err)
	}
	s := &CSVSink{file: f}

	var out io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("recorder: zstd writer: %w", err)
		}
		s.zw = zw
		out = zw
	}
	s.w = csv.NewWriter(out)

	if err := s.w.Write(csvHeader); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("recorder: write header: %w", err)
	}
	return s, nil
}

// Record implements Sink. Write errors are swallowed here and surfaced
// by Close; a failing disk must not abort the run.
func (s *CSVSink) Record(ev RequestEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	_ = s.w.Write(encodeEvent(ev))
}

// Close flushes and closes the event log.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	err := s.w.Error()
	if s.zw != nil {
		if zerr := s.zw.Close(); err == nil {
			err = zerr
		}
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("recorder: close event log: %w", err)
	}
	return nil
}

func encodeEvent(ev RequestEvent) []string {
	completion := ""
	if !ev.Completion.IsZero() {
		completion = ev.Completion.Format(time.RFC3339Nano)
	}
	return []string{
		strconv.Itoa(ev.BurstIndex),
		ev.Dispatch.Format(time.RFC3339Nano),
		completion,
		string(ev.Outcome),
		strconv.FormatFloat(float64(ev.Latency)/float64(time.Millisecond), 'f', 3, 64),
		strconv.Itoa(ev.StatusCode),
		strconv.FormatBool(ev.Late),
		strconv.FormatFloat(float64(ev.Skew)/float64(time.Millisecond), 'f', 3, 64),
	}
}

// WriteCSV writes events as one CSV document, header included.
func WriteCSV(w io.Writer, events []RequestEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("recorder: write header: %w", err)
	}
	for _, ev := range events {
		if err := cw.Write(encodeEvent(ev)); err != nil {
			return fmt.Errorf("recorder: write event: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadEvents loads an event log written by CSVSink or WriteCSV and
// returns the events ordered by dispatch time. A .zst suffix selects
// zstd decompression.
func ReadEvents(path string) ([]RequestEvent, error) {
	f, err := os.Open(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("recorder: open event log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var in io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("recorder: zstd reader: %w", err)
		}
		defer zr.Close()
		in = zr
	}
	return readCSV(in)
}

func readCSV(r io.Reader) ([]RequestEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("recorder: read header: %w", err)
	}
	if header[0] != csvHeader[0] {
		return nil, fmt.Errorf("recorder: unexpected header %q", header[0])
	}

	var events []RequestEvent
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("recorder: read row: %w", err)
		}
		ev, err := decodeEvent(row)
		if err != nil {
			return nil, fmt.Errorf("recorder: line %d: %w", line, err)
		}
		events = append(events, ev)
	}

	sortByDispatch(events)
	return events, nil
}

func decodeEvent(row []string) (RequestEvent, error) {
	var ev RequestEvent
	var err error

	if ev.BurstIndex, err = strconv.Atoi(row[0]); err != nil {
		return ev, fmt.Errorf("burst_index: %w", err)
	}
	if ev.Dispatch, err = time.Parse(time.RFC3339Nano, row[1]); err != nil {
		return ev, fmt.Errorf("dispatch_time: %w", err)
	}
	if row[2] != "" {
		if ev.Completion, err = time.Parse(time.RFC3339Nano, row[2]); err != nil {
			return ev, fmt.Errorf("completion_time: %w", err)
		}
	}
	switch executor.Outcome(row[3]) {
	case executor.OutcomeSuccess, executor.OutcomeFailure, executor.OutcomeTimeout:
		ev.Outcome = executor.Outcome(row[3])
	default:
		return ev, fmt.Errorf("unknown outcome %q", row[3])
	}
	latencyMS, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return ev, fmt.Errorf("latency_ms: %w", err)
	}
	ev.Latency = time.Duration(latencyMS * float64(time.Millisecond))
	if ev.StatusCode, err = strconv.Atoi(row[5]); err != nil {
		return ev, fmt.Errorf("status_code: %w", err)
	}
	if ev.Late, err = strconv.ParseBool(row[6]); err != nil {
		return ev, fmt.Errorf("late: %w", err)
	}
	skewMS, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return ev, fmt.Errorf("skew_ms: %w", err)
	}
	ev.Skew = time.Duration(skewMS * float64(time.Millisecond))
	return ev, nil
}
