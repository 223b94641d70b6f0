// Package recorder collects per-request events from a benchmark run.
//
// The scheduler hands each completed request to a Sink exactly once.
// Events are append-only: once recorded they are never mutated, and
// snapshots are copies, so readers never observe torn writes.
package recorder

import (
	"sort"
	"sync"
	"time"

	"github.com/FairForge/burstbench/internal/executor"
)

// RequestEvent is the record of one dispatched request.
type RequestEvent struct {
	BurstIndex int              `json:"burst_index"`
	Dispatch   time.Time        `json:"dispatch_time"`
	Completion time.Time        `json:"completion_time,omitzero"` // zero when the request never succeeded
	Outcome    executor.Outcome `json:"outcome"`
	Latency    time.Duration    `json:"latency"`
	StatusCode int              `json:"status_code,omitempty"`
	// Late and Skew describe the burst this event belongs to: the burst
	// started Skew past its scheduled tick.
	Late bool          `json:"late,omitempty"`
	Skew time.Duration `json:"skew,omitempty"`
}

// Sink receives completed request events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Record(ev RequestEvent)
}

// Totals summarizes a recorder's contents for live monitoring.
type Totals struct {
	Requests   int `json:"requests"`
	Successes  int `json:"successes"`
	Failures   int `json:"failures"`
	Timeouts   int `json:"timeouts"`
	LastBurst  int `json:"last_burst"`
	LateEvents int `json:"late_events"`
}

// Memory is the in-process recorder. It supports snapshots while a run
// is still writing, for live monitoring and for post-run analysis.
type Memory struct {
	mu     sync.Mutex
	events []RequestEvent
	totals Totals
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{
		events: make([]RequestEvent, 0, 4096),
		totals: Totals{LastBurst: -1},
	}
}

// Record appends one event.
func (m *Memory) Record(ev RequestEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	m.totals.Requests++
	switch ev.Outcome {
	case executor.OutcomeSuccess:
		m.totals.Successes++
	case executor.OutcomeTimeout:
		m.totals.Timeouts++
	default:
		m.totals.Failures++
	}
	if ev.BurstIndex > m.totals.LastBurst {
		m.totals.LastBurst = ev.BurstIndex
	}
	if ev.Late {
		m.totals.LateEvents++
	}
}

// Snapshot returns a copy of all recorded events ordered by dispatch
// time. Safe to call while writes are still occurring.
func (m *Memory) Snapshot() []RequestEvent {
	m.mu.Lock()
	out := make([]RequestEvent, len(m.events))
	copy(out, m.events)
	m.mu.Unlock()

	sortByDispatch(out)
	return out
}

func sortByDispatch(events []RequestEvent) {
	sort.Slice(events, func(i, j int) bool { return events[i].Dispatch.Before(events[j].Dispatch) })
}

// Totals returns current counters.
func (m *Memory) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// Len returns the number of recorded events.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Multi fans a single event stream out to several sinks.
type Multi []Sink

// Record implements Sink.
func (s Multi) Record(ev RequestEvent) {
	for _, sink := range s {
		sink.Record(ev)
	}
}
