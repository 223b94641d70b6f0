// Package executor issues individual requests against the target service.
package executor

import (
	"context"
	"time"
)

// Outcome classifies how a request ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

// Result captures one request's measurement.
type Result struct {
	Outcome    Outcome
	Latency    time.Duration
	StatusCode int
	Err        error
}

// Executor issues one request and measures it. Implementations must be
// safe for concurrent use; the scheduler calls Execute from many
// goroutines at once.
type Executor interface {
	Execute(ctx context.Context) Result
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context) Result

// Execute implements Executor.
func (f Func) Execute(ctx context.Context) Result { return f(ctx) }
