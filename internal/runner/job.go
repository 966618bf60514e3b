package runner

import (
	"time"

	"taskd/internal/adapter"
)

// State is a job lifecycle state: submitted -> running -> succeeded|failed.
type State string

const (
	StateSubmitted State = "submitted"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Done reports whether s is terminal.
func (s State) Done() bool { return s == StateSucceeded || s == StateFailed }

// Job is one queued adapter invocation. The adapter is resolved by the
// caller at submission time, so a later registry change never affects a job
// already queued.
type Job struct {
	ID      string
	Task    string
	Adapter adapter.Adapter
	Request adapter.Request
}

// Result is the outcome of a job: Output on success, Err on failure.
type Result struct {
	JobID     string
	Task      string
	Output    string
	Err       error
	Submitted time.Time
	Started   time.Time
	Finished  time.Time
}

// OK reports whether the job succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Payload is the output on success and the error text on failure.
func (r Result) Payload() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Output
}

// Elapsed is the time spent inside the adapter.
func (r Result) Elapsed() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Record is the retained view of a job.
type Record struct {
	ID        string
	Task      string
	State     State
	Output    string
	Error     string
	Submitted time.Time
	Started   time.Time
	Finished  time.Time
}
