// Package runner executes adapter calls on exactly one background worker and
// hands every completion to a control Loop.
//
//   - loop.go: Loop, the control goroutine. All completion handlers run here.
//   - runner.go: Runner, the single worker with an unbounded FIFO queue.
//   - job.go: Job, Result, State and the retained job Record.
//   - errors.go: error types and helpers (IsClosed, IsPanic).
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus instrumentation at the worker boundary.
//   - logging.go: structured logger installation.
//
// Jobs run to completion: there is no cancellation or preemption. A
// submission made while another job runs waits in the queue; Submit itself
// never blocks on the worker.
package runner
