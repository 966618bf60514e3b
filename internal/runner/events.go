package runner

// Event represents a job lifecycle event.
// Minimal and stable: name + job id + task, optional fields via key/values.
type Event struct {
	Name   string
	JobID  string
	Task   string
	Fields map[string]any
}

// Event names.
const (
	EventSubmitted = "job_submitted"
	EventStarted   = "job_started"
	EventSucceeded = "job_succeeded"
	EventFailed    = "job_failed"
)

// EventPublisher receives events from the runner. Implementations should be
// lightweight and non-blocking; Publish is called from the worker goroutine
// and must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes events to the package logger at debug level.
type LogPublisher struct{}

func (LogPublisher) Publish(e Event) {
	z := zlog.Debug().Str("event", e.Name).Str("job_id", e.JobID).Str("task", e.Task)
	for k, v := range e.Fields {
		z = z.Interface(k, v)
	}
	z.Msg("job event")
}
