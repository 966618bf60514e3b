package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Defaults applied when corresponding Config fields are unset.
const defaultHistorySize = 256

// Config tunes a Runner.
type Config struct {
	// HistorySize bounds how many job records stay queryable via Record.
	HistorySize int
	Publisher   EventPublisher
}

type pending struct {
	job       Job
	onDone    func(Result)
	submitted time.Time
}

// Runner executes jobs one at a time on a single worker goroutine and posts
// each completion to its Loop.
type Runner struct {
	loop      *Loop
	publisher EventPublisher
	history   *lru.Cache[string, Record]

	mu     sync.Mutex
	queue  []*pending
	closed bool

	wake       chan struct{} // size 1: coalesced wakeups
	workerDone chan struct{}
}

// New starts the worker goroutine. Completions are delivered on loop.
func New(loop *Loop, cfg Config) *Runner {
	size := cfg.HistorySize
	if size <= 0 {
		size = defaultHistorySize
	}
	// lru.New only errors on non-positive size which we guard above.
	history, _ := lru.New[string, Record](size)
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	r := &Runner{
		loop:       loop,
		publisher:  pub,
		history:    history,
		wake:       make(chan struct{}, 1),
		workerDone: make(chan struct{}),
	}
	go r.work()
	return r
}

// Submit enqueues job and returns its id immediately. onDone runs on the
// control loop exactly once, after the job's Run has returned.
func (r *Runner) Submit(job Job, onDone func(Result)) (string, error) {
	if job.Adapter == nil {
		return "", errors.New("runner: job has no adapter")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Task == "" {
		job.Task = job.Adapter.Task()
	}
	p := &pending{job: job, onDone: onDone, submitted: time.Now()}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", errRunnerClosed
	}
	// Recorded under the lock so the worker's later updates always win.
	r.history.Add(job.ID, Record{ID: job.ID, Task: job.Task, State: StateSubmitted, Submitted: p.submitted})
	r.publisher.Publish(Event{Name: EventSubmitted, JobID: job.ID, Task: job.Task, Fields: map[string]any{"queue": len(r.queue)}})
	r.queue = append(r.queue, p)
	depth := len(r.queue)
	r.mu.Unlock()

	queueDepth.Set(float64(depth))
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return job.ID, nil
}

// Record returns the retained view of a job, if still in history.
func (r *Runner) Record(id string) (Record, bool) {
	return r.history.Get(id)
}

// Pending returns the number of jobs not yet started.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Shutdown stops accepting new jobs and returns at once. Jobs already queued
// and the one in flight finish in the background.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until the worker has drained after Shutdown, or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-r.workerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the worker has exited after Shutdown.
func (r *Runner) Done() <-chan struct{} { return r.workerDone }

// Closed reports whether Shutdown was called.
func (r *Runner) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Runner) next() (*pending, bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, r.closed, 0
	}
	p := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return p, false, len(r.queue)
}

func (r *Runner) work() {
	defer close(r.workerDone)
	for {
		p, closed, depth := r.next()
		if p == nil {
			if closed {
				return
			}
			<-r.wake
			continue
		}
		queueDepth.Set(float64(depth))
		r.execute(p)
	}
}

// execute runs one job and posts its completion. Adapter errors and panics
// both become failed Results; neither escapes the worker.
func (r *Runner) execute(p *pending) {
	job := p.job
	res := Result{JobID: job.ID, Task: job.Task, Submitted: p.submitted, Started: time.Now()}
	r.history.Add(job.ID, Record{ID: job.ID, Task: job.Task, State: StateRunning, Submitted: p.submitted, Started: res.Started})
	r.publisher.Publish(Event{Name: EventStarted, JobID: job.ID, Task: job.Task})
	zlog.Info().Str("job_id", job.ID).Str("task", job.Task).Str("model", job.Adapter.DisplayName()).Msg("job start")
	inflight.Set(1)

	res.Output, res.Err = safeRun(job)

	inflight.Set(0)
	res.Finished = time.Now()
	jobDuration.WithLabelValues(job.Task).Observe(res.Elapsed().Seconds())
	jobsTotal.WithLabelValues(job.Task, statusLabel(res.Err)).Inc()

	rec := Record{ID: job.ID, Task: job.Task, State: StateSucceeded, Output: res.Output,
		Submitted: p.submitted, Started: res.Started, Finished: res.Finished}
	if res.Err != nil {
		rec.State = StateFailed
		rec.Output = ""
		rec.Error = res.Err.Error()
		zlog.Warn().Str("job_id", job.ID).Str("task", job.Task).Dur("dur", res.Elapsed()).Err(res.Err).Msg("job end")
		r.publisher.Publish(Event{Name: EventFailed, JobID: job.ID, Task: job.Task, Fields: map[string]any{"error": rec.Error}})
	} else {
		zlog.Info().Str("job_id", job.ID).Str("task", job.Task).Dur("dur", res.Elapsed()).Int("chars", len(res.Output)).Msg("job end")
		r.publisher.Publish(Event{Name: EventSucceeded, JobID: job.ID, Task: job.Task})
	}
	r.history.Add(job.ID, rec)

	if p.onDone == nil {
		return
	}
	onDone := p.onDone
	if !r.loop.Post(func() { onDone(res) }) {
		zlog.Warn().Str("job_id", job.ID).Msg("control loop stopped; completion dropped")
	}
}

func safeRun(job Job) (out string, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError{v: v}
		}
	}()
	// Jobs run to completion; no caller context can cancel them.
	return job.Adapter.Run(context.Background(), job.Request)
}

// State returns the lifecycle state of a retained job.
func (r *Runner) State(id string) (State, bool) {
	rec, ok := r.history.Get(id)
	return rec.State, ok
}
