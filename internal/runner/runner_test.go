package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskd/internal/adapter"
)

// stubAdapter echoes its input after an optional delay, recording each call's
// start and end.
type stubAdapter struct {
	task  string
	delay time.Duration
	err   error
	panic bool
	gate  chan struct{}

	active  atomic.Int32
	overlap atomic.Bool
}

func (a *stubAdapter) Task() string        { return a.task }
func (a *stubAdapter) DisplayName() string { return "stub" }
func (a *stubAdapter) Run(ctx context.Context, req adapter.Request) (string, error) {
	if a.active.Add(1) > 1 {
		a.overlap.Store(true)
	}
	defer a.active.Add(-1)
	if a.gate != nil {
		<-a.gate
	}
	time.Sleep(a.delay)
	if a.panic {
		panic("kaboom")
	}
	if a.err != nil {
		return "", a.err
	}
	return "out:" + req.Text, nil
}

type collector struct {
	mu      sync.Mutex
	results []Result
	all     chan struct{}
	want    int
}

func newCollector(n int) *collector { return &collector{all: make(chan struct{}), want: n} }

func (c *collector) add(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	if len(c.results) == c.want {
		close(c.all)
	}
}

func (c *collector) wait(t *testing.T) []Result {
	t.Helper()
	select {
	case <-c.all:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %d results", c.want)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

func TestRunner_FIFONoOverlap(t *testing.T) {
	l := startLoop(t)
	r := New(l, Config{})
	a := &stubAdapter{task: "T", delay: 5 * time.Millisecond}
	c := newCollector(5)
	var ids []string
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		id, err := r.Submit(Job{Adapter: a, Request: adapter.Request{Text: text}}, c.add)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, id)
	}
	results := c.wait(t)
	for i, res := range results {
		if res.JobID != ids[i] {
			t.Fatalf("completion %d is %s, want %s", i, res.JobID, ids[i])
		}
		if i > 0 && res.Started.Before(results[i-1].Finished) {
			t.Fatalf("job %d started before job %d finished", i, i-1)
		}
		if !res.OK() || res.Task != "T" {
			t.Fatalf("unexpected result %+v", res)
		}
	}
	if results[4].Output != "out:e" {
		t.Fatalf("output=%q", results[4].Output)
	}
	if a.overlap.Load() {
		t.Fatalf("two jobs ran concurrently")
	}
}

func TestRunner_SubmitDoesNotBlockWhileRunning(t *testing.T) {
	l := startLoop(t)
	r := New(l, Config{})
	gate := make(chan struct{})
	a := &stubAdapter{task: "T", gate: gate}
	c := newCollector(2)
	if _, err := r.Submit(Job{Adapter: a}, c.add); err != nil {
		t.Fatalf("submit: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Submit(Job{Adapter: a}, c.add)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("submit blocked behind a running job")
	}
	close(gate)
	c.wait(t)
}

func TestRunner_CompletionOnLoop(t *testing.T) {
	l := startLoop(t)
	r := New(l, Config{})
	owner := make(chan struct{})
	var inLoop atomic.Bool
	// Holding the loop proves the completion waits for it.
	l.Post(func() { <-owner })
	c := newCollector(1)
	_, _ = r.Submit(Job{Adapter: &stubAdapter{task: "T"}}, func(res Result) {
		inLoop.Store(true)
		c.add(res)
	})
	time.Sleep(20 * time.Millisecond)
	if inLoop.Load() {
		t.Fatalf("completion ran while loop was busy")
	}
	close(owner)
	c.wait(t)
}

func TestRunner_FailuresAndPanics(t *testing.T) {
	l := startLoop(t)
	pub := NewMemoryPublisher()
	r := New(l, Config{Publisher: pub})
	boom := errors.New("boom")
	c := newCollector(3)
	bad, _ := r.Submit(Job{Adapter: &stubAdapter{task: "T", err: boom}}, c.add)
	pan, _ := r.Submit(Job{Adapter: &stubAdapter{task: "T", panic: true}}, c.add)
	good, _ := r.Submit(Job{Adapter: &stubAdapter{task: "T"}, Request: adapter.Request{Text: "x"}}, c.add)
	res := c.wait(t)

	if !errors.Is(res[0].Err, boom) || res[0].Payload() != "boom" {
		t.Fatalf("failure not propagated: %+v", res[0])
	}
	if !IsPanic(res[1].Err) {
		t.Fatalf("panic not converted: %v", res[1].Err)
	}
	if !res[2].OK() {
		t.Fatalf("worker did not survive the panic: %v", res[2].Err)
	}

	if rec, ok := r.Record(bad); !ok || rec.State != StateFailed || rec.Error != "boom" {
		t.Fatalf("record=%+v", rec)
	}
	if rec, _ := r.Record(pan); rec.State != StateFailed {
		t.Fatalf("panic record=%+v", rec)
	}
	if rec, _ := r.Record(good); rec.State != StateSucceeded || rec.Output != "out:x" || !rec.State.Done() {
		t.Fatalf("good record=%+v", rec)
	}
	names := pub.Names(bad)
	want := []string{EventSubmitted, EventStarted, EventFailed}
	if len(names) != len(want) {
		t.Fatalf("events=%v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events=%v", names)
		}
	}
	if got := pub.Names(good); got[len(got)-1] != EventSucceeded {
		t.Fatalf("events=%v", got)
	}
}

func TestRunner_ShutdownIsNonBlocking(t *testing.T) {
	l := startLoop(t)
	r := New(l, Config{})
	gate := make(chan struct{})
	c := newCollector(2)
	a := &stubAdapter{task: "T", gate: gate}
	_, _ = r.Submit(Job{Adapter: a}, c.add)
	_, _ = r.Submit(Job{Adapter: a}, c.add)

	start := time.Now()
	r.Shutdown()
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("shutdown blocked")
	}
	if _, err := r.Submit(Job{Adapter: a}, c.add); !IsClosed(err) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if r.Pending() == 0 {
		t.Fatalf("expected queued job to survive shutdown")
	}
	close(gate)
	if got := c.wait(t); len(got) != 2 {
		t.Fatalf("queued jobs dropped: %d", len(got))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRunner_RejectsJobWithoutAdapter(t *testing.T) {
	r := New(startLoop(t), Config{})
	if _, err := r.Submit(Job{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}
