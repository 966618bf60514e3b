package runner

import (
	"context"
	"sync"
	"sync/atomic"
)

// Loop is the control goroutine. Functions posted to it run one at a time,
// in posting order, on the goroutine that called Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{} // size 1: coalesced wakeups
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Post enqueues fn without blocking. It reports false once the loop stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to return. It must not be called
// from the loop goroutine itself. When an error is returned fn never runs: a
// call abandoned on ctx is skipped by the loop, unless fn had already started,
// in which case Do waits for it and reports success.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	const (
		doPending int32 = iota
		doStarted
		doAbandoned
	)
	var state atomic.Int32
	finished := make(chan struct{})
	posted := l.Post(func() {
		defer close(finished)
		if !state.CompareAndSwap(doPending, doStarted) {
			return
		}
		fn()
	})
	if !posted {
		return errLoopClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// Run drains the queue before closing done, so fn either ran or never will.
		select {
		case <-finished:
			return nil
		default:
			return errLoopClosed
		}
	case <-ctx.Done():
		if state.CompareAndSwap(doPending, doAbandoned) {
			return ctx.Err()
		}
		<-finished
		return nil
	}
}

// Run processes posted functions until ctx is done or Stop is called, then
// drains whatever was already queued and returns.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.invoke(fn)
		}
		select {
		case <-l.wake:
		case <-l.stop:
			l.shutdown()
			return
		case <-ctx.Done():
			l.shutdown()
			return
		}
	}
}

// Stop asks Run to return. It does not wait; use Done for that.
func (l *Loop) Stop() { l.once.Do(func() { close(l.stop) }) }

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	for {
		fn, ok := l.next()
		if !ok {
			return
		}
		l.invoke(fn)
	}
}

// invoke runs fn, keeping the loop alive if a handler panics.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			zlog.Error().Interface("panic", v).Msg("control loop handler panicked")
		}
	}()
	fn()
}
