package orchestrator

import (
	"sync"
	"time"
)

// Activity kinds.
const (
	ActivitySelect   = "select"
	ActivityLanguage = "language"
	ActivitySubmit   = "submit"
	ActivityComplete = "complete"
)

const defaultActivitySize = 100

// Activity is one entry of the recent activity feed.
type Activity struct {
	Time    time.Time
	Kind    string
	Task    string
	Detail  string
	Success bool
}

// activityLog is a fixed-size ring, safe for concurrent use.
type activityLog struct {
	mu    sync.Mutex
	buf   []Activity
	next  int
	count int
}

func newActivityLog(size int) *activityLog {
	if size <= 0 {
		size = defaultActivitySize
	}
	return &activityLog{buf: make([]Activity, size)}
}

func (l *activityLog) add(kind, task, detail string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = Activity{Time: time.Now(), Kind: kind, Task: task, Detail: detail, Success: ok}
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
}

// list returns entries oldest first.
func (l *activityLog) list() []Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Activity, 0, l.count)
	start := (l.next - l.count + len(l.buf)) % len(l.buf)
	for i := 0; i < l.count; i++ {
		out = append(out, l.buf[(start+i)%len(l.buf)])
	}
	return out
}
