// Package orchestrator ties the registry, the control loop and the task runner
// together behind the operations a presentation layer needs: list and select
// tasks, pick a translation language, submit runs and receive completions.
//
// Registry state and the active task are owned by the control loop; every
// method that touches them hops onto the loop with Loop.Do.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"taskd/internal/adapter"
	"taskd/internal/inference"
	"taskd/internal/registry"
	"taskd/internal/runner"
)

// Config parameterizes New.
type Config struct {
	Backend inference.Backend
	// Specs is the task catalog; nil means adapter.DefaultSpecs.
	Specs []adapter.Spec
	// DefaultTask is the task active at startup; empty means the first task.
	DefaultTask  string
	OutputsDir   string
	HistorySize  int
	ActivitySize int
	Publisher    runner.EventPublisher
}

// RunRequest is one user-initiated run.
type RunRequest struct {
	// Task defaults to the active task.
	Task      string
	Text      string
	ImagePath string
	Options   adapter.Options
	// Language, when set on a translation run, replaces the translation
	// adapter before the job is queued.
	Language string
	// Save appends a successful payload to Destination, or to the task's
	// default output file when Destination is empty. A relative Destination
	// is resolved under the outputs dir.
	Save        bool
	Destination string
}

// Completion is what the presentation layer sees when a job finishes.
type Completion struct {
	JobID    string
	Task     string
	Model    string
	Language string
	Success  bool
	Payload  string
	Elapsed  time.Duration
	Finished time.Time
	// SavedTo is set when the payload was appended to a file.
	SavedTo   string
	SaveError string
}

type Orchestrator struct {
	backend inference.Backend
	outputs string
	kinds   map[string]inference.Kind
	order   []string

	loop   *runner.Loop
	runner *runner.Runner
	stop   context.CancelFunc

	// Owned by the loop goroutine.
	reg     *registry.Registry
	active  string
	retired []adapter.Adapter

	activity *activityLog

	lmu       sync.Mutex
	listeners map[int]func(Completion)
	nextL     int
	closeOnce sync.Once
	// released is closed once every adapter has been closed.
	released chan struct{}
}

// New builds the registry and starts the control loop and the worker. A
// registry construction failure is returned as is and nothing is started.
func New(cfg Config) (*Orchestrator, error) {
	specs := cfg.Specs
	if specs == nil {
		specs = adapter.DefaultSpecs()
	}
	reg, err := registry.Build(cfg.Backend, specs)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		backend:   cfg.Backend,
		outputs:   cfg.OutputsDir,
		kinds:     make(map[string]inference.Kind, len(specs)),
		order:     reg.Tasks(),
		reg:       reg,
		activity:  newActivityLog(cfg.ActivitySize),
		listeners: map[int]func(Completion){},
		released:  make(chan struct{}),
	}
	for _, s := range specs {
		k := s.Kind
		if k == "" {
			k, _ = adapter.KindForTask(s.Task)
		}
		o.kinds[s.Task] = k
	}
	o.active = o.order[0]
	if cfg.DefaultTask != "" {
		if !reg.Has(cfg.DefaultTask) {
			_ = reg.Close()
			return nil, registry.ErrUnknownTask(cfg.DefaultTask)
		}
		o.active = cfg.DefaultTask
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.stop = cancel
	o.loop = runner.NewLoop()
	go o.loop.Run(ctx)
	o.runner = runner.New(o.loop, runner.Config{HistorySize: cfg.HistorySize, Publisher: cfg.Publisher})
	zlog.Info().Strs("tasks", o.order).Str("active", o.active).Str("backend", cfg.Backend.Name()).Msg("orchestrator ready")
	return o, nil
}

// do runs fn on the control loop.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	return o.loop.Do(ctx, fn)
}

// Tasks returns task identifiers in catalog order. The set is fixed for the
// orchestrator's lifetime.
func (o *Orchestrator) Tasks() []string { return append([]string(nil), o.order...) }

// TaskInfo pairs a task with its current adapter's display name.
type TaskInfo struct {
	Task        string
	DisplayName string
	Kind        inference.Kind
}

// Catalog lists every task with its current display name.
func (o *Orchestrator) Catalog(ctx context.Context) ([]TaskInfo, error) {
	var out []TaskInfo
	err := o.do(ctx, func() {
		for _, t := range o.reg.Tasks() {
			name, _ := o.reg.DisplayName(t)
			out = append(out, TaskInfo{Task: t, DisplayName: name, Kind: o.kinds[t]})
		}
	})
	return out, err
}

// Models lists distinct display names in catalog order.
func (o *Orchestrator) Models(ctx context.Context) ([]string, error) {
	var out []string
	err := o.do(ctx, func() { out = o.reg.Models() })
	return out, err
}

func (o *Orchestrator) ActiveTask(ctx context.Context) (string, error) {
	var task string
	err := o.do(ctx, func() { task = o.active })
	return task, err
}

// DisplayName returns the display name of task's current adapter.
func (o *Orchestrator) DisplayName(ctx context.Context, task string) (string, error) {
	var (
		name string
		derr error
	)
	if err := o.do(ctx, func() { name, derr = o.reg.DisplayName(task) }); err != nil {
		return "", err
	}
	return name, derr
}

// SelectTask makes task active and returns its display name, keeping the
// model selector in sync.
func (o *Orchestrator) SelectTask(ctx context.Context, task string) (string, error) {
	var (
		name string
		serr error
	)
	if err := o.do(ctx, func() {
		name, serr = o.reg.DisplayName(task)
		if serr == nil {
			o.active = task
		}
	}); err != nil {
		return "", err
	}
	if serr == nil {
		o.activity.add(ActivitySelect, task, name, true)
	}
	return name, serr
}

// OnModelSelected maps a display name back to a task and activates it. It
// reports false, leaving the active task alone, when no adapter has the name.
func (o *Orchestrator) OnModelSelected(ctx context.Context, name string) (string, bool, error) {
	var (
		task string
		ok   bool
	)
	if err := o.do(ctx, func() {
		task, ok = o.reg.ResolveModel(name)
		if ok {
			o.active = task
		}
	}); err != nil {
		return "", false, err
	}
	if ok {
		o.activity.add(ActivitySelect, task, name, true)
	}
	return task, ok, nil
}

// SetLanguage installs a fresh translation adapter for lang and returns its
// display name.
func (o *Orchestrator) SetLanguage(ctx context.Context, lang string) (string, error) {
	var (
		name string
		serr error
	)
	if err := o.do(ctx, func() { name, serr = o.setLanguage(lang) }); err != nil {
		return "", err
	}
	return name, serr
}

// setLanguage runs on the loop.
func (o *Orchestrator) setLanguage(lang string) (string, error) {
	task, ok := o.translationTask()
	if !ok {
		return "", registry.ErrUnknownTask(adapter.TaskTranslation)
	}
	l, ok := adapter.LookupLanguage(lang)
	if !ok {
		return "", adapter.ErrInvalidInput("unsupported language %q", lang)
	}
	cur, _ := o.reg.Adapter(task)
	if t, ok := cur.(*adapter.Translation); ok && t.Language() == l.Name {
		return cur.DisplayName(), nil
	}
	next, err := adapter.NewTranslation(task, l.Name, o.backend)
	if err != nil {
		return "", err
	}
	prev, err := o.reg.Replace(task, next)
	if err != nil {
		return "", err
	}
	// Queued jobs may still hold prev; it is closed with the registry.
	o.retired = append(o.retired, prev)
	zlog.Info().Str("task", task).Str("language", l.Name).Str("model", next.Model()).Msg("translation adapter replaced")
	o.activity.add(ActivityLanguage, task, l.Name, true)
	return next.DisplayName(), nil
}

func (o *Orchestrator) translationTask() (string, bool) {
	for _, t := range o.order {
		if o.kinds[t] == inference.KindTranslation {
			return t, true
		}
	}
	return "", false
}

// Submit validates req, resolves the adapter on the control loop and queues a
// job. Recoverable problems (unknown task, missing input, unsupported
// language) are returned and nothing is queued. cb, when set, runs on the
// control loop after the job finishes; subscribers are notified as well.
func (o *Orchestrator) Submit(ctx context.Context, req RunRequest, cb func(Completion)) (string, error) {
	var (
		id   string
		serr error
	)
	if err := o.do(ctx, func() { id, serr = o.submit(req, cb) }); err != nil {
		return "", err
	}
	return id, serr
}

// submit runs on the loop.
func (o *Orchestrator) submit(req RunRequest, cb func(Completion)) (string, error) {
	task := req.Task
	if task == "" {
		task = o.active
	}
	if !o.reg.Has(task) {
		return "", registry.ErrUnknownTask(task)
	}
	if o.kinds[task] == inference.KindImageClassification {
		if strings.TrimSpace(req.ImagePath) == "" {
			return "", adapter.ErrInvalidInput("no image selected")
		}
	} else if strings.TrimSpace(req.Text) == "" {
		return "", adapter.ErrInvalidInput("input text is empty")
	}
	if o.runner.Closed() {
		return "", runner.ErrClosed
	}
	if req.Language != "" && o.kinds[task] == inference.KindTranslation {
		if _, err := o.setLanguage(req.Language); err != nil {
			return "", err
		}
	}
	a, err := o.reg.Adapter(task)
	if err != nil {
		return "", err
	}
	meta := Completion{Task: task, Model: a.DisplayName()}
	if t, ok := a.(*adapter.Translation); ok {
		meta.Language = t.Language()
	}
	job := runner.Job{
		Task:    task,
		Adapter: a,
		Request: adapter.Request{Text: req.Text, ImagePath: req.ImagePath, Options: req.Options},
	}
	id, err := o.runner.Submit(job, func(res runner.Result) { o.complete(res, meta, req, cb) })
	if err != nil {
		return "", err
	}
	o.activity.add(ActivitySubmit, task, id, true)
	return id, nil
}

// complete runs on the loop once per job, in submission order.
func (o *Orchestrator) complete(res runner.Result, meta Completion, req RunRequest, cb func(Completion)) {
	c := meta
	c.JobID = res.JobID
	c.Success = res.OK()
	c.Payload = res.Payload()
	c.Elapsed = res.Elapsed()
	c.Finished = res.Finished
	if req.Save && c.Success {
		dest := req.Destination
		switch {
		case dest == "":
			dest = o.DefaultDestination(c.Task, c.Language)
		case !filepath.IsAbs(dest) && o.outputs != "":
			dest = filepath.Join(o.outputs, dest)
		}
		if err := o.SaveOutput(c.Payload, dest); err != nil {
			c.SaveError = err.Error()
			zlog.Warn().Str("job_id", c.JobID).Str("dest", dest).Err(err).Msg("save output failed")
		} else {
			c.SavedTo = dest
		}
	}
	detail := c.JobID
	if !c.Success {
		detail += ": " + c.Payload
	}
	o.activity.add(ActivityComplete, c.Task, detail, c.Success)

	o.lmu.Lock()
	ls := make([]func(Completion), 0, len(o.listeners))
	for _, fn := range o.listeners {
		ls = append(ls, fn)
	}
	o.lmu.Unlock()
	for _, fn := range ls {
		fn(c)
	}
	if cb != nil {
		cb(c)
	}
}

// Subscribe registers fn for every completion. fn runs on the control loop
// and must not block. The returned func removes it.
func (o *Orchestrator) Subscribe(fn func(Completion)) func() {
	o.lmu.Lock()
	id := o.nextL
	o.nextL++
	o.listeners[id] = fn
	o.lmu.Unlock()
	return func() {
		o.lmu.Lock()
		delete(o.listeners, id)
		o.lmu.Unlock()
	}
}

// Job returns the runner's retained record of a job.
func (o *Orchestrator) Job(id string) (runner.Record, bool) { return o.runner.Record(id) }

// Pending is the number of queued jobs not yet started.
func (o *Orchestrator) Pending() int { return o.runner.Pending() }

// Activity returns recent activity, oldest first.
func (o *Orchestrator) Activity() []Activity { return o.activity.list() }

// Ready reports whether the control loop is still running.
func (o *Orchestrator) Ready() bool {
	select {
	case <-o.loop.Done():
		return false
	default:
		return true
	}
}

// Close stops accepting jobs, waits (bounded by ctx) for queued jobs to
// finish and their completions to be delivered, then releases adapters. When
// ctx ends first the worker keeps draining in the background and adapters are
// released only after it exits; completions arriving after that are dropped.
func (o *Orchestrator) Close(ctx context.Context) error {
	var err error
	o.closeOnce.Do(func() {
		o.runner.Shutdown()
		drained := true
		if werr := o.runner.Wait(ctx); werr != nil {
			err = fmt.Errorf("drain: %w", werr)
			drained = false
		}
		o.loop.Stop()
		stopped := true
		select {
		case <-o.loop.Done():
		case <-ctx.Done():
			stopped = false
			if err == nil {
				err = fmt.Errorf("stop loop: %w", ctx.Err())
			}
		}
		o.stop()
		if drained && stopped {
			if rerr := o.release(); rerr != nil && err == nil {
				err = rerr
			}
			return
		}
		zlog.Warn().Int("pending", o.runner.Pending()).Msg("jobs still running; adapters released when the worker exits")
		go func() {
			<-o.runner.Done()
			<-o.loop.Done()
			if rerr := o.release(); rerr != nil {
				zlog.Warn().Err(rerr).Msg("release adapters")
			}
		}()
	})
	return err
}

// release closes the registry and every replaced adapter. Only called once
// the worker and the loop have both exited.
func (o *Orchestrator) release() error {
	defer close(o.released)
	err := o.reg.Close()
	for _, a := range o.retired {
		if c, ok := a.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return err
}
