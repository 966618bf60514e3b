// Package registry maps task identifiers to their single adapter and
// friendly model names back to tasks.
//
// A Registry is not safe for concurrent use; it is owned by the control
// goroutine (see the orchestrator package).
package registry

import (
	"errors"
	"fmt"
	"io"

	"taskd/internal/adapter"
	"taskd/internal/inference"
)

// unknownTaskError signals a task identifier with no adapter.
type unknownTaskError struct{ task string }

func (e unknownTaskError) Error() string { return "unknown task: " + e.task }

// ErrUnknownTask constructs an unknownTaskError.
func ErrUnknownTask(task string) error { return unknownTaskError{task: task} }

// IsUnknownTask reports whether err indicates an unknown task identifier.
func IsUnknownTask(err error) bool {
	var e unknownTaskError
	return errors.As(err, &e)
}

type Registry struct {
	order    []string
	adapters map[string]adapter.Adapter
	byName   map[string][]string
}

// Build constructs one adapter per spec, in order. The first failure aborts
// the build and no registry is returned.
func Build(backend inference.Backend, specs []adapter.Spec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, errors.New("registry: no tasks configured")
	}
	built := make([]adapter.Adapter, 0, len(specs))
	for _, spec := range specs {
		a, err := adapter.New(spec, backend)
		if err != nil {
			return nil, err
		}
		built = append(built, a)
	}
	return New(built...)
}

// New assembles a registry from constructed adapters. Task identifiers must
// be unique.
func New(adapters ...adapter.Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]adapter.Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, errors.New("registry: nil adapter")
		}
		if _, dup := r.adapters[a.Task()]; dup {
			return nil, fmt.Errorf("registry: duplicate task %q", a.Task())
		}
		r.order = append(r.order, a.Task())
		r.adapters[a.Task()] = a
	}
	r.index()
	return r, nil
}

// index rebuilds the display name -> tasks mapping in construction order.
func (r *Registry) index() {
	r.byName = make(map[string][]string, len(r.order))
	for _, task := range r.order {
		name := r.adapters[task].DisplayName()
		r.byName[name] = append(r.byName[name], task)
	}
}

// Tasks returns task identifiers in construction order.
func (r *Registry) Tasks() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Has(task string) bool {
	_, ok := r.adapters[task]
	return ok
}

// Adapter returns the current adapter for task.
func (r *Registry) Adapter(task string) (adapter.Adapter, error) {
	a, ok := r.adapters[task]
	if !ok {
		return nil, ErrUnknownTask(task)
	}
	return a, nil
}

// DisplayName returns the current adapter's display name for task.
func (r *Registry) DisplayName(task string) (string, error) {
	a, err := r.Adapter(task)
	if err != nil {
		return "", err
	}
	return a.DisplayName(), nil
}

// Replace installs a in place of the adapter for an existing task slot. The
// previous adapter is returned so the caller can close it once no queued job
// still references it.
func (r *Registry) Replace(task string, a adapter.Adapter) (adapter.Adapter, error) {
	prev, ok := r.adapters[task]
	if !ok {
		return nil, ErrUnknownTask(task)
	}
	if a == nil || a.Task() != task {
		return nil, fmt.Errorf("registry: adapter does not serve task %q", task)
	}
	r.adapters[task] = a
	r.index()
	return prev, nil
}

// Models lists distinct display names in construction order.
func (r *Registry) Models() []string {
	seen := make(map[string]bool, len(r.order))
	var out []string
	for _, task := range r.order {
		name := r.adapters[task].DisplayName()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// TasksFor returns every task whose adapter has the display name.
func (r *Registry) TasksFor(name string) []string {
	return append([]string(nil), r.byName[name]...)
}

// ResolveModel picks the task to switch to when a model name is selected:
// the default task when it matches, else the first match in construction
// order.
func (r *Registry) ResolveModel(name string) (string, bool) {
	tasks := r.byName[name]
	if len(tasks) == 0 {
		return "", false
	}
	for _, t := range tasks {
		if t == adapter.DefaultTask {
			return t, true
		}
	}
	return tasks[0], true
}

// Close releases every current adapter that holds resources.
func (r *Registry) Close() error {
	var errs []error
	for _, task := range r.order {
		if c, ok := r.adapters[task].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", task, err))
			}
		}
	}
	return errors.Join(errs...)
}
