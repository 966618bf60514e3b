package registry

import (
	"context"
	"testing"

	"taskd/internal/adapter"
	"taskd/internal/inference"
)

// namedAdapter is a minimal adapter with a fixed display name.
type namedAdapter struct{ task, name string }

func (a namedAdapter) Task() string        { return a.task }
func (a namedAdapter) DisplayName() string { return a.name }
func (a namedAdapter) Run(ctx context.Context, req adapter.Request) (string, error) {
	return req.Text, nil
}

// failingBackend rejects one model id and accepts everything else.
type failingBackend struct{ reject string }

func (b failingBackend) Name() string { return "failing" }
func (b failingBackend) Validate(ref inference.ModelRef) error {
	if ref.ID == b.reject {
		return inference.ErrUnknownModel("failing", ref.ID)
	}
	return nil
}
func (b failingBackend) Open(ref inference.ModelRef) (inference.Pipeline, error) {
	return nil, inference.ErrDependencyUnavailable("not used")
}

func TestBuild_DefaultCatalog(t *testing.T) {
	r, err := Build(failingBackend{}, adapter.DefaultSpecs())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tasks := r.Tasks()
	want := []string{adapter.TaskTextGeneration, adapter.TaskSummarization, adapter.TaskTranslation, adapter.TaskImageClassification}
	if len(tasks) != len(want) {
		t.Fatalf("tasks=%v", tasks)
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Fatalf("order mismatch: %v", tasks)
		}
	}
	if name, _ := r.DisplayName(adapter.TaskTranslation); name != "EN→French Translator" {
		t.Fatalf("translation display=%q", name)
	}
}

func TestBuild_FailFast(t *testing.T) {
	r, err := Build(failingBackend{reject: adapter.DefaultCondensationModel}, adapter.DefaultSpecs())
	if err == nil || r != nil {
		t.Fatalf("expected failure and nil registry, got r=%v err=%v", r, err)
	}
	if !adapter.IsConstruction(err) {
		t.Fatalf("expected construction error, got %v", err)
	}
	if _, err := Build(failingBackend{}, nil); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
}

func TestResolveModel_PrefersDefaultTask(t *testing.T) {
	r, err := New(
		namedAdapter{adapter.TaskSummarization, "Shared"},
		namedAdapter{adapter.TaskTextGeneration, "Shared"},
		namedAdapter{adapter.TaskTranslation, "Other"},
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := r.TasksFor("Shared"); len(got) != 2 || got[0] != adapter.TaskSummarization {
		t.Fatalf("tasks for Shared=%v", got)
	}
	if task, ok := r.ResolveModel("Shared"); !ok || task != adapter.TaskTextGeneration {
		t.Fatalf("resolved %q ok=%v, want default task", task, ok)
	}
	if _, ok := r.ResolveModel("Missing"); ok {
		t.Fatalf("expected no mapping")
	}
	if models := r.Models(); len(models) != 2 || models[0] != "Shared" {
		t.Fatalf("models=%v", models)
	}
}

func TestResolveModel_FirstConstructedWithoutDefault(t *testing.T) {
	r, _ := New(
		namedAdapter{adapter.TaskTranslation, "Shared"},
		namedAdapter{adapter.TaskSummarization, "Shared"},
	)
	if task, _ := r.ResolveModel("Shared"); task != adapter.TaskTranslation {
		t.Fatalf("resolved %q, want first constructed", task)
	}
}

func TestReplace_KeepsMappingTotal(t *testing.T) {
	r, _ := New(namedAdapter{adapter.TaskTranslation, "EN→French Translator"})
	prev, err := r.Replace(adapter.TaskTranslation, namedAdapter{adapter.TaskTranslation, "EN→German Translator"})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if prev.DisplayName() != "EN→French Translator" {
		t.Fatalf("unexpected previous adapter %q", prev.DisplayName())
	}
	if task, ok := r.ResolveModel("EN→German Translator"); !ok || task != adapter.TaskTranslation {
		t.Fatalf("index not rebuilt")
	}
	if _, ok := r.ResolveModel("EN→French Translator"); ok {
		t.Fatalf("stale name still indexed")
	}
	if _, err := r.Replace("Poetry", namedAdapter{"Poetry", "x"}); !IsUnknownTask(err) {
		t.Fatalf("expected unknown task, got %v", err)
	}
	if _, err := r.Replace(adapter.TaskTranslation, namedAdapter{adapter.TaskSummarization, "x"}); err == nil {
		t.Fatalf("expected mismatched task error")
	}
	if _, err := New(namedAdapter{"a", "x"}, namedAdapter{"a", "y"}); err == nil {
		t.Fatalf("expected duplicate task error")
	}
}
