// Package adapter normalizes heterogeneous backing models behind one
// contract: Run takes a Request and returns display-ready text.
//
// Adapters are not safe for concurrent use. Callers serialize Run (the
// runner package does this with a single worker).
package adapter

import (
	"context"
	"fmt"
	"strings"

	"taskd/internal/inference"
)

// Task identifiers exposed to users.
const (
	TaskTextGeneration      = "Text Generation"
	TaskSummarization       = "Summarization"
	TaskTranslation         = "Translation"
	TaskImageClassification = "Image Classification"
)

// DefaultTask is preferred when a display name maps to several tasks.
const DefaultTask = TaskTextGeneration

// Adapter is the uniform capability every task variant implements.
type Adapter interface {
	// Task is the task identifier this adapter serves.
	Task() string
	// DisplayName is a cheap, pure, human-friendly model name.
	DisplayName() string
	// Run performs one synchronous, potentially slow, inference call.
	Run(ctx context.Context, req Request) (string, error)
}

// Configurer is implemented by adapters that accept one-time default options.
type Configurer interface {
	Configure(opts Options) error
}

// Options tunes a call. Zero values mean "adapter default".
type Options struct {
	MaxLength   int     `json:"max_length,omitempty" yaml:"max_length" toml:"max_length"`
	MinLength   int     `json:"min_length,omitempty" yaml:"min_length" toml:"min_length"`
	Temperature float32 `json:"temperature,omitempty" yaml:"temperature" toml:"temperature"`
	TopP        float32 `json:"top_p,omitempty" yaml:"top_p" toml:"top_p"`
}

// Request is one adapter input. Text adapters read Text; the classification
// adapter reads ImagePath.
type Request struct {
	Text      string
	ImagePath string
	Options   Options
}

// Spec describes how to construct an adapter.
type Spec struct {
	Task        string
	Kind        inference.Kind
	Model       string
	DisplayName string
	// Language selects the translation target.
	Language string
	// Defaults are applied through Configure when the adapter supports it.
	Defaults Options
}

// KindForTask maps a well-known task to its inference kind.
func KindForTask(task string) (inference.Kind, bool) {
	switch task {
	case TaskTextGeneration:
		return inference.KindTextGeneration, true
	case TaskSummarization:
		return inference.KindSummarization, true
	case TaskTranslation:
		return inference.KindTranslation, true
	case TaskImageClassification:
		return inference.KindImageClassification, true
	}
	return "", false
}

// DefaultSpecs returns the built-in catalog in construction order.
func DefaultSpecs() []Spec {
	return []Spec{
		{Task: TaskTextGeneration, Kind: inference.KindTextGeneration, Model: DefaultGenerativeModel, DisplayName: "GPT-2 Text Generator"},
		{Task: TaskSummarization, Kind: inference.KindSummarization, Model: DefaultCondensationModel, DisplayName: "BART Summarizer"},
		{Task: TaskTranslation, Kind: inference.KindTranslation, Language: DefaultLanguage},
		{Task: TaskImageClassification, Kind: inference.KindImageClassification, Model: DefaultClassificationModel, DisplayName: "ViT Image Classifier"},
	}
}

// SupportedSpecs keeps the specs whose kind backend can serve, in order, and
// names the tasks it left out.
func SupportedSpecs(backend inference.Backend, specs []Spec) (kept []Spec, dropped []string) {
	for _, s := range specs {
		k := s.Kind
		if k == "" {
			k, _ = KindForTask(s.Task)
		}
		if k != "" && !inference.Supports(backend, k) {
			dropped = append(dropped, s.Task)
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}

// New constructs the adapter described by spec on top of backend. Any error
// is a ConstructionError.
func New(spec Spec, backend inference.Backend) (Adapter, error) {
	if backend == nil {
		return nil, constructionError{task: spec.Task, err: fmt.Errorf("no inference backend")}
	}
	kind := spec.Kind
	if kind == "" {
		k, ok := KindForTask(spec.Task)
		if !ok {
			return nil, constructionError{task: spec.Task, err: fmt.Errorf("no kind for task %q", spec.Task)}
		}
		kind = k
	}
	if strings.TrimSpace(spec.Task) == "" {
		return nil, constructionError{task: spec.Task, err: fmt.Errorf("empty task identifier")}
	}
	var (
		a   Adapter
		err error
	)
	switch kind {
	case inference.KindTextGeneration:
		a, err = NewGenerative(spec.Task, spec.Model, spec.DisplayName, backend)
	case inference.KindSummarization:
		a, err = NewCondensation(spec.Task, spec.Model, spec.DisplayName, backend)
	case inference.KindTranslation:
		a, err = NewTranslation(spec.Task, spec.Language, backend)
	case inference.KindImageClassification:
		a, err = NewClassification(spec.Task, spec.Model, spec.DisplayName, backend)
	default:
		err = constructionError{task: spec.Task, err: fmt.Errorf("unknown kind %q", kind)}
	}
	if err != nil {
		return nil, err
	}
	if c, ok := a.(Configurer); ok && spec.Defaults != (Options{}) {
		if err := c.Configure(spec.Defaults); err != nil {
			return nil, constructionError{task: spec.Task, err: err}
		}
	}
	return a, nil
}

// validate checks ref against backend and wraps the failure for task.
func validate(task string, backend inference.Backend, ref inference.ModelRef) error {
	if err := backend.Validate(ref); err != nil {
		return constructionError{task: task, err: err}
	}
	return nil
}

func pick(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func pickf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}
