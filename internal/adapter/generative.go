package adapter

import (
	"context"
	"strings"

	"taskd/internal/inference"
)

// DefaultGenerativeModel backs the text generation task.
const DefaultGenerativeModel = "openai-community/gpt2"

// Generative continues free text. Sampling is on, so output differs across
// calls with identical input.
type Generative struct {
	task     string
	name     string
	pipe     lazyPipeline
	defaults Options
}

// NewGenerative validates model against backend and returns an adapter whose
// pipeline opens on first Run.
func NewGenerative(task, model, displayName string, backend inference.Backend) (*Generative, error) {
	if model == "" {
		model = DefaultGenerativeModel
	}
	ref := inference.ModelRef{ID: model, Kind: inference.KindTextGeneration}
	if err := validate(task, backend, ref); err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = model
	}
	return &Generative{
		task:     task,
		name:     displayName,
		pipe:     lazyPipeline{backend: backend, ref: ref},
		defaults: Options{MaxLength: 150, Temperature: 0.7, TopP: 0.9},
	}, nil
}

func (g *Generative) Task() string        { return g.task }
func (g *Generative) DisplayName() string { return g.name }
func (g *Generative) Model() string       { return g.pipe.ref.ID }

// Configure overrides the default options for later calls.
func (g *Generative) Configure(opts Options) error {
	g.defaults = Options{
		MaxLength:   pick(opts.MaxLength, g.defaults.MaxLength),
		Temperature: pickf(opts.Temperature, g.defaults.Temperature),
		TopP:        pickf(opts.TopP, g.defaults.TopP),
	}
	return nil
}

func (g *Generative) Run(ctx context.Context, req Request) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", ErrInvalidInput("%s: input text is required", g.task)
	}
	out, err := g.pipe.call(ctx, inference.Input{
		Text: text,
		Params: inference.Params{
			MaxLength:   pick(req.Options.MaxLength, g.defaults.MaxLength),
			Temperature: pickf(req.Options.Temperature, g.defaults.Temperature),
			TopP:        pickf(req.Options.TopP, g.defaults.TopP),
			Sample:      true,
		},
	})
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

func (g *Generative) Close() error { return g.pipe.close() }
