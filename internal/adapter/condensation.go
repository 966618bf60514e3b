package adapter

import (
	"context"
	"strings"

	"taskd/internal/inference"
)

// DefaultCondensationModel backs the summarization task.
const DefaultCondensationModel = "facebook/bart-large-cnn"

// Condensation shortens text while keeping its salient content.
type Condensation struct {
	task     string
	name     string
	pipe     lazyPipeline
	defaults Options
}

// NewCondensation validates model against backend and returns an adapter
// whose pipeline opens on first Run.
func NewCondensation(task, model, displayName string, backend inference.Backend) (*Condensation, error) {
	if model == "" {
		model = DefaultCondensationModel
	}
	ref := inference.ModelRef{ID: model, Kind: inference.KindSummarization}
	if err := validate(task, backend, ref); err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = model
	}
	return &Condensation{
		task:     task,
		name:     displayName,
		pipe:     lazyPipeline{backend: backend, ref: ref},
		defaults: Options{MaxLength: 150, MinLength: 40},
	}, nil
}

func (c *Condensation) Task() string        { return c.task }
func (c *Condensation) DisplayName() string { return c.name }
func (c *Condensation) Model() string       { return c.pipe.ref.ID }

// Configure overrides the default lengths. min_length must not exceed max_length.
func (c *Condensation) Configure(opts Options) error {
	next := Options{
		MaxLength: pick(opts.MaxLength, c.defaults.MaxLength),
		MinLength: pick(opts.MinLength, c.defaults.MinLength),
	}
	if next.MinLength > next.MaxLength {
		return ErrInvalidInput("%s: min_length %d exceeds max_length %d", c.task, next.MinLength, next.MaxLength)
	}
	c.defaults = next
	return nil
}

// lengths resolves effective bounds. An explicit min_length above max_length
// is rejected; an unset min_length is clamped to the requested max_length.
func (c *Condensation) lengths(opts Options) (maxLen, minLen int, err error) {
	maxLen = pick(opts.MaxLength, c.defaults.MaxLength)
	if opts.MinLength > 0 {
		minLen = opts.MinLength
		if minLen > maxLen {
			return 0, 0, ErrInvalidInput("%s: min_length %d exceeds max_length %d", c.task, minLen, maxLen)
		}
		return maxLen, minLen, nil
	}
	minLen = c.defaults.MinLength
	if minLen > maxLen {
		minLen = maxLen
	}
	return maxLen, minLen, nil
}

func (c *Condensation) Run(ctx context.Context, req Request) (string, error) {
	maxLen, minLen, err := c.lengths(req.Options)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", ErrInvalidInput("%s: input text is required", c.task)
	}
	out, err := c.pipe.call(ctx, inference.Input{
		Text:   text,
		Params: inference.Params{MaxLength: maxLen, MinLength: minLen},
	})
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Condensation) Close() error { return c.pipe.close() }
