package adapter

import (
	"context"
	"errors"

	"taskd/internal/inference"
)

// fakeBackend is a lightweight in-memory backend used for tests.
type fakeBackend struct {
	validateErr error
	opens       int
	calls       []inference.Input
	out         inference.Output
	callErr     error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Validate(ref inference.ModelRef) error { return f.validateErr }

func (f *fakeBackend) Open(ref inference.ModelRef) (inference.Pipeline, error) {
	f.opens++
	return fakePipeline{f: f}, nil
}

type fakePipeline struct{ f *fakeBackend }

func (p fakePipeline) Call(ctx context.Context, in inference.Input) (inference.Output, error) {
	p.f.calls = append(p.f.calls, in)
	if p.f.callErr != nil {
		return inference.Output{}, p.f.callErr
	}
	if p.f.out.Text == "" && p.f.out.Labels == nil {
		return inference.Output{Text: in.Text + " ..."}, nil
	}
	return p.f.out, nil
}

func (p fakePipeline) Close() error { return nil }

var errBoom = errors.New("boom")
