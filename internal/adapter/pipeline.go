package adapter

import (
	"context"

	"taskd/internal/inference"
)

// lazyPipeline holds a backing pipeline that is opened on first use and then
// reused for the adapter's lifetime. A failed open is not cached, so the next
// call retries. It has no lock: Run calls are serialized by the caller.
type lazyPipeline struct {
	backend inference.Backend
	ref     inference.ModelRef
	pipe    inference.Pipeline
}

func (l *lazyPipeline) initialized() bool { return l.pipe != nil }

func (l *lazyPipeline) call(ctx context.Context, in inference.Input) (inference.Output, error) {
	if l.pipe == nil {
		p, err := l.backend.Open(l.ref)
		if err != nil {
			return inference.Output{}, err
		}
		l.pipe = p
	}
	return l.pipe.Call(ctx, in)
}

func (l *lazyPipeline) close() error {
	if l.pipe == nil {
		return nil
	}
	err := l.pipe.Close()
	l.pipe = nil
	return err
}
