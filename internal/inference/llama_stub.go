//go:build !llama

package inference

// This file provides a no-CGO stub for the llama backend. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds CGO-free.

// llamaBuilt indicates whether this binary was compiled with llama support.
var llamaBuilt = false

type llamaBackend struct {
	models   []LocalModel
	fallback string
}

// NewLlamaBackend returns a backend that refuses every model in this build.
func NewLlamaBackend(models []LocalModel, fallback string, ctxSize, threads int) Backend {
	return &llamaBackend{models: models, fallback: fallback}
}

func (b *llamaBackend) Name() string { return "llama" }

func (b *llamaBackend) SupportsKind(k Kind) bool { return k.IsText() }

func (b *llamaBackend) Validate(ref ModelRef) error {
	return ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (b *llamaBackend) Open(ref ModelRef) (Pipeline, error) {
	return nil, b.Validate(ref)
}
