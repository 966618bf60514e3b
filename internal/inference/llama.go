//go:build llama

package inference

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaBackend loads local gguf files with go-llama.cpp.
type llamaBackend struct {
	models   []LocalModel
	fallback string
	ctxSize  int
	threads  int
}

// NewLlamaBackend constructs an in-process backend over discovered models.
func NewLlamaBackend(models []LocalModel, fallback string, ctxSize, threads int) Backend {
	return &llamaBackend{models: models, fallback: fallback, ctxSize: ctxSize, threads: threads}
}

func (b *llamaBackend) Name() string { return "llama" }

func (b *llamaBackend) SupportsKind(k Kind) bool { return k.IsText() }

func (b *llamaBackend) Validate(ref ModelRef) error {
	return validateLocal(b.Name(), b.models, b.fallback, ref)
}

func (b *llamaBackend) Open(ref ModelRef) (Pipeline, error) {
	if err := b.Validate(ref); err != nil {
		return nil, err
	}
	lm, _ := resolveLocal(b.models, b.fallback, ref)
	if strings.TrimSpace(lm.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	m, err := llama.New(lm.Path, llama.SetContext(b.ctxSize))
	if err != nil {
		return nil, err
	}
	return &llamaPipeline{model: m, ref: ref, threads: b.threads}, nil
}

// llamaPipeline owns the loaded model.
type llamaPipeline struct {
	model   *llama.LLama
	ref     ModelRef
	threads int
}

func (p *llamaPipeline) Call(ctx context.Context, in Input) (Output, error) {
	if p.model == nil {
		return Output{}, errors.New("llama model not initialized")
	}
	p.model.SetTokenCallback(func(string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	prompt := in.Text
	if p.ref.Kind != KindTextGeneration {
		system, user := framePrompt(p.ref, in)
		prompt = system + "\n\n" + user + "\n\n"
	}
	text, err := p.model.Predict(prompt, predictOptions(in.Params, p.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		return Output{}, err
	}
	if p.ref.Kind == KindTextGeneration {
		text = prompt + text
	}
	return Output{Text: strings.TrimSpace(text)}, nil
}

func (p *llamaPipeline) Close() error {
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts Params into go-llama.cpp options.
func predictOptions(prm Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(zn(prm.MaxLength, 128)),
		llama.SetThreads(zn(threads, 1)),
		llama.SetTopP(zf(prm.TopP, llama.DefaultOptions.TopP)),
		llama.SetTemperature(zf(prm.Temperature, llama.DefaultOptions.Temperature)),
	}
	if !prm.Sample {
		po = append(po, llama.SetTemperature(0))
	}
	return po
}
