package inference

import (
	"path/filepath"
	"strings"
)

// LocalModel is a model file discovered on disk.
type LocalModel struct {
	ID   string
	Path string
}

// resolveLocal finds the local file serving ref. Catalog identifiers like
// "openai-community/gpt2" match on their last path segment; fallback, when
// set, serves anything else.
func resolveLocal(models []LocalModel, fallback string, ref ModelRef) (LocalModel, bool) {
	want := strings.ToLower(ref.ID)
	short := want
	if i := strings.LastIndex(short, "/"); i >= 0 {
		short = short[i+1:]
	}
	for _, m := range models {
		id := strings.ToLower(m.ID)
		if id == want || id == short {
			return m, true
		}
	}
	if fallback != "" {
		for _, m := range models {
			if m.ID == fallback {
				return m, true
			}
		}
		return LocalModel{ID: strings.TrimSuffix(filepath.Base(fallback), filepath.Ext(fallback)), Path: fallback}, true
	}
	return LocalModel{}, false
}

// localProvides lists what a local gguf file covers: it embeds its tokenizer.
var localProvides = []string{"sentencepiece", "tokenizers"}

// validateLocal checks that ref is a text kind that some local file serves.
// Non-generation kinds are prompted, so a single fallback model serves the
// whole text catalog.
func validateLocal(backend string, models []LocalModel, fallback string, ref ModelRef) error {
	if !ref.Kind.IsText() {
		return ErrUnsupportedKind(backend, ref.Kind)
	}
	if _, ok := resolveLocal(models, fallback, ref); !ok {
		return ErrUnknownModel(backend, ref.ID)
	}
	return checkRequires(ref, localProvides...)
}

// LlamaBuilt reports whether the in-process llama backend was compiled in.
func LlamaBuilt() bool { return llamaBuilt }
