package inference

import (
	"strings"
	"testing"
)

func TestResolveLocal(t *testing.T) {
	models := []LocalModel{{ID: "gpt2", Path: "/m/gpt2.gguf"}, {ID: "tinyllama-q4", Path: "/m/tinyllama-q4.gguf"}}
	if m, ok := resolveLocal(models, "", ModelRef{ID: "openai-community/gpt2"}); !ok || m.Path != "/m/gpt2.gguf" {
		t.Fatalf("expected last-segment match, got %+v ok=%v", m, ok)
	}
	if _, ok := resolveLocal(models, "", ModelRef{ID: "facebook/bart-large-cnn"}); ok {
		t.Fatalf("expected no match without fallback")
	}
	if m, ok := resolveLocal(models, "tinyllama-q4", ModelRef{ID: "facebook/bart-large-cnn"}); !ok || m.ID != "tinyllama-q4" {
		t.Fatalf("expected fallback by id, got %+v", m)
	}
	if m, ok := resolveLocal(nil, "/x/other.gguf", ModelRef{ID: "a/b"}); !ok || m.ID != "other" {
		t.Fatalf("expected fallback by path, got %+v", m)
	}
}

func TestFramePrompt(t *testing.T) {
	sys, user := framePrompt(ModelRef{Kind: KindTranslation, Language: "German"}, Input{Text: "  hi  "})
	if !strings.Contains(sys, "German") || user != "hi" {
		t.Fatalf("unexpected framing %q / %q", sys, user)
	}
	sys, _ = framePrompt(ModelRef{Kind: KindSummarization}, Input{Params: Params{MinLength: 10, MaxLength: 20}})
	if !strings.Contains(sys, "between 10 and 20") {
		t.Fatalf("expected length hint, got %q", sys)
	}
}

func TestNewBackendByName(t *testing.T) {
	for _, name := range []string{"", "hf", "openai", "llama"} {
		b, err := New(testCtx(t), Config{Name: name})
		if err != nil || b == nil {
			t.Fatalf("%q: %v", name, err)
		}
	}
	if _, err := New(testCtx(t), Config{Name: "nope"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
