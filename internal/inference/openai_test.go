package inference

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeChat answers chat completions and keeps the last request body.
type fakeChat struct {
	*httptest.Server
	mu   sync.Mutex
	last map[string]any
	raw  string
}

func newFakeChat(t *testing.T, reply string) *fakeChat {
	t.Helper()
	f := &fakeChat{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(b, &body)
		f.mu.Lock()
		f.last, f.raw = body, string(b)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if reply == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
			return
		}
		out, _ := json.Marshal(map[string]any{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
			"choices": []map[string]any{{
				"index": 0, "finish_reason": "stop",
				"message": map[string]any{"role": "assistant", "content": reply},
			}},
		})
		_, _ = w.Write(out)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeChat) request() (map[string]any, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.raw
}

func TestOpenAI_TranslationPromptAndGreedyDecoding(t *testing.T) {
	srv := newFakeChat(t, "  Guten Morgen  ")
	b := NewOpenAIBackend(srv.URL+"/v1/", "test-key", "gpt-test", 2*time.Second)
	ref := ModelRef{ID: "Helsinki-NLP/opus-mt-en-de", Kind: KindTranslation, Language: "German", Requires: []string{"sentencepiece"}}
	if err := b.Validate(ref); err != nil {
		t.Fatalf("validate: %v", err)
	}
	p, err := b.Open(ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	out, err := p.Call(testCtx(t), Input{Text: " Good morning ", Params: Params{MaxLength: 40}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out.Text != "Guten Morgen" {
		t.Fatalf("text=%q", out.Text)
	}
	body, raw := srv.request()
	if body["model"] != "gpt-test" {
		t.Fatalf("model=%v", body["model"])
	}
	if !strings.Contains(raw, "You translate English text into German") || !strings.Contains(raw, "Good morning") {
		t.Fatalf("prompt not framed: %s", raw)
	}
	if temp, ok := body["temperature"]; !ok || temp != float64(0) {
		t.Fatalf("greedy decoding must send temperature 0, got %v (present=%v)", temp, ok)
	}
	if body["max_tokens"] != float64(40) {
		t.Fatalf("max_tokens=%v", body["max_tokens"])
	}
}

func TestOpenAI_SamplingForwardsTemperature(t *testing.T) {
	srv := newFakeChat(t, "and then")
	b := NewOpenAIBackend(srv.URL+"/v1/", "test-key", "gpt-test", 2*time.Second)
	p, err := b.Open(ModelRef{ID: "openai-community/gpt2", Kind: KindTextGeneration})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := p.Call(testCtx(t), Input{Text: "once", Params: Params{Sample: true, Temperature: 0.7, TopP: 0.9}}); err != nil {
		t.Fatalf("call: %v", err)
	}
	body, raw := srv.request()
	if temp, _ := body["temperature"].(float64); temp < 0.69 || temp > 0.71 {
		t.Fatalf("temperature=%v", body["temperature"])
	}
	if !strings.Contains(raw, "Continue the user's text") {
		t.Fatalf("generation prompt missing: %s", raw)
	}
}

func TestOpenAI_HTTPErrorIsReturned(t *testing.T) {
	srv := newFakeChat(t, "")
	b := NewOpenAIBackend(srv.URL+"/v1/", "test-key", "gpt-test", 2*time.Second)
	p, _ := b.Open(ModelRef{ID: "openai-community/gpt2", Kind: KindTextGeneration})
	if _, err := p.Call(testCtx(t), Input{Text: "x"}); err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected 400 error, got %v", err)
	}
}

func TestOpenAI_ValidateKindsAndRequires(t *testing.T) {
	b := NewOpenAIBackend("http://127.0.0.1:1/v1/", "k", "", time.Second)
	if Supports(b, KindImageClassification) || !Supports(b, KindSummarization) {
		t.Fatalf("openai must serve text kinds only")
	}
	if err := b.Validate(ModelRef{ID: "google/vit", Kind: KindImageClassification}); !IsUnsupportedKind(err) {
		t.Fatalf("expected unsupported kind, got %v", err)
	}
	if err := b.Validate(ModelRef{ID: "x/y", Kind: KindTranslation, Requires: []string{"pillow"}}); !IsMissingDependency(err) {
		t.Fatalf("expected missing dependency, got %v", err)
	}
	if err := b.Validate(ModelRef{ID: "x/y", Kind: KindTranslation, Requires: []string{"sentencepiece"}}); err != nil {
		t.Fatalf("sentencepiece is covered by the chat model: %v", err)
	}
}

func TestGemini_ValidateRequires(t *testing.T) {
	b, err := NewGeminiBackend(testCtx(t), "test-key", "", time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := b.Validate(ModelRef{ID: "google/vit", Kind: KindImageClassification, Requires: []string{"pillow"}}); err != nil {
		t.Fatalf("validate image: %v", err)
	}
	if err := b.Validate(ModelRef{ID: "x/y", Kind: KindTranslation, Requires: []string{"espeak"}}); !IsMissingDependency(err) {
		t.Fatalf("expected missing dependency, got %v", err)
	}
}

func TestValidateLocal_ServesTextCatalog(t *testing.T) {
	models := []LocalModel{{ID: "tinyllama", Path: "/m/tinyllama.gguf"}}
	refs := []ModelRef{
		{ID: "openai-community/gpt2", Kind: KindTextGeneration},
		{ID: "facebook/bart-large-cnn", Kind: KindSummarization},
		{ID: "Helsinki-NLP/opus-mt-en-fr", Kind: KindTranslation, Requires: []string{"sentencepiece"}},
	}
	for _, ref := range refs {
		if err := validateLocal("llama", models, "tinyllama", ref); err != nil {
			t.Fatalf("%s: %v", ref.ID, err)
		}
	}
	if err := validateLocal("llama", models, "tinyllama", ModelRef{ID: "google/vit", Kind: KindImageClassification}); !IsUnsupportedKind(err) {
		t.Fatalf("expected unsupported kind, got %v", err)
	}
	if err := validateLocal("llama", models, "", ModelRef{ID: "facebook/bart-large-cnn", Kind: KindSummarization}); !IsUnknownModel(err) {
		t.Fatalf("expected unknown model without fallback, got %v", err)
	}
	if Supports(NewLlamaBackend(models, "tinyllama", 512, 1), KindImageClassification) {
		t.Fatalf("llama must not claim image classification")
	}
}
