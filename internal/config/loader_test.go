package config

import (
	"os"
	"path/filepath"
	"testing"

	"taskd/internal/adapter"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: ":9999"
backend: openai
request_timeout_sec: 30
outputs_dir: /tmp/out
default_language: German
provides: [sentencepiece]
tasks:
  - task: Summarization
    model: sshleifer/distilbart-cnn-12-6
    display_name: DistilBART
    defaults:
      max_length: 80
      min_length: 20
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Backend != "openai" || cfg.RequestTimeoutSec != 30 || cfg.OutputsDir != "/tmp/out" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Tasks) != 1 || cfg.Tasks[0].Defaults.MinLength != 20 || len(cfg.Provides) != 1 {
		t.Fatalf("unexpected tasks: %+v", cfg.Tasks)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","history_size":42,"default_model":"m2","cors_enabled":true}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.HistorySize != 42 || cfg.DefaultModel != "m2" || !cfg.CORSEnabled {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nbackend=\"llama\"\nllama_threads=4\ndefault_task=\"Translation\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.Backend != "llama" || cfg.LlamaThreads != 4 || cfg.DefaultTask != adapter.TaskTranslation {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Addr != ":8080" || cfg.Backend != "hf" || cfg.DefaultLanguage != adapter.DefaultLanguage || cfg.RequestTimeoutSec != 120 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
	cfg.Backend = "torch"
	cfg.DefaultLanguage = "Klingon"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation errors")
	}
}

func TestSpecs(t *testing.T) {
	cfg := Config{DefaultLanguage: "Italian"}
	specs := cfg.Specs()
	if len(specs) != 4 || specs[2].Language != "Italian" {
		t.Fatalf("default catalog: %+v", specs)
	}
	cfg.Tasks = []TaskSpec{{Task: adapter.TaskTranslation}, {Task: "Poems", Kind: "text-generation", Model: "gpt2"}}
	specs = cfg.Specs()
	if len(specs) != 2 || specs[0].Language != "Italian" || specs[1].Kind != "text-generation" {
		t.Fatalf("custom catalog: %+v", specs)
	}
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "taskd.example.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Backend != "openai" || cfg.BackendModel != "gpt-4o-mini" {
		t.Fatalf("unexpected backend: %+v", cfg)
	}
	specs := cfg.Specs()
	if len(specs) != 3 {
		t.Fatalf("want 3 tasks, got %d", len(specs))
	}
	for _, s := range specs {
		if s.Kind == "image-classification" {
			t.Fatalf("openai example must not list image classification")
		}
	}
	if specs[2].Language != "French" || specs[1].Defaults.MinLength != 30 {
		t.Fatalf("unexpected specs: %+v", specs)
	}
}
