package inference

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config selects and parameterizes a backend.
type Config struct {
	// Name is one of "hf", "openai", "gemini", "llama".
	Name           string
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// Provides overrides the optional dependencies assumed present on an hf server.
	Provides []string
	// Llama options.
	LocalModels  []LocalModel
	LlamaCtx     int
	LlamaThreads int
}

// Names lists the supported backend names.
func Names() []string { return []string{"hf", "openai", "gemini", "llama"} }

// New constructs the backend named by cfg.Name.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "hf":
		return NewHFBackend(cfg.BaseURL, cfg.APIKey, cfg.RequestTimeout, cfg.ConnectTimeout, cfg.Provides), nil
	case "openai":
		return NewOpenAIBackend(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.RequestTimeout), nil
	case "gemini":
		return NewGeminiBackend(ctx, cfg.APIKey, cfg.Model, cfg.RequestTimeout)
	case "llama":
		return NewLlamaBackend(cfg.LocalModels, cfg.Model, cfg.LlamaCtx, cfg.LlamaThreads), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want one of %s)", cfg.Name, strings.Join(Names(), ", "))
	}
}
