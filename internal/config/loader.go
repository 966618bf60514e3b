package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"taskd/internal/adapter"
	"taskd/internal/inference"
)

// TaskSpec overrides one catalog entry.
type TaskSpec struct {
	Task        string          `json:"task" yaml:"task" toml:"task"`
	Kind        string          `json:"kind" yaml:"kind" toml:"kind"`
	Model       string          `json:"model" yaml:"model" toml:"model"`
	DisplayName string          `json:"display_name" yaml:"display_name" toml:"display_name"`
	Language    string          `json:"language" yaml:"language" toml:"language"`
	Defaults    adapter.Options `json:"defaults" yaml:"defaults" toml:"defaults"`
}

// Config holds runtime parameters for the daemon and the one-shot CLI.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	Backend           string   `json:"backend" yaml:"backend" toml:"backend"`
	BackendURL        string   `json:"backend_url" yaml:"backend_url" toml:"backend_url"`
	APIKey            string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	BackendModel      string   `json:"backend_model" yaml:"backend_model" toml:"backend_model"`
	RequestTimeoutSec int      `json:"request_timeout_sec" yaml:"request_timeout_sec" toml:"request_timeout_sec"`
	ConnectTimeoutSec int      `json:"connect_timeout_sec" yaml:"connect_timeout_sec" toml:"connect_timeout_sec"`
	Provides          []string `json:"provides" yaml:"provides" toml:"provides"`

	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	LlamaCtx     int    `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads int    `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`

	OutputsDir      string `json:"outputs_dir" yaml:"outputs_dir" toml:"outputs_dir"`
	HistorySize     int    `json:"history_size" yaml:"history_size" toml:"history_size"`
	ActivitySize    int    `json:"activity_size" yaml:"activity_size" toml:"activity_size"`
	DefaultLanguage string `json:"default_language" yaml:"default_language" toml:"default_language"`
	DefaultTask     string `json:"default_task" yaml:"default_task" toml:"default_task"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	Tasks []TaskSpec `json:"tasks" yaml:"tasks" toml:"tasks"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("dotenv %s: %w", p, err)
		}
	}
	return nil
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TASKD_"

// ApplyEnv overrides cfg with TASKD_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = SplitCSV(v)
		}
	}
	str("ADDR", &cfg.Addr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("BACKEND", &cfg.Backend)
	str("BACKEND_URL", &cfg.BackendURL)
	str("API_KEY", &cfg.APIKey)
	str("BACKEND_MODEL", &cfg.BackendModel)
	num("REQUEST_TIMEOUT_SEC", &cfg.RequestTimeoutSec)
	num("CONNECT_TIMEOUT_SEC", &cfg.ConnectTimeoutSec)
	list("PROVIDES", &cfg.Provides)
	str("MODELS_DIR", &cfg.ModelsDir)
	str("DEFAULT_MODEL", &cfg.DefaultModel)
	num("LLAMA_CTX", &cfg.LlamaCtx)
	num("LLAMA_THREADS", &cfg.LlamaThreads)
	str("OUTPUTS_DIR", &cfg.OutputsDir)
	num("HISTORY_SIZE", &cfg.HistorySize)
	num("ACTIVITY_SIZE", &cfg.ActivitySize)
	str("DEFAULT_LANGUAGE", &cfg.DefaultLanguage)
	str("DEFAULT_TASK", &cfg.DefaultTask)
	list("CORS_ORIGINS", &cfg.CORSOrigins)
	if v, ok := lookup(EnvPrefix + "CORS_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCORS_ENABLED: %w", EnvPrefix, err))
		} else {
			cfg.CORSEnabled = b
		}
	}
	// Provider keys are honoured under their usual names when TASKD_API_KEY is unset.
	if cfg.APIKey == "" {
		for _, k := range providerKeyEnv[strings.ToLower(cfg.Backend)] {
			if v, ok := lookup(k); ok && v != "" {
				cfg.APIKey = v
				break
			}
		}
	}
	return errors.Join(errs...)
}

var providerKeyEnv = map[string][]string{
	"":       {"HF_TOKEN", "HUGGINGFACEHUB_API_TOKEN"},
	"hf":     {"HF_TOKEN", "HUGGINGFACEHUB_API_TOKEN"},
	"openai": {"OPENAI_API_KEY"},
	"gemini": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Backend == "" {
		c.Backend = "hf"
	}
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = 120
	}
	if c.ConnectTimeoutSec <= 0 {
		c.ConnectTimeoutSec = 5
	}
	if c.LlamaCtx <= 0 {
		c.LlamaCtx = 2048
	}
	if c.OutputsDir == "" {
		c.OutputsDir = "outputs"
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 256
	}
	if c.ActivitySize <= 0 {
		c.ActivitySize = 100
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = adapter.DefaultLanguage
	}
}

// Validate reports settings that can never work.
func (c Config) Validate() error {
	var errs []error
	known := false
	for _, n := range inference.Names() {
		if strings.EqualFold(c.Backend, n) {
			known = true
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("backend %q not one of %v", c.Backend, inference.Names()))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error", "off":
	default:
		errs = append(errs, fmt.Errorf("log_level %q not one of debug|info|warn|error|off", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q not one of console|json", c.LogFormat))
	}
	if _, ok := adapter.LookupLanguage(c.DefaultLanguage); !ok {
		errs = append(errs, fmt.Errorf("default_language %q is not supported", c.DefaultLanguage))
	}
	for i, t := range c.Tasks {
		if strings.TrimSpace(t.Task) == "" {
			errs = append(errs, fmt.Errorf("tasks[%d]: empty task", i))
		}
	}
	return errors.Join(errs...)
}

// Specs returns the task catalog: the configured tasks when present, else the
// built-in catalog with the default language applied to translation.
func (c Config) Specs() []adapter.Spec {
	if len(c.Tasks) == 0 {
		specs := adapter.DefaultSpecs()
		for i := range specs {
			if specs[i].Task == adapter.TaskTranslation && c.DefaultLanguage != "" {
				specs[i].Language = c.DefaultLanguage
			}
		}
		return specs
	}
	out := make([]adapter.Spec, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		lang := t.Language
		if lang == "" {
			lang = c.DefaultLanguage
		}
		out = append(out, adapter.Spec{
			Task:        t.Task,
			Kind:        inference.Kind(t.Kind),
			Model:       t.Model,
			DisplayName: t.DisplayName,
			Language:    lang,
			Defaults:    t.Defaults,
		})
	}
	return out
}

// Inference converts the backend settings; models are the local files found
// under ModelsDir.
func (c Config) Inference(models []inference.LocalModel) inference.Config {
	model := c.BackendModel
	if model == "" && strings.EqualFold(c.Backend, "llama") {
		model = c.DefaultModel
	}
	return inference.Config{
		Name:           c.Backend,
		BaseURL:        c.BackendURL,
		APIKey:         c.APIKey,
		Model:          model,
		RequestTimeout: time.Duration(c.RequestTimeoutSec) * time.Second,
		ConnectTimeout: time.Duration(c.ConnectTimeoutSec) * time.Second,
		Provides:       c.Provides,
		LocalModels:    models,
		LlamaCtx:       c.LlamaCtx,
		LlamaThreads:   c.LlamaThreads,
	}
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
