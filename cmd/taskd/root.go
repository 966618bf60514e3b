package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taskd/internal/adapter"
	"taskd/internal/config"
	"taskd/internal/httpapi"
	"taskd/internal/inference"
	"taskd/internal/orchestrator"
	"taskd/internal/registry"
	"taskd/internal/runner"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	backend    string
	backendURL string
	model      string
	modelsDir  string
	outputsDir string
	logLevel   string
	logFormat  string
	language   string
	timeoutSec int
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "taskd",
		Short:         "ML task runner: text generation, summarization, translation, image classification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (.yaml, .json, .toml)")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before TASKD_* overrides")
	pf.StringVar(&g.backend, "backend", "", "Inference backend: "+strings.Join(inference.Names(), "|"))
	pf.StringVar(&g.backendURL, "backend-url", "", "Backend base URL")
	pf.StringVar(&g.model, "backend-model", "", "Backend model for chat backends, or fallback local model for llama")
	pf.StringVar(&g.modelsDir, "models-dir", "", "Directory of *.gguf files for the llama backend")
	pf.StringVar(&g.outputsDir, "outputs-dir", "", "Directory for saved outputs")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error|off")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: console|json")
	pf.StringVar(&g.language, "language", "", "Initial translation language")
	pf.IntVar(&g.timeoutSec, "request-timeout-sec", 0, "Per-call backend timeout in seconds")

	root.AddCommand(newServeCmd(g), newRunCmd(g), newLanguagesCmd())
	return root
}

// resolveConfig layers file, dotenv + environment, then explicitly set flags.
func resolveConfig(g *globalFlags, flags *pflag.FlagSet) (config.Config, error) {
	var cfg config.Config
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return cfg, err
	}
	if g.configPath != "" {
		c, err := config.Load(g.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	set := func(name string, apply func()) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("backend", func() { cfg.Backend = g.backend })
	set("backend-url", func() { cfg.BackendURL = g.backendURL })
	set("backend-model", func() { cfg.BackendModel = g.model })
	set("models-dir", func() { cfg.ModelsDir = g.modelsDir })
	set("outputs-dir", func() { cfg.OutputsDir = g.outputsDir })
	set("log-level", func() { cfg.LogLevel = g.logLevel })
	set("log-format", func() { cfg.LogFormat = g.logFormat })
	set("language", func() { cfg.DefaultLanguage = g.language })
	set("request-timeout-sec", func() { cfg.RequestTimeoutSec = g.timeoutSec })
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// newLogger builds the process logger and installs it into the packages
// that log.
func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	var l zerolog.Logger
	if strings.EqualFold(cfg.LogFormat, "json") {
		l = zerolog.New(w)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
	}
	l = l.With().Timestamp().Logger().Level(parseLevel(cfg.LogLevel))
	runner.SetLogger(l)
	orchestrator.SetLogger(l)
	httpapi.SetLogger(l)
	return l
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// buildOrchestrator constructs the backend and the registry. Any failure here
// is fatal for the session.
func buildOrchestrator(ctx context.Context, cfg config.Config, log zerolog.Logger, pub runner.EventPublisher) (*orchestrator.Orchestrator, error) {
	var models []inference.LocalModel
	if cfg.ModelsDir != "" {
		m, err := registry.LoadDir(cfg.ModelsDir)
		if err != nil {
			return nil, fmt.Errorf("load models dir: %w", err)
		}
		models = m
		log.Info().Str("dir", cfg.ModelsDir).Int("models", len(models)).Msg("local models scanned")
	}
	backend, err := inference.New(ctx, cfg.Inference(models))
	if err != nil {
		return nil, fmt.Errorf("inference backend: %w", err)
	}
	specs := cfg.Specs()
	if len(cfg.Tasks) == 0 {
		// The built-in catalog shrinks to what the backend serves; a configured
		// catalog is taken as is and fails fast.
		var dropped []string
		specs, dropped = adapter.SupportedSpecs(backend, specs)
		if len(dropped) > 0 {
			log.Warn().Str("backend", backend.Name()).Strs("tasks", dropped).Msg("tasks not served by backend; left out of the catalog")
		}
	}
	orch, err := orchestrator.New(orchestrator.Config{
		Backend:      backend,
		Specs:        specs,
		DefaultTask:  cfg.DefaultTask,
		OutputsDir:   cfg.OutputsDir,
		HistorySize:  cfg.HistorySize,
		ActivitySize: cfg.ActivitySize,
		Publisher:    pub,
	})
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return orch, nil
}
