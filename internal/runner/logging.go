package runner

import "github.com/rs/zerolog"

// zlog is the package logger; silent until SetLogger is called.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the loop and worker.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "runner").Logger() }
