package orchestrator

import "github.com/rs/zerolog"

var zlog = zerolog.Nop()

// SetLogger installs the structured logger for orchestrator events.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "orchestrator").Logger() }
