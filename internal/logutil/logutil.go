package logutil

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cloud.google.com/go/compute/metadata"
)

// ConfigureLogger sets up the process-wide logger: structured JSON with a
// severity hook on GCE, console output elsewhere. LOG_LEVEL overrides the
// default info level.
func ConfigureLogger(service string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := zerolog.ParseLevel(raw); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}
	log.Logger = log.With().Caller().Stack().Str("service", service).Logger()
	if metadata.OnGCE() {
		log.Logger = log.Hook(SeverityHook{})
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// SeverityHook mirrors the zerolog level into the severity field Cloud
// Logging expects.
type SeverityHook struct{}

func (h SeverityHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	e.Str("severity", level.String())
}
