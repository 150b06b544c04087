package app

import (
	"time"

	"github.com/rs/zerolog"
)

// shutdownGrace bounds how long the metrics HTTP server is given to
// drain in-flight scrapes during shutdown.
const shutdownGrace = 5 * time.Second

// zerologAdapter satisfies core.Logger with a zerolog.Logger, keeping
// the reactor package free of any direct zerolog dependency.
type zerologAdapter struct {
	log zerolog.Logger
}

func (z zerologAdapter) Debugf(format string, args ...any) {
	z.log.Debug().Msgf(format, args...)
}

func (z zerologAdapter) Warnf(format string, args ...any) {
	z.log.Warn().Msgf(format, args...)
}

func (z zerologAdapter) Errorf(format string, args ...any) {
	z.log.Error().Msgf(format, args...)
}
