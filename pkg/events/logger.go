package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// zerologAdapter routes watermill's own logging into zerolog. Router chatter
// at info level is demoted to debug so it stays out of the launch console.
type zerologAdapter struct {
	logger zerolog.Logger
}

var _ watermill.LoggerAdapter = zerologAdapter{}

func newZerologAdapter(l zerolog.Logger) watermill.LoggerAdapter {
	return zerologAdapter{logger: l.With().Str("component", "events").Logger()}
}

func (a zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error().Err(err).Fields(map[string]any(fields)).Msg(msg)
}

func (a zerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (a zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (a zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (a zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zerologAdapter{logger: a.logger.With().Fields(map[string]any(fields)).Logger()}
}
