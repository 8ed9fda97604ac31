package logging

import (
	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/logger"
)

// hostLogger routes the host framework's log calls into zerolog.
type hostLogger struct {
	l zerolog.Logger
}

// HostLogger adapts a zerolog logger to the host framework's logger
// interface.
func HostLogger(l zerolog.Logger) logger.Logger {
	return hostLogger{l: l.With().Str("component", "host").Logger()}
}

func (h hostLogger) Print(message string)   { h.l.Info().Msg(message) }
func (h hostLogger) Trace(message string)   { h.l.Trace().Msg(message) }
func (h hostLogger) Debug(message string)   { h.l.Debug().Msg(message) }
func (h hostLogger) Info(message string)    { h.l.Info().Msg(message) }
func (h hostLogger) Warning(message string) { h.l.Warn().Msg(message) }
func (h hostLogger) Error(message string)   { h.l.Error().Msg(message) }
func (h hostLogger) Fatal(message string)   { h.l.Fatal().Msg(message) }
