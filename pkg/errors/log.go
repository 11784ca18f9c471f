package errors

import (
	"os"

	"github.com/rs/zerolog"
)

// LogHandler is an ErrorHandler that writes errors through a zerolog logger.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
	// Logger receives the records. A zero Logger writes nothing, so use
	// NewLogHandler or set it explicitly.
	Logger zerolog.Logger
}

// NewLogHandler returns a LogHandler writing console-formatted records to stderr.
func NewLogHandler(verbose bool) *LogHandler {
	return &LogHandler{
		Verbose: verbose,
		Logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
			With().Timestamp().Str("component", "rendercore").Logger(),
	}
}

// HandleError logs a MountError.
func (h *LogHandler) HandleError(err *MountError) {
	if err == nil {
		return
	}
	level := zerolog.ErrorLevel
	if err.Kind == KindDesync {
		level = zerolog.WarnLevel
	}
	ev := h.Logger.WithLevel(level).
		Str("op", err.Op).
		Str("kind", err.Kind.String()).
		Err(err.Err)
	if err.ID >= 0 {
		ev = ev.Int64("id", err.ID)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("rendercore error")
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	ev := h.Logger.Error().Interface("value", err.Value)
	if err.Op != "" {
		ev = ev.Str("op", err.Op)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("rendercore panic")
}
