// Package telemetry wires logging, metrics and tracing for the mount engine.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/rendercore/pkg/config"
)

// NewLogger builds a zerolog logger from the logging configuration.
// The returned closer releases the output file, if one was opened.
func NewLogger(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	var (
		writer io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		// Anything else is a file path.
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		writer = file
		closer = file
	}

	if cfg.Format != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.Kitchen,
		}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
	return logger, closer, nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
