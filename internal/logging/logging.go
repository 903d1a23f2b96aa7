// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/memovox/memovox/internal/config"
)

// Init initializes the global zerolog logger from config.
func Init(cfg config.Log) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Logger()
}

// WithRecording returns a logger with recording context.
func WithRecording(recordingID string) *zerolog.Logger {
	logger := log.With().
		Str("recordingId", recordingID).
		Logger()
	return &logger
}

// WithSegment returns a logger with segment context.
func WithSegment(recordingID, segmentID string) *zerolog.Logger {
	logger := log.With().
		Str("recordingId", recordingID).
		Str("segmentId", segmentID).
		Logger()
	return &logger
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) *zerolog.Logger {
	logger := log.With().
		Str("component", component).
		Logger()
	return &logger
}
