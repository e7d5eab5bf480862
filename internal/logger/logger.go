package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger zerolog.Logger

// Init initializes the global logger. Level is a zerolog level name,
// format is "json" or "console", output is "stdout" or "stderr".
func Init(level, format, output string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer
	switch strings.ToLower(output) {
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}

	if strings.ToLower(format) == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(out).With().
		Timestamp().
		Logger()

	log.Logger = Logger

	return nil
}

// GetLogger returns the configured logger instance.
func GetLogger() *zerolog.Logger {
	return &Logger
}
