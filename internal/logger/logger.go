package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var (
	base = zerolog.Nop()

	DebugEnabled = false

	logFile *os.File
)

// InitLogging sets up logging based on configuration.
func InitLogging(debugMode bool, logPath string) error {
	DebugEnabled = debugMode

	if DebugEnabled && logPath != "" {
		logDir := filepath.Dir(logPath)
		err := os.MkdirAll(logDir, 0o755)
		if err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		logFile = f
		SetOutput(f)
	}

	return nil
}

// SetOutput routes debug logging to w regardless of the log file.
func SetOutput(w io.Writer) {
	DebugEnabled = true
	output := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.DateTime,
	}
	base = zerolog.New(output).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// Close closes the log file if open.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Component returns a structured logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

func Infof(format string, v ...interface{}) {
	if DebugEnabled {
		base.Info().Msgf(format, v...)
	}
}

// Errorf logs an error message to the file if debug mode is enabled.
func Errorf(format string, v ...interface{}) {
	if DebugEnabled {
		base.Error().Msgf(format, v...)
	}
}

func Debugf(format string, v ...interface{}) {
	if DebugEnabled {
		base.Debug().Msgf(format, v...)
	}
}

func Warnf(format string, v ...interface{}) {
	if DebugEnabled {
		base.Warn().Msgf(format, v...)
	}
}
