package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	logDirMode  = 0o700
	logFileMode = 0o600
	defaultLog  = ".local/state/dq/dq.log"
)

// newConsoleLogger is used by one-shot commands. Only warnings reach the
// terminal unless debug or trace logging is configured.
func newConsoleLogger(w io.Writer, level string) zerolog.Logger {
	consoleLevel := zerolog.WarnLevel
	if configured := parseLevel(level); configured < zerolog.InfoLevel {
		consoleLevel = configured
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: !isTerminal(w)}).
		Level(consoleLevel).
		With().Timestamp().Logger()
}

// openFileLogger writes JSON lines for the chat session, which owns the
// terminal. Each run is tagged with its own session id.
func openFileLogger(path string, level string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, defaultLog)
	}

	if err := os.MkdirAll(filepath.Dir(path), logDirMode); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFileMode)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	logger := zerolog.New(file).
		Level(parseLevel(level)).
		With().Timestamp().Str("session", uuid.NewString()).Logger()
	return logger, file, nil
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}
