package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger from the logging configuration.
// Console output goes to os.Stderr; pretty formatting is chosen by the
// caller (TTY detection lives in the CLI). When cfg.File is set, JSON logs
// are appended there as well. The returned closer releases the file handle
// and is safe to call when no file was opened.
func NewLogger(cfg LoggingConfig, pretty bool) (zerolog.Logger, func() error, error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	if pretty {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, os.Stderr)
	}

	closer := func() error { return nil }
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if mkErr := os.MkdirAll(dir, 0750); mkErr != nil {
				return zerolog.Nop(), closer, fmt.Errorf("failed to create log directory: %w", mkErr)
			}
		}
		logFile, openErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if openErr != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to open log file: %w", openErr)
		}
		writers = append(writers, logFile)
		closer = logFile.Close
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return logger, closer, nil
}
